package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/greetbot/internal/middleware"
	"github.com/hitoshi/greetbot/internal/model"
)

// handleServiceError はサービス層のエラーを適切なHTTPレスポンスに変換する。
// APIError以外は内部エラーとして扱い、詳細はログにのみ記録する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteError(w, r, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalError(w, r)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidTokenType, model.ErrCodeInvalidScope:
		return http.StatusBadRequest
	case model.ErrCodeAuthorizationRejected, model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeNotAdministrator, model.ErrCodeCSRFValidation:
		return http.StatusForbidden
	case model.ErrCodeUnknownChannel, model.ErrCodeChannelNotInGuild, model.ErrCodeMemberNotFound,
		model.ErrCodeInvalidGreeting, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeGuildNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
