// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/greetbot/internal/middleware"
	"github.com/hitoshi/greetbot/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	BeginAuthorization(ctx context.Context, clientIP string) (string, error)
	CompleteAuthorization(ctx context.Context, code, state, clientIP string) (*model.Session, error)
}

// AuthHandler はOAuth認可フローのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookie  middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookie middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{service: service, cookie: cookie}
}

// Authorize はstateを発行してDiscordの認可画面へリダイレクトする。
// GET /authorize
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.service.BeginAuthorization(r.Context(), middleware.ClientIPFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

// TryAuthorize はDiscordからのコールバックを処理し、セッションCookieを発行する。
// GET /try_authorize?code=xxx&state=yyy
func (h *AuthHandler) TryAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session, err := h.service.CompleteAuthorization(r.Context(),
		q.Get("code"), q.Get("state"), middleware.ClientIPFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, session, h.cookie)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
