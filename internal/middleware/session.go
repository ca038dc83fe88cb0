// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/greetbot/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionDecoder はCookieの値からユーザーIDを復元する。
type SessionDecoder interface {
	Decode(token string) (uint64, error)
}

// CookieConfig はアプリケーションが発行するCookieの共通属性。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewSessionMiddleware はセッションCookieを読み取り、任意の認証情報をコンテキストに注入する。
// Cookieがない場合は匿名として通す。
// Cookieが壊れている・期限切れ・ユーザーIDとして解釈できない場合は
// Cookieを削除したうえで匿名として通す。エラー画面は出さない。
func NewSessionMiddleware(decoder SessionDecoder, config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := decoder.Decode(cookie.Value)
			if err != nil {
				slog.Debug("discarding invalid session cookie",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				ClearSessionCookie(w, config)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// RequireSession は認証済みリクエストのみを通す。
// 匿名のGET/HEADは/authorizeへリダイレクトし、それ以外は401を返す。
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.Redirect(w, r, "/authorize", http.StatusTemporaryRedirect)
			return
		}
		WriteError(w, r, http.StatusUnauthorized, model.NewUnauthenticatedError())
	})
}

// SetSessionCookie はセッショントークンをCookieに設定する。
func SetSessionCookie(w http.ResponseWriter, session *model.Session, config CookieConfig) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 匿名リクエストではfalseを返す。
func UserIDFromContext(ctx context.Context) (uint64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(uint64)
	return userID, ok
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
func ContextWithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
