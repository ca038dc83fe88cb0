package middleware

import (
	"net/http"
	"strings"
)

const methodOverrideField = "_method"

// NewMethodOverrideMiddleware はHTMLフォームのPOSTを_methodフィールドの値で置き換える。
// ルーティング前に適用する必要があるため、ルーターのUseで登録すること。
func NewMethodOverrideMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && isFormContent(r) {
				switch m := strings.ToUpper(r.PostFormValue(methodOverrideField)); m {
				case http.MethodPut, http.MethodPatch, http.MethodDelete:
					r.Method = m
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isFormContent(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}
