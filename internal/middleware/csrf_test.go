package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/greetbot/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCSRF_GET_IssuesCookieAndContextToken(t *testing.T) {
	mw := NewCSRFMiddleware(CookieConfig{})

	var ctxToken string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxToken = CSRFTokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	c := findSetCookie(w.Result(), csrfCookieName)
	if c == nil {
		t.Fatal("expected csrf cookie")
	}
	if len(c.Value) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(c.Value))
	}
	if ctxToken != c.Value {
		t.Errorf("context token %q does not match cookie %q", ctxToken, c.Value)
	}
}

func TestCSRF_GET_ReusesExistingCookie(t *testing.T) {
	mw := NewCSRFMiddleware(CookieConfig{})

	var ctxToken string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxToken = CSRFTokenFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if findSetCookie(w.Result(), csrfCookieName) != nil {
		t.Error("cookie should not be reissued")
	}
	if ctxToken != "existing" {
		t.Errorf("context token = %q, want existing", ctxToken)
	}
}

func TestCSRF_PUT_HeaderToken(t *testing.T) {
	handler := NewCSRFMiddleware(CookieConfig{})(okHandler())

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	req.Header.Set(csrfHeaderName, "tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCSRF_PUT_FormToken(t *testing.T) {
	handler := NewCSRFMiddleware(CookieConfig{})(okHandler())

	form := url.Values{CSRFFormField: {"tok"}, "message": {"hi"}}
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestCSRF_PUT_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
	}{
		{"missing cookie", "", "tok"},
		{"missing token", "tok", ""},
		{"mismatch", "tok", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CookieConfig{})(okHandler())

			req := httptest.NewRequest(http.MethodPut, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", w.Code)
			}
			if body := decodeErrorBody(t, w); body.Code != model.ErrCodeCSRFValidation {
				t.Errorf("code = %q", body.Code)
			}
		})
	}
}
