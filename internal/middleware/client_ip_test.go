package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIPMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", false, "1.2.3.4:5555", nil, "1.2.3.4"},
		{"ipv6 remote addr", false, "[2001:db8::1]:443", nil, "2001:db8::1"},
		{"ignores XFF without trust", false, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "9.9.9.9"}, "10.0.0.1"},
		{"uses last XFF entry", true, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "6.6.6.6, 1.2.3.4"}, "1.2.3.4"},
		{"falls back to X-Real-IP", true, "10.0.0.1:80", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"invalid XFF falls back", true, "10.0.0.1:80", map[string]string{"X-Forwarded-For": "garbage"}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := NewClientIPMiddleware(tt.trustProxy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIPFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("client ip = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var ctxID string
	handler := NewRequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = RequestIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if ctxID == "" || w.Header().Get(requestIDHeader) != ctxID {
		t.Errorf("generated id = %q, header = %q", ctxID, w.Header().Get(requestIDHeader))
	}

	// 妥当なUUIDは引き継ぐ
	const incoming = "0b5ef9b4-5f0a-4c7e-9f6a-0a3c3f3f9a11"
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, incoming)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if ctxID != incoming {
		t.Errorf("id = %q, want %q", ctxID, incoming)
	}

	// 不正な値は置き換える
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "<script>")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if ctxID == "<script>" {
		t.Error("invalid request id should be replaced")
	}
}
