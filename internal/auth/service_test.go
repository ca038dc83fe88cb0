package auth

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/hitoshi/greetbot/internal/model"
	"github.com/hitoshi/greetbot/internal/repository"
)

// --- モック定義 ---

type mockOAuthProvider struct {
	authURLFn     func(state string) string
	exchangeFn    func(ctx context.Context, code string) (*AccessToken, error)
	fetchUserIDFn func(ctx context.Context, token *AccessToken) (uint64, error)
}

func (m *mockOAuthProvider) AuthURL(state string) string {
	if m.authURLFn != nil {
		return m.authURLFn(state)
	}
	return "https://discord.example/oauth2/authorize?state=" + url.QueryEscape(state)
}

func (m *mockOAuthProvider) Exchange(ctx context.Context, code string) (*AccessToken, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return &AccessToken{Value: "tok", TokenType: "Bearer", Scope: "identify"}, nil
}

func (m *mockOAuthProvider) FetchUserID(ctx context.Context, token *AccessToken) (uint64, error) {
	if m.fetchUserIDFn != nil {
		return m.fetchUserIDFn(ctx, token)
	}
	return 42, nil
}

type mockStateRepo struct {
	putFn    func(ctx context.Context, state *model.AuthorizationState) error
	verifyFn func(ctx context.Context, id, ip string) (bool, error)
}

func (m *mockStateRepo) Put(ctx context.Context, state *model.AuthorizationState) error {
	if m.putFn != nil {
		return m.putFn(ctx, state)
	}
	return nil
}

func (m *mockStateRepo) VerifyAndConsume(ctx context.Context, id, ip string) (bool, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, id, ip)
	}
	return false, nil
}

func (m *mockStateRepo) Delete(_ context.Context, _ string) error {
	return nil
}

type mockMetrics struct {
	outcomes []string
}

func (m *mockMetrics) RecordAuthorization(outcome string) { m.outcomes = append(m.outcomes, outcome) }
func (m *mockMetrics) RecordOAuthLatency(time.Duration) {}
func (m *mockMetrics) RecordGreetingUpdated() {}
func (m *mockMetrics) RecordGreetingSent() {}
func (m *mockMetrics) RecordGreetingFailure(string) {}
func (m *mockMetrics) RecordStatesSwept(int64) {}
func (m *mockMetrics) RecordHTTPStatus(int) {}

// --- テスト ---

func newTestService(oauth OAuthProvider, states repository.StateRepository, m *mockMetrics) *Service {
	if m == nil {
		return NewService(oauth, states, NewSessionCodec(testSecret, time.Hour), nil)
	}
	return NewService(oauth, states, NewSessionCodec(testSecret, time.Hour), m)
}

// stateを開始時に保存し、コールバックで消費してセッションを発行する
func TestService_FullFlow_SameIP(t *testing.T) {
	states := repository.NewMemoryStateRepo(time.Minute, time.Minute)
	m := &mockMetrics{}
	svc := newTestService(&mockOAuthProvider{}, states, m)
	ctx := context.Background()

	redirect, err := svc.BeginAuthorization(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("BeginAuthorization returned error: %v", err)
	}
	u, _ := url.Parse(redirect)
	state := u.Query().Get("state")
	if len(state) != StateIDLength {
		t.Fatalf("state = %q, want %d chars", state, StateIDLength)
	}
	if states.Len() != 1 {
		t.Fatalf("stored states = %d, want 1", states.Len())
	}

	session, err := svc.CompleteAuthorization(ctx, "code", state, "1.2.3.4")
	if err != nil {
		t.Fatalf("CompleteAuthorization returned error: %v", err)
	}
	if session.UserID != 42 {
		t.Errorf("UserID = %d, want 42", session.UserID)
	}
	if states.Len() != 0 {
		t.Errorf("state not consumed: %d remain", states.Len())
	}

	userID, err := NewSessionCodec(testSecret, time.Hour).Decode(session.Token)
	if err != nil || userID != 42 {
		t.Errorf("Decode = (%d, %v), want (42, nil)", userID, err)
	}

	if len(m.outcomes) != 2 || m.outcomes[0] != "issued" || m.outcomes[1] != "succeeded" {
		t.Errorf("outcomes = %v", m.outcomes)
	}

	// 同じstateの再利用は拒否される
	_, err = svc.CompleteAuthorization(ctx, "code", state, "1.2.3.4")
	assertAPIErrorCode(t, err, model.ErrCodeAuthorizationRejected)
}

// 異なるIPからのコールバックは拒否され、stateは削除される
func TestService_CompleteAuthorization_WrongIP(t *testing.T) {
	states := repository.NewMemoryStateRepo(time.Minute, time.Minute)
	exchanged := false
	oauth := &mockOAuthProvider{
		exchangeFn: func(context.Context, string) (*AccessToken, error) {
			exchanged = true
			return &AccessToken{TokenType: "Bearer", Scope: "identify"}, nil
		},
	}
	svc := newTestService(oauth, states, nil)
	ctx := context.Background()

	redirect, err := svc.BeginAuthorization(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("BeginAuthorization returned error: %v", err)
	}
	u, _ := url.Parse(redirect)
	state := u.Query().Get("state")

	session, err := svc.CompleteAuthorization(ctx, "code", state, "9.9.9.9")
	if session != nil {
		t.Error("expected no session")
	}
	assertAPIErrorCode(t, err, model.ErrCodeAuthorizationRejected)
	if exchanged {
		t.Error("code must not be exchanged after rejection")
	}
	if states.Len() != 0 {
		t.Errorf("state should be deleted after wrong-IP check, %d remain", states.Len())
	}
}

func TestService_CompleteAuthorization_UnknownState(t *testing.T) {
	svc := newTestService(&mockOAuthProvider{}, repository.NewMemoryStateRepo(time.Minute, time.Minute), nil)

	_, err := svc.CompleteAuthorization(context.Background(), "code", "unknownunknownunknow", "1.2.3.4")
	assertAPIErrorCode(t, err, model.ErrCodeAuthorizationRejected)
}

func TestService_CompleteAuthorization_MissingParams(t *testing.T) {
	svc := newTestService(&mockOAuthProvider{}, &mockStateRepo{}, nil)

	_, err := svc.CompleteAuthorization(context.Background(), "", "state", "1.2.3.4")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)

	_, err = svc.CompleteAuthorization(context.Background(), "code", "", "1.2.3.4")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidRequest)
}

func TestService_CompleteAuthorization_RejectsTokenShape(t *testing.T) {
	tests := []struct {
		name      string
		tokenType string
		scope     string
		wantCode  string
	}{
		{"lowercase bearer", "bearer", "identify", model.ErrCodeInvalidTokenType},
		{"mac token", "mac", "identify", model.ErrCodeInvalidTokenType},
		{"extra scope", "Bearer", "identify email", model.ErrCodeInvalidScope},
		{"wrong scope", "Bearer", "guilds", model.ErrCodeInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetched := false
			oauth := &mockOAuthProvider{
				exchangeFn: func(context.Context, string) (*AccessToken, error) {
					return &AccessToken{Value: "tok", TokenType: tt.tokenType, Scope: tt.scope}, nil
				},
				fetchUserIDFn: func(context.Context, *AccessToken) (uint64, error) {
					fetched = true
					return 42, nil
				},
			}
			states := &mockStateRepo{verifyFn: func(context.Context, string, string) (bool, error) { return true, nil }}
			m := &mockMetrics{}
			svc := newTestService(oauth, states, m)

			session, err := svc.CompleteAuthorization(context.Background(), "code", "state", "1.2.3.4")
			if session != nil {
				t.Error("expected no session")
			}
			assertAPIErrorCode(t, err, tt.wantCode)
			if fetched {
				t.Error("user must not be fetched for an invalid token")
			}
			if len(m.outcomes) != 1 || m.outcomes[0] != "invalid_token" {
				t.Errorf("outcomes = %v", m.outcomes)
			}
		})
	}
}

func TestService_CompleteAuthorization_ExchangeError(t *testing.T) {
	oauth := &mockOAuthProvider{
		exchangeFn: func(context.Context, string) (*AccessToken, error) {
			return nil, errors.New("network down")
		},
	}
	states := &mockStateRepo{verifyFn: func(context.Context, string, string) (bool, error) { return true, nil }}
	svc := newTestService(oauth, states, nil)

	_, err := svc.CompleteAuthorization(context.Background(), "code", "state", "1.2.3.4")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("network error should not be an APIError: %v", apiErr)
	}
}

func TestService_CompleteAuthorization_StoreError(t *testing.T) {
	states := &mockStateRepo{verifyFn: func(context.Context, string, string) (bool, error) {
		return false, errors.New("db down")
	}}
	svc := newTestService(&mockOAuthProvider{}, states, nil)

	if _, err := svc.CompleteAuthorization(context.Background(), "code", "state", "1.2.3.4"); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_BeginAuthorization_StoreError(t *testing.T) {
	states := &mockStateRepo{putFn: func(context.Context, *model.AuthorizationState) error {
		return errors.New("db down")
	}}
	svc := newTestService(&mockOAuthProvider{}, states, nil)

	if _, err := svc.BeginAuthorization(context.Background(), "1.2.3.4"); err == nil {
		t.Fatal("expected error")
	}
}

// ID衝突時は新しいIDで再試行する
func TestService_BeginAuthorization_RetriesOnCollision(t *testing.T) {
	calls := 0
	var stored []string
	states := &mockStateRepo{putFn: func(_ context.Context, s *model.AuthorizationState) error {
		calls++
		stored = append(stored, s.ID)
		if calls == 1 {
			return repository.ErrStateCollision
		}
		return nil
	}}
	svc := newTestService(&mockOAuthProvider{}, states, nil)

	redirect, err := svc.BeginAuthorization(context.Background(), "1.2.3.4")
	if err != nil {
		t.Fatalf("BeginAuthorization returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("Put calls = %d, want 2", calls)
	}
	u, _ := url.Parse(redirect)
	if u.Query().Get("state") != stored[1] {
		t.Errorf("redirect state should be the second id")
	}
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError with code %s, got %v", code, err)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %q, want %q", apiErr.Code, code)
	}
}
