// Package auth はDiscord OAuth認可フローとセッションの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/greetbot/internal/metrics"
	"github.com/hitoshi/greetbot/internal/model"
	"github.com/hitoshi/greetbot/internal/repository"
)

const maxStateAttempts = 3

// OAuthProvider はOAuth認可サーバーとのやり取りを抽象化する。
type OAuthProvider interface {
	// AuthURL は指定stateを含む認可画面URLを生成する。
	AuthURL(state string) string
	// Exchange は認可コードをアクセストークンに交換する。
	Exchange(ctx context.Context, code string) (*AccessToken, error)
	// FetchUserID はトークンの持ち主のユーザーIDを取得する。
	FetchUserID(ctx context.Context, token *AccessToken) (uint64, error)
}

// Service は認可フローの状態遷移を管理する。
// ISSUED のstateは CONSUMED か REJECTED のどちらかにしか遷移しない。
type Service struct {
	oauth   OAuthProvider
	states  repository.StateRepository
	codec   *SessionCodec
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	oauth OAuthProvider,
	states repository.StateRepository,
	codec *SessionCodec,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		oauth:   oauth,
		states:  states,
		codec:   codec,
		metrics: collector,
		now:     time.Now,
	}
}

// BeginAuthorization はstateトークンを発行・保存し、リダイレクト先URLを返す。
func (s *Service) BeginAuthorization(ctx context.Context, clientIP string) (string, error) {
	var state *model.AuthorizationState
	for attempt := 1; ; attempt++ {
		id, err := GenerateStateID()
		if err != nil {
			return "", fmt.Errorf("failed to generate state: %w", err)
		}

		state = &model.AuthorizationState{ID: id, IssuingIP: clientIP, CreatedAt: s.now()}
		err = s.states.Put(ctx, state)
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrStateCollision) && attempt < maxStateAttempts {
			continue
		}
		s.record(metrics.AuthOutcomeError)
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	s.record(metrics.AuthOutcomeIssued)
	return s.oauth.AuthURL(state.ID), nil
}

// CompleteAuthorization はコールバックを検証し、セッションを発行する。
// stateはコード交換より前に消費されるため、以降の失敗でも再利用できない。
func (s *Service) CompleteAuthorization(ctx context.Context, code, state, clientIP string) (*model.Session, error) {
	if code == "" || state == "" {
		return nil, model.NewInvalidRequestError("codeとstateは必須です")
	}

	// 1. stateを検証して消費
	ok, err := s.states.VerifyAndConsume(ctx, state, clientIP)
	if err != nil {
		s.record(metrics.AuthOutcomeError)
		return nil, fmt.Errorf("failed to verify state: %w", err)
	}
	if !ok {
		s.record(metrics.AuthOutcomeRejected)
		slog.Warn("authorization rejected", slog.String("client_ip", clientIP))
		return nil, model.NewAuthorizationRejectedError()
	}

	// 2. 認可コードをトークンに交換
	started := s.now()
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.record(metrics.AuthOutcomeError)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	if err := ValidateAccessToken(token); err != nil {
		s.record(metrics.AuthOutcomeInvalidToken)
		return nil, err
	}

	// 3. ユーザーIDを取得
	userID, err := s.oauth.FetchUserID(ctx, token)
	if err != nil {
		s.record(metrics.AuthOutcomeError)
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordOAuthLatency(s.now().Sub(started))
	}

	// 4. セッションを発行
	session, err := s.codec.Encode(userID)
	if err != nil {
		s.record(metrics.AuthOutcomeError)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.record(metrics.AuthOutcomeSucceeded)
	slog.Info("user authorized", slog.Uint64("user_id", userID))
	return session, nil
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAuthorization(outcome)
	}
}
