package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hitoshi/greetbot/internal/model"
)

const (
	defaultDiscordAuthorizeURL = "https://discord.com/oauth2/authorize"
	defaultDiscordAPIBaseURL   = "https://discord.com/api/v10"
	defaultOAuthTimeout        = 10 * time.Second

	// RequiredTokenType は受け付けるトークン種別。大文字小文字も含めて完全一致させる。
	RequiredTokenType = "Bearer"
	// RequiredScope は受け付けるスコープ。追加のスコープが付与されたトークンは拒否する。
	RequiredScope = "identify"
)

// DiscordOAuthConfig はDiscord OAuthプロバイダーの設定。
type DiscordOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthorizeURL string
	APIBaseURL   string

	Timeout time.Duration
}

// AccessToken はトークン交換の結果。永続化しない。
type AccessToken struct {
	Value     string
	TokenType string
	Scope     string
}

// DiscordOAuthProvider はDiscord OAuth 2.0の認可コードフローを提供する。
type DiscordOAuthProvider struct {
	oauth      *oauth2.Config
	apiBaseURL string
	httpClient *http.Client
}

// NewDiscordOAuthProvider はDiscordOAuthProviderを生成する。
func NewDiscordOAuthProvider(config DiscordOAuthConfig) *DiscordOAuthProvider {
	if config.AuthorizeURL == "" {
		config.AuthorizeURL = defaultDiscordAuthorizeURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultDiscordAPIBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultOAuthTimeout
	}
	apiBase := strings.TrimRight(config.APIBaseURL, "/")

	return &DiscordOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{RequiredScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   config.AuthorizeURL,
				TokenURL:  apiBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		apiBaseURL: apiBase,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// AuthURL はDiscordの認可画面URLを生成する。
// 既に許可済みのユーザーには同意画面を出さないようprompt=noneを付与する。
func (p *DiscordOAuthProvider) AuthURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

// Exchange は認可コードをアクセストークンに交換する。
// トークン種別とスコープの検証は呼び出し側で行う。
func (p *DiscordOAuthProvider) Exchange(ctx context.Context, code string) (*AccessToken, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	scope, _ := tok.Extra("scope").(string)
	return &AccessToken{
		Value:     tok.AccessToken,
		TokenType: tok.TokenType,
		Scope:     scope,
	}, nil
}

// discordUser は/users/@meのレスポンスのうち必要な部分。
type discordUser struct {
	ID string `json:"id"`
}

// FetchUserID はアクセストークンの持ち主のユーザーIDを取得する。
func (p *DiscordOAuthProvider) FetchUserID(ctx context.Context, token *AccessToken) (uint64, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token.Value,
		TokenType:   RequiredTokenType,
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+"/users/@me", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create user request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user discordUser
	if err := json.Unmarshal(body, &user); err != nil {
		return 0, fmt.Errorf("failed to parse user response: %w", err)
	}

	id, err := strconv.ParseUint(user.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", user.ID, err)
	}
	return id, nil
}

// ValidateAccessToken はトークン種別とスコープを完全一致で検証する。
func ValidateAccessToken(token *AccessToken) error {
	if token.TokenType != RequiredTokenType {
		return model.NewInvalidTokenTypeError(token.TokenType)
	}
	if token.Scope != RequiredScope {
		return model.NewInvalidScopeError(token.Scope)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*DiscordOAuthProvider)(nil)
