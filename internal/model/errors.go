// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, guild, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthorizationRejected = "AUTHORIZATION_REJECTED"
	ErrCodeInvalidTokenType      = "INVALID_TOKEN_TYPE"
	ErrCodeInvalidScope          = "INVALID_SCOPE"
	ErrCodeNotAdministrator      = "NOT_ADMINISTRATOR"
	ErrCodeUnknownChannel        = "UNKNOWN_CHANNEL"
	ErrCodeChannelNotInGuild     = "CHANNEL_NOT_IN_GUILD"
	ErrCodeMemberNotFound        = "MEMBER_NOT_FOUND"
	ErrCodeGuildNotFound         = "GUILD_NOT_FOUND"
	ErrCodeInvalidGreeting       = "INVALID_GREETING"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeUnauthenticated       = "UNAUTHENTICATED"
	ErrCodeCSRFValidation        = "CSRF_VALIDATION_FAILED"
	ErrCodeRateLimited           = "RATE_LIMITED"
)

// NewAuthorizationRejectedError はstateトークン検証失敗エラーを生成する。
// 未知のトークン、期限切れ、IP不一致のいずれでも同じ内容を返す。
func NewAuthorizationRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthorizationRejected,
		Message:  "認可リクエストを検証できませんでした。",
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewInvalidTokenTypeError はBearer以外のトークン種別を受け取った場合のエラーを生成する。
func NewInvalidTokenTypeError(tokenType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTokenType,
		Message:  fmt.Sprintf("Bearerトークンのみ受け付けます（受信: %q）。", tokenType),
		Category: "auth",
		Action:   "もう一度ログインをやり直してください。",
	}
}

// NewInvalidScopeError はidentify以外のスコープが許可された場合のエラーを生成する。
func NewInvalidScopeError(scope string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidScope,
		Message:  fmt.Sprintf("スコープはidentifyのみ受け付けます（受信: %q）。", scope),
		Category: "auth",
		Action:   "認可画面でidentifyスコープのみを許可してください。",
	}
}

// NewNotAdministratorError は対象ギルドの管理者でない場合のエラーを生成する。
func NewNotAdministratorError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAdministrator,
		Message:  "このギルドの管理者である必要があります。",
		Category: "guild",
		Action:   "ギルドのオーナーまたは管理者権限を持つロールのメンバーで操作してください。",
	}
}

// NewUnknownChannelError はチャンネルが解決できない場合のエラーを生成する。
func NewUnknownChannelError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownChannel,
		Message:  fmt.Sprintf("不明なチャンネルIDです: %s", channelID),
		Category: "validation",
		Action:   "ボットが参加しているギルドのチャンネルIDを指定してください。",
	}
}

// NewChannelNotInGuildError はギルド外のチャンネル（DM等）が指定された場合のエラーを生成する。
func NewChannelNotInGuildError() *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotInGuild,
		Message:  "チャンネルがギルドに属していません。",
		Category: "validation",
		Action:   "ギルドのテキストチャンネルを指定してください。",
	}
}

// NewMemberNotFoundError はギルド内にユーザーが見つからない場合のエラーを生成する。
func NewMemberNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  "このギルドにあなたのユーザーが見つかりません。",
		Category: "guild",
		Action:   "ギルドに参加しているアカウントでログインしてください。",
	}
}

// NewGuildNotFoundError はギルドが解決できない場合のエラーを生成する。
func NewGuildNotFoundError(guildID string) *APIError {
	return &APIError{
		Code:     ErrCodeGuildNotFound,
		Message:  fmt.Sprintf("ギルドが見つかりません: %s", guildID),
		Category: "guild",
		Action:   "ボットがギルドに参加しているか確認してください。",
	}
}

// NewInvalidGreetingError は挨拶メッセージが不正な場合のエラーを生成する。
func NewInvalidGreetingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGreeting,
		Message:  fmt.Sprintf("挨拶メッセージが不正です: %s", reason),
		Category: "validation",
		Action:   "1文字以上2000文字以内のメッセージを入力してください。",
	}
}

// NewInvalidRequestError はフォーム入力の解析に失敗した場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthenticatedError はセッションが必要な操作を未認証で行った場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "/authorize からログインしてください。",
	}
}

// NewCSRFValidationError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFValidationError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFValidation,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度送信してください。",
	}
}

// NewRateLimitedError はレート制限を超過した場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再試行してください。",
	}
}
