package model

import "time"

// AuthorizationState はOAuth認可フローのstateトークンを表す。
// 認可開始時に作成され、コールバックで一度だけ消費される。
type AuthorizationState struct {
	ID        string
	IssuingIP string
	CreatedAt time.Time
}

// Session は認可完了後に発行されるセッションを表す。
// Tokenは改ざん検知付きのCookie値で、サーバー側には保存しない。
type Session struct {
	UserID    uint64
	Token     string
	ExpiresAt time.Time
}
