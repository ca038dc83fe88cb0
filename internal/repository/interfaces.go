// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/greetbot/internal/model"
)

// StateRepository はOAuth認可stateトークンの永続化インターフェース。
// 実装はVerifyAndConsumeを単一のアトミック操作として提供しなければならない。
type StateRepository interface {
	// Put はstateトークンを発行元IPとともに保存する。
	Put(ctx context.Context, state *model.AuthorizationState) error

	// VerifyAndConsume はトークンを削除し、発行元IPが一致し期限内であればtrueを返す。
	// IPが一致しない場合もトークンは削除される。未知のトークンはfalseを返す。
	VerifyAndConsume(ctx context.Context, id, ip string) (bool, error)

	// Delete はトークンを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, id string) error
}

// ExpiredStateSweeper は期限切れstateを一括削除できるストア。
// ネイティブTTLを持たないバックエンドのみが実装する。
type ExpiredStateSweeper interface {
	DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error)
}

// GreetingRepository はギルドごとの挨拶設定の永続化インターフェース。
type GreetingRepository interface {
	// FindByGuildID は指定ギルドの挨拶設定を取得する。見つからない場合はnilを返す。
	FindByGuildID(ctx context.Context, guildID string) (*model.Greeting, error)

	// Upsert は挨拶設定を作成または更新する。ギルドごとに1件のみ保持する。
	Upsert(ctx context.Context, greeting *model.Greeting) error
}
