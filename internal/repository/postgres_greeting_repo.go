package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/greetbot/internal/model"
)

// PostgresGreetingRepo はPostgreSQLを使用した挨拶設定リポジトリ。
type PostgresGreetingRepo struct {
	db *sql.DB
}

// NewPostgresGreetingRepo はPostgresGreetingRepoを生成する。
func NewPostgresGreetingRepo(db *sql.DB) *PostgresGreetingRepo {
	return &PostgresGreetingRepo{db: db}
}

// FindByGuildID は指定ギルドの挨拶設定を取得する。見つからない場合はnilを返す。
func (r *PostgresGreetingRepo) FindByGuildID(ctx context.Context, guildID string) (*model.Greeting, error) {
	g := &model.Greeting{}
	err := r.db.QueryRowContext(ctx,
		`SELECT guild_id, channel_id, message, created_at, updated_at
		 FROM greetings
		 WHERE guild_id = $1`,
		guildID,
	).Scan(&g.GuildID, &g.ChannelID, &g.Message, &g.CreatedAt, &g.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find greeting: %w", err)
	}
	return g, nil
}

// Upsert はギルドの挨拶設定を作成または上書きする。
// 作成・更新日時はDB側の値で埋め戻す。
func (r *PostgresGreetingRepo) Upsert(ctx context.Context, greeting *model.Greeting) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO greetings (guild_id, channel_id, message, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 ON CONFLICT (guild_id) DO UPDATE SET
		   channel_id = EXCLUDED.channel_id,
		   message    = EXCLUDED.message,
		   updated_at = now()
		 RETURNING created_at, updated_at`,
		greeting.GuildID, greeting.ChannelID, greeting.Message,
	).Scan(&greeting.CreatedAt, &greeting.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert greeting: %w", err)
	}
	return nil
}

// compile-time interface check
var _ GreetingRepository = (*PostgresGreetingRepo)(nil)
