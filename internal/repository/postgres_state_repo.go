package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/greetbot/internal/model"
)

// pgUniqueViolation は一意制約違反のSQLSTATE。
const pgUniqueViolation pq.ErrorCode = "23505"

// PostgresStateRepo はPostgreSQLを使用したstateトークンリポジトリ。
type PostgresStateRepo struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStateRepo はPostgresStateRepoを生成する。
// ttlを過ぎたトークンは検証時に拒否される。
func NewPostgresStateRepo(db *sql.DB, ttl time.Duration) *PostgresStateRepo {
	return &PostgresStateRepo{db: db, ttl: ttl}
}

// Put はstateトークンを保存する。
// 鮮度はDBのnow()で判定するため、created_atはカラムのデフォルトに任せる。
func (r *PostgresStateRepo) Put(ctx context.Context, state *model.AuthorizationState) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO oauth_states (id, issuing_ip) VALUES ($1, $2)`,
		state.ID, state.IssuingIP,
	)
	if isUniqueViolation(err) {
		return ErrStateCollision
	}
	if err != nil {
		return fmt.Errorf("failed to put oauth state: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// VerifyAndConsume はDELETE ... RETURNINGの単一文でトークンを取り出す。
// 同じトークンに対する並行リクエストのうち行を受け取れるのは1つだけ。
func (r *PostgresStateRepo) VerifyAndConsume(ctx context.Context, id, ip string) (bool, error) {
	var issuingIP string
	var fresh bool
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM oauth_states
		 WHERE id = $1
		 RETURNING issuing_ip, (created_at > now() - make_interval(secs => $2)) AS fresh`,
		id, r.ttl.Seconds(),
	).Scan(&issuingIP, &fresh)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	return fresh && issuingIP == ip, nil
}

// Delete はトークンを削除する。
func (r *PostgresStateRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return nil
}

// DeleteExpired はttlより古いトークンを削除し、削除件数を返す。
func (r *PostgresStateRepo) DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE created_at <= now() - make_interval(secs => $1)`,
		ttl.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired oauth states: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var (
	_ StateRepository     = (*PostgresStateRepo)(nil)
	_ ExpiredStateSweeper = (*PostgresStateRepo)(nil)
)
