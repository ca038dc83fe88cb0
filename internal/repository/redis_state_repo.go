package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/greetbot/internal/model"
)

const stateKeyPrefix = "greetbot:oauth_state:"

// ErrStateCollision はすでに同じIDのstateが存在する場合に返される。
var ErrStateCollision = errors.New("oauth state id already exists")

// RedisStateRepo はRedisを使用したstateトークンリポジトリ。
// 有効期限はキーのTTLに任せる。
type RedisStateRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStateRepo はRedisStateRepoを生成する。
func NewRedisStateRepo(client redis.UniversalClient, ttl time.Duration) *RedisStateRepo {
	return &RedisStateRepo{client: client, ttl: ttl}
}

func stateKey(id string) string {
	return stateKeyPrefix + id
}

// Put はSET NXでトークンを保存する。
func (r *RedisStateRepo) Put(ctx context.Context, state *model.AuthorizationState) error {
	ok, err := r.client.SetNX(ctx, stateKey(state.ID), state.IssuingIP, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to put oauth state: %w", err)
	}
	if !ok {
		return ErrStateCollision
	}
	return nil
}

// VerifyAndConsume はGETDELでトークンを取り出す。単一コマンドなのでアトミック。
func (r *RedisStateRepo) VerifyAndConsume(ctx context.Context, id, ip string) (bool, error) {
	issuingIP, err := r.client.GetDel(ctx, stateKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return issuingIP == ip, nil
}

// Delete はトークンを削除する。
func (r *RedisStateRepo) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, stateKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete oauth state: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StateRepository = (*RedisStateRepo)(nil)
