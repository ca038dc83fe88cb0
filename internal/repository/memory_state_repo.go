package repository

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hitoshi/greetbot/internal/model"
)

// MemoryStateRepo はプロセス内メモリを使用したstateトークンリポジトリ。
// 単一プロセスでの開発・テスト用。期限切れエントリはgo-cacheのjanitorが回収する。
type MemoryStateRepo struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewMemoryStateRepo はMemoryStateRepoを生成する。
func NewMemoryStateRepo(ttl, cleanupInterval time.Duration) *MemoryStateRepo {
	return &MemoryStateRepo{cache: gocache.New(ttl, cleanupInterval)}
}

// Put はトークンを保存する。
func (r *MemoryStateRepo) Put(_ context.Context, state *model.AuthorizationState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.cache.Add(state.ID, state.IssuingIP, gocache.DefaultExpiration); err != nil {
		return ErrStateCollision
	}
	return nil
}

// VerifyAndConsume は取得と削除を同一ロック内で行う。
func (r *MemoryStateRepo) VerifyAndConsume(_ context.Context, id, ip string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, found := r.cache.Get(id)
	r.cache.Delete(id)
	if !found {
		return false, nil
	}

	issuingIP, _ := v.(string)
	return issuingIP == ip, nil
}

// Delete はトークンを削除する。
func (r *MemoryStateRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Delete(id)
	return nil
}

// Len は保持しているトークン数を返す。期限切れで未回収のものを含む。
func (r *MemoryStateRepo) Len() int {
	return r.cache.ItemCount()
}

// compile-time interface check
var _ StateRepository = (*MemoryStateRepo)(nil)
