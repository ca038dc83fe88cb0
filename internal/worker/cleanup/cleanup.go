// Package cleanup は期限切れstateトークンの定期削除ジョブを提供する。
// Redisやメモリのストアは自前で期限切れを処理するため、
// このジョブはPostgreSQLストア使用時のみ起動する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/greetbot/internal/metrics"
	"github.com/hitoshi/greetbot/internal/repository"
)

// DefaultInterval はスイープの実行間隔のデフォルト値。
const DefaultInterval = 5 * time.Minute

// CleanupJob は有効期限を超過したstateトークンを削除するジョブ。
// 削除は冪等で、対象がなくてもエラーにならない。
type CleanupJob struct {
	sweeper repository.ExpiredStateSweeper
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	TTL     time.Duration // stateトークンの有効期間
}

// NewCleanupJob は新しいCleanupJobを生成する。collectorはnilでもよい。
func NewCleanupJob(
	sweeper repository.ExpiredStateSweeper,
	ttl time.Duration,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sweeper: sweeper,
		logger:  logger,
		metrics: collector,
		TTL:     ttl,
	}
}

// Run は期限切れのstateトークンを1回削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.sweeper.DeleteExpired(ctx, j.TTL)
	if err != nil {
		j.logger.Error("stateトークンのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("ttl", j.TTL),
		)
		return fmt.Errorf("stateトークンのクリーンアップに失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordStatesSwept(deleted)
	}

	j.logger.Info("stateトークンのクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Duration("ttl", j.TTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は指定間隔でRunを繰り返す。起動直後にも1回実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("stateクリーンアップジョブを開始しました", slog.Duration("interval", interval))

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("stateクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
