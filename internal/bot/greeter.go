// Package bot はDiscordゲートウェイ接続と新規メンバーへの挨拶送信を提供する。
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/greetbot/internal/metrics"
	"github.com/hitoshi/greetbot/internal/repository"
)

// MessageSender はチャンネルへのメッセージ送信を抽象化する。
type MessageSender interface {
	SendMessage(ctx context.Context, channelID, content string) error
}

// Greeter は新規メンバー参加時に設定済みの挨拶を送信する。
type Greeter struct {
	repo    repository.GreetingRepository
	sender  MessageSender
	metrics metrics.MetricsCollector
}

// NewGreeter はGreeterを生成する。metricsはnilでもよい。
func NewGreeter(repo repository.GreetingRepository, sender MessageSender, collector metrics.MetricsCollector) *Greeter {
	return &Greeter{repo: repo, sender: sender, metrics: collector}
}

// HandleMemberJoin はギルドに挨拶設定があれば、そのチャンネルへメッセージを送る。
// 設定がない場合は何もしない。
func (g *Greeter) HandleMemberJoin(ctx context.Context, guildID, userID string) error {
	greeting, err := g.repo.FindByGuildID(ctx, guildID)
	if err != nil {
		g.recordFailure("lookup_failed")
		return fmt.Errorf("failed to load greeting: %w", err)
	}
	if greeting == nil {
		return nil
	}

	if err := g.sender.SendMessage(ctx, greeting.ChannelID, greeting.Message); err != nil {
		g.recordFailure("send_failed")
		return fmt.Errorf("failed to send greeting: %w", err)
	}

	if g.metrics != nil {
		g.metrics.RecordGreetingSent()
	}
	slog.Debug("greeting sent",
		slog.String("guild_id", guildID),
		slog.String("channel_id", greeting.ChannelID),
		slog.String("user_id", userID),
	)
	return nil
}

func (g *Greeter) recordFailure(reason string) {
	if g.metrics != nil {
		g.metrics.RecordGreetingFailure(reason)
	}
}
