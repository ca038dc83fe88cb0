// Package greeting はギルドごとの挨拶設定の参照・更新を提供する。
package greeting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/greetbot/internal/guild"
	"github.com/hitoshi/greetbot/internal/metrics"
	"github.com/hitoshi/greetbot/internal/model"
	"github.com/hitoshi/greetbot/internal/repository"
)

// コンソール表示時のギルド並列取得数
const consoleConcurrency = 4

// ChannelOption はコンソールで選択可能なテキストチャンネル。
type ChannelOption struct {
	ID   string
	Name string
}

// ConsoleGuild は呼び出し元が管理者であるギルドの表示用情報。
type ConsoleGuild struct {
	ID       string
	Name     string
	Channels []ChannelOption
	Greeting *model.Greeting
}

// Service は挨拶設定に関するビジネスロジックを提供する。
type Service struct {
	repo    repository.GreetingRepository
	dir     guild.Directory
	checker *guild.Checker
	metrics metrics.MetricsCollector
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(repo repository.GreetingRepository, dir guild.Directory, collector metrics.MetricsCollector) *Service {
	return &Service{
		repo:    repo,
		dir:     dir,
		checker: guild.NewChecker(dir),
		metrics: collector,
	}
}

// ListConsole はボットが参加しているギルドのうち、ユーザーが管理者であるものを返す。
// メンバーでないギルドや解決できないギルドは黙って除外する。
func (s *Service) ListConsole(ctx context.Context, userID uint64) ([]ConsoleGuild, error) {
	guildIDs, err := s.dir.BotGuildIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bot guilds: %w", err)
	}

	results := make([]*ConsoleGuild, len(guildIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(consoleConcurrency)

	for i, guildID := range guildIDs {
		eg.Go(func() error {
			cg, err := s.consoleGuild(egCtx, guildID, userID)
			if err != nil {
				return err
			}
			results[i] = cg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]ConsoleGuild, 0, len(results))
	for _, cg := range results {
		if cg != nil {
			out = append(out, *cg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// consoleGuild は管理者でなければnilを返す。
func (s *Service) consoleGuild(ctx context.Context, guildID string, userID uint64) (*ConsoleGuild, error) {
	g, err := s.dir.Guild(ctx, guildID)
	if errors.Is(err, guild.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guild %s: %w", guildID, err)
	}

	m, err := s.dir.Member(ctx, guildID, strconv.FormatUint(userID, 10))
	if errors.Is(err, guild.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member in %s: %w", guildID, err)
	}

	if !guild.HasAdministratorStanding(*g, *m) {
		return nil, nil
	}

	channels, err := s.dir.GuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels of %s: %w", guildID, err)
	}
	options := make([]ChannelOption, 0, len(channels))
	for _, ch := range channels {
		if ch.Text {
			options = append(options, ChannelOption{ID: ch.ID, Name: ch.Name})
		}
	}

	current, err := s.repo.FindByGuildID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to load greeting of %s: %w", guildID, err)
	}

	return &ConsoleGuild{ID: g.ID, Name: g.Name, Channels: options, Greeting: current}, nil
}

// UpdateGreeting はチャンネルの属するギルドの挨拶設定を更新する。
// 呼び出し元はそのギルドの管理者でなければならない。
func (s *Service) UpdateGreeting(ctx context.Context, userID uint64, channelID, message string) (*model.Greeting, error) {
	message = strings.TrimSpace(message)
	if err := ValidateMessage(message); err != nil {
		return nil, err
	}
	if channelID == "" {
		return nil, model.NewInvalidRequestError("channel_idは必須です")
	}

	// 1. チャンネルを解決
	ch, err := s.dir.Channel(ctx, channelID)
	if errors.Is(err, guild.ErrNotFound) {
		return nil, model.NewUnknownChannelError(channelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channel: %w", err)
	}
	if ch.GuildID == "" {
		return nil, model.NewChannelNotInGuildError()
	}
	if !ch.Text {
		return nil, model.NewInvalidRequestError("テキストチャンネルを指定してください")
	}

	// 2. 管理者権限を確認
	isAdmin, err := s.checker.IsAdministrator(ctx, ch.GuildID, userID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, model.NewNotAdministratorError()
	}

	// 3. 保存
	greeting := &model.Greeting{GuildID: ch.GuildID, ChannelID: ch.ID, Message: message}
	if err := s.repo.Upsert(ctx, greeting); err != nil {
		return nil, fmt.Errorf("failed to save greeting: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordGreetingUpdated()
	}
	slog.Info("greeting updated",
		slog.String("guild_id", greeting.GuildID),
		slog.String("channel_id", greeting.ChannelID),
		slog.Uint64("user_id", userID),
	)
	return greeting, nil
}

// ValidateMessage は挨拶メッセージの長さを検証する。
func ValidateMessage(message string) error {
	if message == "" {
		return model.NewInvalidGreetingError("メッセージが空です")
	}
	if n := utf8.RuneCountInString(message); n > model.MaxGreetingLength {
		return model.NewInvalidGreetingError(fmt.Sprintf("%d文字を超えています（%d文字）", model.MaxGreetingLength, n))
	}
	return nil
}
