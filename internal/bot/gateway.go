package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	// Intents はゲートウェイで購読するイベント。メンバー参加にはGuildMembers特権が必要。
	Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	defaultEventTimeout = 15 * time.Second
)

// NewSession はボットトークンでDiscordセッションを生成する。
// 接続はGateway.Runで行う。REST呼び出しはOpen前から利用できる。
func NewSession(botToken string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return s, nil
}

// SessionSender はdiscordgoセッションでメッセージを送信する。
type SessionSender struct {
	session *discordgo.Session
}

// NewSessionSender はSessionSenderを生成する。
func NewSessionSender(session *discordgo.Session) *SessionSender {
	return &SessionSender{session: session}
}

// SendMessage はチャンネルにメッセージを送信する。
func (s *SessionSender) SendMessage(ctx context.Context, channelID, content string) error {
	_, err := s.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	return err
}

// Gateway はDiscordゲートウェイのイベントを挨拶処理に橋渡しする。
// 再接続・ハートビートはdiscordgoに任せる。
type Gateway struct {
	session      *discordgo.Session
	greeter      *Greeter
	eventTimeout time.Duration
	baseCtx      context.Context
}

// NewGateway はGatewayを生成し、イベントハンドラーを登録する。
func NewGateway(session *discordgo.Session, greeter *Greeter) *Gateway {
	g := &Gateway{
		session:      session,
		greeter:      greeter,
		eventTimeout: defaultEventTimeout,
		baseCtx:      context.Background(),
	}
	session.AddHandler(g.onReady)
	session.AddHandler(g.onMemberAdd)
	return g
}

// Run はゲートウェイに接続し、ctxがキャンセルされるまでブロックする。
func (g *Gateway) Run(ctx context.Context) error {
	g.baseCtx = ctx
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}
	slog.Info("gateway connected")

	<-ctx.Done()

	if err := g.session.Close(); err != nil {
		return fmt.Errorf("failed to close gateway: %w", err)
	}
	slog.Info("gateway disconnected")
	return nil
}

func (g *Gateway) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{Status: string(discordgo.StatusOnline)}); err != nil {
		slog.Warn("failed to update presence", slog.String("error", err.Error()))
	}
	slog.Info("gateway ready", slog.Int("guilds", len(r.Guilds)))
}

func (g *Gateway) onMemberAdd(_ *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e == nil || e.Member == nil {
		return
	}
	userID := ""
	if e.User != nil {
		userID = e.User.ID
	}

	ctx, cancel := context.WithTimeout(g.baseCtx, g.eventTimeout)
	defer cancel()

	if err := g.greeter.HandleMemberJoin(ctx, e.GuildID, userID); err != nil {
		slog.Error("failed to greet member",
			slog.String("guild_id", e.GuildID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
