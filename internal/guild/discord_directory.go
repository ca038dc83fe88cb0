package guild

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

const userGuildsPageSize = 200

// DiscordDirectory はDiscord REST APIを使ってDirectoryを実装する。
type DiscordDirectory struct {
	session *discordgo.Session
}

// NewDiscordDirectory はDiscordDirectoryを生成する。
func NewDiscordDirectory(session *discordgo.Session) *DiscordDirectory {
	return &DiscordDirectory{session: session}
}

// Guild はギルドを取得する。
func (d *DiscordDirectory) Guild(ctx context.Context, guildID string) (*Snapshot, error) {
	g, err := d.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError("guild", err)
	}
	s := guildSnapshot(g)
	return &s, nil
}

// Member はギルドメンバーを取得する。
func (d *DiscordDirectory) Member(ctx context.Context, guildID, userID string) (*MemberSnapshot, error) {
	m, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError("member", err)
	}
	s := memberSnapshot(m)
	return &s, nil
}

// Channel はチャンネルを取得する。
func (d *DiscordDirectory) Channel(ctx context.Context, channelID string) (*ChannelSnapshot, error) {
	ch, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError("channel", err)
	}
	s := channelSnapshot(ch)
	return &s, nil
}

// GuildChannels はギルドのチャンネル一覧を取得する。
func (d *DiscordDirectory) GuildChannels(ctx context.Context, guildID string) ([]ChannelSnapshot, error) {
	chs, err := d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapRESTError("guild channels", err)
	}
	out := make([]ChannelSnapshot, 0, len(chs))
	for _, ch := range chs {
		out = append(out, channelSnapshot(ch))
	}
	return out, nil
}

// BotGuildIDs はボットが参加しているギルドをページングしながら全件取得する。
func (d *DiscordDirectory) BotGuildIDs(ctx context.Context) ([]string, error) {
	var ids []string
	after := ""
	for {
		page, err := d.session.UserGuilds(userGuildsPageSize, "", after, false, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrapRESTError("user guilds", err)
		}
		for _, g := range page {
			ids = append(ids, g.ID)
		}
		if len(page) < userGuildsPageSize {
			return ids, nil
		}
		after = page[len(page)-1].ID
	}
}

func guildSnapshot(g *discordgo.Guild) Snapshot {
	perms := make(map[string]int64, len(g.Roles))
	for _, r := range g.Roles {
		perms[r.ID] = r.Permissions
	}
	return Snapshot{ID: g.ID, Name: g.Name, OwnerID: g.OwnerID, RolePermissions: perms}
}

func memberSnapshot(m *discordgo.Member) MemberSnapshot {
	s := MemberSnapshot{RoleIDs: append([]string(nil), m.Roles...)}
	if m.User != nil {
		s.UserID = m.User.ID
	}
	return s
}

func channelSnapshot(ch *discordgo.Channel) ChannelSnapshot {
	return ChannelSnapshot{
		ID:      ch.ID,
		GuildID: ch.GuildID,
		Name:    ch.Name,
		Text:    ch.Type == discordgo.ChannelTypeGuildText,
	}
}

// wrapRESTError は404とUnknown系エラーコードをErrNotFoundに変換する。
func wrapRESTError(what string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return true
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownGuild, discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownChannel:
			return true
		}
	}
	return false
}

// compile-time interface check
var _ Directory = (*DiscordDirectory)(nil)
