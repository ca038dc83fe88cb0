// Package guild はギルド・メンバー・チャンネル情報の参照と管理者権限の判定を提供する。
package guild

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrNotFound はディレクトリに対象が存在しない場合に返される。
var ErrNotFound = errors.New("not found")

// Snapshot は権限判定に必要なギルド情報の写し。
type Snapshot struct {
	ID              string
	Name            string
	OwnerID         string
	RolePermissions map[string]int64
}

// MemberSnapshot はギルドメンバーの写し。
type MemberSnapshot struct {
	UserID  string
	RoleIDs []string
}

// ChannelSnapshot はチャンネルの写し。GuildIDが空ならギルド外（DM等）。
type ChannelSnapshot struct {
	ID      string
	GuildID string
	Name    string
	Text    bool
}

// Directory はギルド・メンバー・チャンネルを解決する。
// 見つからない場合はErrNotFoundをラップして返す。
type Directory interface {
	Guild(ctx context.Context, guildID string) (*Snapshot, error)
	Member(ctx context.Context, guildID, userID string) (*MemberSnapshot, error)
	Channel(ctx context.Context, channelID string) (*ChannelSnapshot, error)
	GuildChannels(ctx context.Context, guildID string) ([]ChannelSnapshot, error)
	// BotGuildIDs はボットが参加しているギルドのIDを返す。
	BotGuildIDs(ctx context.Context) ([]string, error)
}

// HasAdministratorStanding はメンバーがギルドのオーナーであるか、
// Administrator権限を含むロールを持つ場合にtrueを返す。
// @everyoneロール（ID = ギルドID）は全メンバーが暗黙的に保持する。
func HasAdministratorStanding(g Snapshot, m MemberSnapshot) bool {
	if g.OwnerID != "" && g.OwnerID == m.UserID {
		return true
	}

	if isAdministrator(g.RolePermissions[g.ID]) {
		return true
	}
	for _, roleID := range m.RoleIDs {
		if isAdministrator(g.RolePermissions[roleID]) {
			return true
		}
	}
	return false
}

func isAdministrator(perms int64) bool {
	return perms&discordgo.PermissionAdministrator != 0
}
