package guild

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestGuildSnapshot_CopiesRolePermissions(t *testing.T) {
	g := &discordgo.Guild{
		ID:      "100",
		Name:    "g",
		OwnerID: "1",
		Roles: []*discordgo.Role{
			{ID: "100", Permissions: discordgo.PermissionSendMessages},
			{ID: "500", Permissions: discordgo.PermissionAdministrator},
		},
	}

	s := guildSnapshot(g)
	assert.Equal(t, "1", s.OwnerID)
	assert.Equal(t, int64(discordgo.PermissionAdministrator), s.RolePermissions["500"])
	assert.Len(t, s.RolePermissions, 2)
}

func TestMemberSnapshot_NilUser(t *testing.T) {
	s := memberSnapshot(&discordgo.Member{Roles: []string{"500"}})
	assert.Equal(t, "", s.UserID)
	assert.Equal(t, []string{"500"}, s.RoleIDs)
}

func TestChannelSnapshot_TextFlag(t *testing.T) {
	text := channelSnapshot(&discordgo.Channel{ID: "1", GuildID: "100", Type: discordgo.ChannelTypeGuildText})
	voice := channelSnapshot(&discordgo.Channel{ID: "2", GuildID: "100", Type: discordgo.ChannelTypeGuildVoice})
	dm := channelSnapshot(&discordgo.Channel{ID: "3", Type: discordgo.ChannelTypeDM})

	assert.True(t, text.Text)
	assert.False(t, voice.Text)
	assert.Equal(t, "", dm.GuildID)
}

func TestWrapRESTError_NotFound(t *testing.T) {
	byStatus := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	byCode := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember},
	}

	assert.ErrorIs(t, wrapRESTError("guild", byStatus), ErrNotFound)
	assert.ErrorIs(t, wrapRESTError("member", fmt.Errorf("wrapped: %w", byCode)), ErrNotFound)
}

func TestWrapRESTError_Other(t *testing.T) {
	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}

	err := wrapRESTError("guild", forbidden)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(wrapRESTError("guild", errors.New("timeout")), ErrNotFound))
}
