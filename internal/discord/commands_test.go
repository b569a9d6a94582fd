package discord

import (
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/storage"
	"pkg.mon.icu/rolebot/internal/util"
)

var testJumpURL = fmt.Sprintf("https://discord.com/channels/%s/%s/%s", testGuildID, testChannelID, testMessageID)

func invocation(options map[string]string, roles ...util.Snowflake) *Invocation {
	return &Invocation{
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		UserID:    testUserID,
		Roles:     util.NewSnowflakeSet(roles),
		Options:   options,
	}
}

func reactRoleOptions(message, raw string) map[string]string {
	return map[string]string{"message": message, "emoji": raw, "role": util.FormatSnowflake(testRoleID)}
}

func mustKey(t *testing.T, raw string) emoji.Key {
	t.Helper()
	k, err := emoji.Parse(raw)
	require.NoError(t, err)
	return k
}

func (f *engineTestFixture) expectMessage(channelID string) {
	f.platform.On("Message", mock.Anything, channelID, testMessageID).Return(&discordgo.Message{ID: testMessageID, ChannelID: channelID}, nil).Once()
}

func TestReactRoleRegistersMapping(t *testing.T) {
	f := setupEngineTest(t)
	f.expectMessage(testChannelID)
	f.platform.On("AddReaction", mock.Anything, testChannelID, testMessageID, mustKey(t, "🎉")).Return(nil).Once()

	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(testMessageID, "🎉")))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("When a user reacts to %s with 🎉 they'll get <@&500>", testJumpURL), reply)

	got, err := f.roles.Resolve(f.ctx, testMessageID, emoji.FromEvent(discordgo.Emoji{Name: "🎉"}))
	require.NoError(t, err)
	assert.Equal(t, testRoleID, got.MustGet())
}

func TestReactRoleByLinkToOtherChannel(t *testing.T) {
	f := setupEngineTest(t)
	otherChannel := "900000000000000099"
	link := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", testGuildID, otherChannel, testMessageID)
	k := mustKey(t, "<:test:1271108294609735701>")

	f.expectMessage(otherChannel)
	f.platform.On("AddReaction", mock.Anything, otherChannel, testMessageID, k).Return(nil).Once()

	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(link, "<:test:1271108294609735701>")))
	require.NoError(t, err)
	assert.Contains(t, reply, link)
	assert.Contains(t, reply, "<:test:1271108294609735701>")
}

func TestReactRoleRejectsForeignGuildLink(t *testing.T) {
	f := setupEngineTest(t)
	link := fmt.Sprintf("https://discord.com/channels/1/%s/%s", testChannelID, testMessageID)

	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(link, "🎉")))
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Equal(t, fmt.Sprintf("Cannot find message in channel <#%s>", testChannelID), reply)
}

func TestReactRoleMessageNotFound(t *testing.T) {
	f := setupEngineTest(t)
	f.platform.On("Message", mock.Anything, testChannelID, testMessageID).Return(nil, fmt.Errorf("%w: 404", ErrMessageNotFound)).Once()

	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(testMessageID, "🎉")))
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Contains(t, reply, "Cannot find message")
	f.platform.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReactRoleUnparseableEmoji(t *testing.T) {
	f := setupEngineTest(t)
	f.expectMessage(testChannelID)

	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(testMessageID, "<:broken>")))
	assert.ErrorIs(t, err, emoji.ErrUnparseable)
	assert.Equal(t, "<:broken> is not a valid emoji.", reply)
}

func TestReactRoleEmojiRejectedByPlatform(t *testing.T) {
	f := setupEngineTest(t)

	f.expectMessage(testChannelID)
	f.platform.On("AddReaction", mock.Anything, testChannelID, testMessageID, mustKey(t, "notanemoji")).Return(ErrPlatformCall).Once()
	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(testMessageID, "notanemoji")))
	assert.ErrorIs(t, err, ErrPlatformCall)
	assert.Equal(t, "notanemoji is incompatible.", reply)

	f.expectMessage(testChannelID)
	f.platform.On("AddReaction", mock.Anything, testChannelID, testMessageID, mustKey(t, "<:foreign:42>")).Return(ErrPlatformCall).Once()
	reply, err = f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(testMessageID, "<:foreign:42>")))
	assert.ErrorIs(t, err, ErrPlatformCall)
	assert.Contains(t, reply, "**owning** Discord server")

	m, err := f.roles.Get(f.ctx, testMessageID)
	assert.ErrorIs(t, err, storage.ErrNotFound, "nothing registered")
	assert.Nil(t, m)
}

func TestReactRoleDuplicateKeepsFirst(t *testing.T) {
	f := setupEngineTest(t)
	f.register(t, "🎉", 1)

	f.expectMessage(testChannelID)
	f.platform.On("AddReaction", mock.Anything, testChannelID, testMessageID, mustKey(t, "🎉")).Return(nil).Once()

	reply, err := f.commands.Handle(f.ctx, "react_role", invocation(reactRoleOptions(testMessageID, "🎉")))
	assert.ErrorIs(t, err, rolemap.ErrDuplicateKey)
	assert.Contains(t, reply, "already gives <@&1>")

	got, err := f.roles.Resolve(f.ctx, testMessageID, mustKey(t, "🎉"))
	require.NoError(t, err)
	assert.Equal(t, util.Snowflake(1), got.MustGet())
}

func TestReactRoleMissingRole(t *testing.T) {
	f := setupEngineTest(t)
	_, err := f.commands.Handle(f.ctx, "react_role", invocation(map[string]string{"message": testMessageID, "emoji": "🎉"}))
	assert.Error(t, err)
}

func TestReactRoleClear(t *testing.T) {
	f := setupEngineTest(t)
	f.register(t, "🎉", testRoleID)

	reply, err := f.commands.Handle(f.ctx, "react_role_clear", invocation(map[string]string{"message": testJumpURL}))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Cleared reaction roles of %s.", testJumpURL), reply)

	got, err := f.roles.Resolve(f.ctx, testMessageID, mustKey(t, "🎉"))
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestDelegateAndRevoke(t *testing.T) {
	f := setupEngineTest(t)
	opts := map[string]string{"granter": "600", "target": "500"}

	reply, err := f.commands.Handle(f.ctx, "delegate_role", invocation(opts))
	require.NoError(t, err)
	assert.Equal(t, "Members with <@&600> can now grant <@&500>.", reply)

	reply, err = f.commands.Handle(f.ctx, "delegate_role", invocation(opts))
	require.NoError(t, err)
	assert.Equal(t, "Members with <@&600> can already grant <@&500>.", reply)

	ok, err := f.grants.Authorize(f.ctx, testGuildID, util.NewSnowflakeSet([]util.Snowflake{testGranterID}), testRoleID)
	require.NoError(t, err)
	assert.True(t, ok)

	reply, err = f.commands.Handle(f.ctx, "revoke_delegation", invocation(opts))
	require.NoError(t, err)
	assert.Equal(t, "Members with <@&600> can no longer grant <@&500>.", reply)

	reply, err = f.commands.Handle(f.ctx, "revoke_delegation", invocation(opts))
	require.NoError(t, err)
	assert.Equal(t, "Members with <@&600> could not grant <@&500>.", reply)
}

func TestDelegateMissingRoles(t *testing.T) {
	f := setupEngineTest(t)
	reply, err := f.commands.Handle(f.ctx, "delegate_role", invocation(map[string]string{"granter": "600"}))
	assert.Error(t, err)
	assert.Equal(t, "Both roles are required.", reply)
}

func TestUnknownCommand(t *testing.T) {
	f := setupEngineTest(t)
	reply, err := f.commands.Handle(f.ctx, "nope", invocation(nil))
	assert.Error(t, err)
	assert.Equal(t, "Unknown command.", reply)
}

func TestInvocationFrom(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   testGuildID,
		ChannelID: testChannelID,
		Member:    &discordgo.Member{User: &discordgo.User{ID: testUserID}, Roles: []string{"600", "700"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "grant_role",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "500"},
				{Name: "user", Type: discordgo.ApplicationCommandOptionUser, Value: testOtherUser},
			},
		},
	}}

	name, inv, ok := invocationFrom(i)
	require.True(t, ok)
	assert.Equal(t, "grant_role", name)
	assert.Equal(t, testUserID, inv.UserID)
	assert.Equal(t, []util.Snowflake{600, 700}, inv.Roles.Values())
	assert.Equal(t, map[string]string{"role": "500", "user": testOtherUser}, inv.Options)

	i.GuildID = ""
	_, _, ok = invocationFrom(i)
	assert.False(t, ok, "direct messages are not served")

	i.GuildID, i.Type = testGuildID, discordgo.InteractionPing
	_, _, ok = invocationFrom(i)
	assert.False(t, ok)
}

func TestApplicationCommandsMatchHandlers(t *testing.T) {
	f := setupEngineTest(t)
	require.Len(t, applicationCommands, len(f.commands.handlers))
	for _, c := range applicationCommands {
		assert.Contains(t, f.commands.handlers, c.Name)
	}
}

func TestParseMessageRef(t *testing.T) {
	link := regexp.MustCompile(DefaultMessageLink)

	ref, err := parseMessageRef(link, " "+testMessageID+" ", testGuildID, testChannelID)
	require.NoError(t, err)
	assert.Equal(t, messageRef{testGuildID, testChannelID, testMessageID}, ref)
	assert.Equal(t, testJumpURL, ref.JumpURL())

	for _, host := range []string{"discord.com", "ptb.discord.com", "canary.discord.com", "discordapp.com"} {
		ref, err = parseMessageRef(link, fmt.Sprintf("https://%s/channels/%s/77/88", host, testGuildID), testGuildID, testChannelID)
		require.NoError(t, err, host)
		assert.Equal(t, messageRef{testGuildID, "77", "88"}, ref)
	}

	_, err = parseMessageRef(link, "https://example.com/channels/1/2/3", testGuildID, testChannelID)
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, err = parseMessageRef(link, "hello", testGuildID, testChannelID)
	assert.True(t, errors.Is(err, ErrMessageNotFound))
}

func TestGrantRoleAuthorized(t *testing.T) {
	f := setupEngineTest(t)
	_, err := f.grants.AddGrant(f.ctx, testGuildID, testGranterID, testRoleID)
	require.NoError(t, err)

	f.platform.On("AddRole", mock.Anything, testGuildID, testOtherUser, testRoleID).Return(nil).Once()

	reply, err := f.commands.Handle(f.ctx, "grant_role", invocation(map[string]string{"role": "500", "user": testOtherUser}, testGranterID))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Granted <@&500> to <@%s>.", testOtherUser), reply)
	f.platform.AssertNumberOfCalls(t, "AddRole", 1)
}

func TestGrantRoleUnauthorized(t *testing.T) {
	f := setupEngineTest(t)
	_, err := f.grants.AddGrant(f.ctx, testGuildID, testGranterID, testRoleID)
	require.NoError(t, err)

	reply, err := f.commands.Handle(f.ctx, "grant_role", invocation(map[string]string{"role": "500", "user": testOtherUser}, 1, 2))
	assert.ErrorIs(t, err, delegation.ErrUnauthorized)
	assert.Equal(t, "You are not permitted to grant <@&500>.", reply)
	f.platform.AssertNotCalled(t, "AddRole", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGrantCreatesRecordEvenWhenRefused(t *testing.T) {
	f := setupEngineTest(t)

	_, err := f.commands.Grant(f.ctx, GrantRequest{GuildID: testGuildID, ActorID: testUserID, ActorRoles: util.NewSnowflakeSet(nil), RoleID: testRoleID, UserID: testOtherUser})
	assert.ErrorIs(t, err, delegation.ErrUnauthorized)

	rec, err := f.grants.Get(f.ctx, testGuildID)
	require.NoError(t, err)
	assert.Empty(t, rec.Grants)
}

func TestGrantPlatformFailureIsDistinct(t *testing.T) {
	f := setupEngineTest(t)
	_, err := f.grants.AddGrant(f.ctx, testGuildID, testGranterID, testRoleID)
	require.NoError(t, err)

	f.platform.On("AddRole", mock.Anything, testGuildID, testOtherUser, testRoleID).Return(errors.New("role hierarchy")).Once()

	reply, err := f.commands.Grant(f.ctx, GrantRequest{GuildID: testGuildID, ActorID: testUserID, ActorRoles: util.NewSnowflakeSet([]util.Snowflake{testGranterID}), RoleID: testRoleID, UserID: testOtherUser})
	assert.ErrorIs(t, err, ErrPlatformCall)
	assert.NotErrorIs(t, err, delegation.ErrUnauthorized)
	assert.Equal(t, fmt.Sprintf("Couldn't grant <@&500> to <@%s>.", testOtherUser), reply)
}

func TestGrantRoleMissingUser(t *testing.T) {
	f := setupEngineTest(t)
	reply, err := f.commands.Handle(f.ctx, "grant_role", invocation(map[string]string{"role": "500"}))
	assert.Error(t, err)
	assert.Equal(t, "A member is required.", reply)
}
