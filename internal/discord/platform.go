package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/util"
)

var (
	// ErrMessageNotFound is returned for bad message links or IDs and deleted messages.
	ErrMessageNotFound = errors.New("message not found")
	// ErrPlatformCall wraps every other failure reported by Discord.
	ErrPlatformCall = errors.New("discord call failed")
)

// Platform is the subset of the Discord API the engine calls.
type Platform interface {
	Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error)
	AddReaction(ctx context.Context, channelID, messageID string, k emoji.Key) error
	AddRole(ctx context.Context, guildID, userID string, roleID util.Snowflake) error
	RemoveRole(ctx context.Context, guildID, userID string, roleID util.Snowflake) error
	Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error)
}

// sessionPlatform implements Platform on a discordgo session, bounding every call by timeout.
type sessionPlatform struct {
	session *discordgo.Session
	timeout time.Duration
}

func newSessionPlatform(s *discordgo.Session, timeout time.Duration) *sessionPlatform {
	return &sessionPlatform{session: s, timeout: timeout}
}

func (p *sessionPlatform) call(ctx context.Context, fn func(discordgo.RequestOption) error) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := fn(discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: %w", ErrPlatformCall, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var rest *discordgo.RESTError
	return errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}

func (p *sessionPlatform) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	var m *discordgo.Message
	err := p.call(ctx, func(opt discordgo.RequestOption) error {
		var err error
		m, err = p.session.ChannelMessage(channelID, messageID, opt)
		return err
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %w", ErrMessageNotFound, err)
	}
	return m, err
}

func (p *sessionPlatform) AddReaction(ctx context.Context, channelID, messageID string, k emoji.Key) error {
	return p.call(ctx, func(opt discordgo.RequestOption) error {
		return p.session.MessageReactionAdd(channelID, messageID, k.APIName(), opt)
	})
}

func (p *sessionPlatform) AddRole(ctx context.Context, guildID, userID string, roleID util.Snowflake) error {
	return p.call(ctx, func(opt discordgo.RequestOption) error {
		return p.session.GuildMemberRoleAdd(guildID, userID, util.FormatSnowflake(roleID), opt)
	})
}

func (p *sessionPlatform) RemoveRole(ctx context.Context, guildID, userID string, roleID util.Snowflake) error {
	return p.call(ctx, func(opt discordgo.RequestOption) error {
		return p.session.GuildMemberRoleRemove(guildID, userID, util.FormatSnowflake(roleID), opt)
	})
}

// Member looks the member up in the gateway state cache before asking the API.
func (p *sessionPlatform) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if p.session.StateEnabled && p.session.State != nil {
		if m, err := p.session.State.Member(guildID, userID); err == nil {
			return m, nil
		}
	}

	var m *discordgo.Member
	err := p.call(ctx, func(opt discordgo.RequestOption) error {
		var err error
		m, err = p.session.GuildMember(guildID, userID, opt)
		return err
	})
	return m, err
}
