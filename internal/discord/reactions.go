package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/stats"
	"pkg.mon.icu/rolebot/internal/util"
)

// Sink receives the outcome of every event that has no user-visible response.
type Sink interface {
	Observe(e stats.Event, o stats.Outcome, err error)
}

// ReactionEvent is a reaction added to or removed from a message.
type ReactionEvent struct {
	Added     bool
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Emoji     discordgo.Emoji
	Member    *discordgo.Member // sent with additions only
}

func reactionEvent(r *discordgo.MessageReaction, added bool, member *discordgo.Member) ReactionEvent {
	return ReactionEvent{
		Added:     added,
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji,
		Member:    member,
	}
}

func (e ReactionEvent) kind() stats.Event {
	if e.Added {
		return stats.ReactionAdded
	}
	return stats.ReactionRemoved
}

// ReactionProcessor turns reactions on mapped messages into role additions and removals.
// Failures are reported to the sink and never retried; the user reacting again is the retry.
type ReactionProcessor struct {
	logger   *zap.SugaredLogger
	platform Platform
	roles    *rolemap.Store
	sink     Sink
	guilds   *util.SnowflakeSet
	selfID   *atomic.String
}

func NewReactionProcessor(log *zap.SugaredLogger, platform Platform, roles *rolemap.Store, sink Sink, guilds *util.SnowflakeSet, selfID *atomic.String) *ReactionProcessor {
	return &ReactionProcessor{logger: log, platform: platform, roles: roles, sink: sink, guilds: guilds, selfID: selfID}
}

// Process handles one reaction event and returns its outcome.
func (p *ReactionProcessor) Process(ctx context.Context, e ReactionEvent) stats.Outcome {
	o, err := p.process(ctx, e)
	p.sink.Observe(e.kind(), o, err)
	return o
}

func (p *ReactionProcessor) process(ctx context.Context, e ReactionEvent) (stats.Outcome, error) {
	if !guildAllowed(p.guilds, e.GuildID) {
		p.logger.Debugf("Ignoring reaction on message %s from ignored guild %s.", e.MessageID, e.GuildID)
		return stats.IgnoredGuild, nil
	}
	if self := p.selfID.Load(); self != "" && e.UserID == self {
		return stats.Self, nil
	}

	k := emoji.FromEvent(e.Emoji)
	role, err := p.roles.Resolve(ctx, e.MessageID, k)
	if err != nil {
		return stats.StoreFailed, err
	}
	roleID, ok := role.Get()
	if !ok {
		p.logger.Debugf("No role mapped to emoji %s on message %s.", k, e.MessageID)
		return stats.NoMapping, nil
	}

	member := e.Member
	if member == nil {
		member, err = p.platform.Member(ctx, e.GuildID, e.UserID)
		if err != nil || member == nil {
			p.logger.Debugf("Could not resolve member %s of guild %s: %v.", e.UserID, e.GuildID, err)
			return stats.NoMember, nil
		}
	}
	userID := e.UserID
	if member.User != nil && member.User.ID != "" {
		userID = member.User.ID
	}

	if e.Added {
		p.logger.Infof("Adding role %d to user %s for emoji %s on message %s.", roleID, userID, k, e.MessageID)
		err = p.platform.AddRole(ctx, e.GuildID, userID, roleID)
	} else {
		p.logger.Infof("Removing role %d from user %s for emoji %s on message %s.", roleID, userID, k, e.MessageID)
		err = p.platform.RemoveRole(ctx, e.GuildID, userID, roleID)
	}
	if err != nil {
		return stats.PlatformFailed, err
	}
	return stats.Applied, nil
}

// MessageSync drops role mappings of deleted messages.
type MessageSync struct {
	logger *zap.SugaredLogger
	roles  *rolemap.Store
	sink   Sink
}

func NewMessageSync(log *zap.SugaredLogger, roles *rolemap.Store, sink Sink) *MessageSync {
	return &MessageSync{logger: log, roles: roles, sink: sink}
}

// Deleted removes the mapping of messageID, if there is one.
func (m *MessageSync) Deleted(ctx context.Context, messageID string) stats.Outcome {
	if err := m.roles.Remove(ctx, messageID); err != nil {
		m.sink.Observe(stats.MessageDeleted, stats.StoreFailed, err)
		return stats.StoreFailed
	}
	m.logger.Debugf("Cleared role mapping of deleted message %s.", messageID)
	m.sink.Observe(stats.MessageDeleted, stats.Cleared, nil)
	return stats.Cleared
}

func guildAllowed(guilds *util.SnowflakeSet, guildID string) bool {
	if guilds.Len() == 0 {
		return true
	}
	id, err := util.ParseSnowflake(guildID)
	return err == nil && guilds.Contains(id)
}
