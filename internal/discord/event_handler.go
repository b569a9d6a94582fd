package discord

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

func (d *Discord) shouldLogError(err error) bool {
	return !(err == nil || errors.Is(err, context.Canceled))
}

func (d *Discord) onReady(_ *discordgo.Session, e *discordgo.Ready) {
	d.logger.Infof("Logged in Discord API as %s.", e.User)
	d.selfID.Store(e.User.ID)

	if d.config.registerCommands {
		d.registerCommands(e.User.ID)
	}
}

func (d *Discord) onMessageReactionAdd(_ *discordgo.Session, e *discordgo.MessageReactionAdd) {
	d.reactions.Process(d.ctx, reactionEvent(e.MessageReaction, true, e.Member))
}

func (d *Discord) onMessageReactionRemove(_ *discordgo.Session, e *discordgo.MessageReactionRemove) {
	d.reactions.Process(d.ctx, reactionEvent(e.MessageReaction, false, nil))
}

func (d *Discord) onMessageDelete(_ *discordgo.Session, e *discordgo.MessageDelete) {
	d.messages.Deleted(d.ctx, e.ID)
}

func (d *Discord) onMessageDeleteBulk(_ *discordgo.Session, e *discordgo.MessageDeleteBulk) {
	d.logger.Debugf("Bulk-deleting role mappings of %d messages.", len(e.Messages))
	for _, m := range e.Messages {
		d.messages.Deleted(d.ctx, m)
	}
}

// onInteractionCreate answers slash commands: the response is deferred as ephemeral first and
// edited once the command finished.
func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name, inv, ok := invocationFrom(i)
	if !ok {
		return
	}
	if !guildAllowed(d.config.guilds, inv.GuildID) {
		d.logger.Debugf("Ignoring command %s from ignored guild %s.", name, inv.GuildID)
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		d.logger.Errorf("Failed to defer response to command %s: %s.", name, err)
		return
	}

	reply, err := d.commands.Handle(d.ctx, name, inv)
	if d.shouldLogError(err) {
		d.logger.Infof("Command %s by user %s in guild %s refused: %s.", name, inv.UserID, inv.GuildID, err)
	}

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &reply}); err != nil {
		d.logger.Errorf("Failed to respond to command %s: %s.", name, err)
	}
}
