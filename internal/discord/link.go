package discord

import (
	"fmt"
	"regexp"
	"strings"

	"pkg.mon.icu/rolebot/internal/util"
)

// DefaultMessageLink matches message jump links; the groups are guild, channel and message ID.
const DefaultMessageLink = `^https?://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(\d+)/(\d+)/(\d+)/?$`

type messageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// parseMessageRef accepts a jump link or a bare message ID, the latter referring to the channel
// the command was invoked in. Links into other guilds are refused.
func parseMessageRef(link *regexp.Regexp, raw, guildID, channelID string) (messageRef, error) {
	raw = strings.TrimSpace(raw)
	if _, err := util.ParseSnowflake(raw); err == nil {
		return messageRef{GuildID: guildID, ChannelID: channelID, MessageID: raw}, nil
	}

	m := link.FindStringSubmatch(raw)
	if len(m) < 4 {
		return messageRef{}, fmt.Errorf("%w: %q is neither a message link nor an ID", ErrMessageNotFound, raw)
	}
	if m[1] != guildID {
		return messageRef{}, fmt.Errorf("%w: message belongs to guild %s", ErrMessageNotFound, m[1])
	}
	return messageRef{GuildID: m[1], ChannelID: m[2], MessageID: m[3]}, nil
}

func (r messageRef) JumpURL() string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", r.GuildID, r.ChannelID, r.MessageID)
}
