package api

import (
	"sort"

	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/util"
)

// Snowflakes are rendered as strings, JSON numbers lose precision above 2^53.

type emojiRoleModel struct {
	Emoji   string `json:"emoji"`
	Mention string `json:"mention"`
	Role    string `json:"role"`
}

type messageRolesModel struct {
	MessageID string            `json:"message"`
	Roles     []*emojiRoleModel `json:"roles"`
}

type grantsModel struct {
	GuildID string              `json:"guild"`
	Grants  map[string][]string `json:"grants"`
}

func newMessageRolesModel(m *rolemap.Mapping) *messageRolesModel {
	keys := make([]string, 0, len(m.EmojiRoles))
	for k := range m.EmojiRoles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mm := &messageRolesModel{MessageID: util.FormatSnowflake(m.MessageID), Roles: make([]*emojiRoleModel, len(keys))}
	for i, k := range keys {
		mention := k
		if e, _, err := emoji.Decode(k); err == nil {
			mention = e.Mention()
		}
		mm.Roles[i] = &emojiRoleModel{Emoji: k, Mention: mention, Role: util.FormatSnowflake(m.EmojiRoles[k])}
	}
	return mm
}

func newGrantsModel(r *delegation.Record) *grantsModel {
	gm := &grantsModel{GuildID: util.FormatSnowflake(r.GuildID), Grants: make(map[string][]string, len(r.Grants))}
	for granter, targets := range r.Grants {
		values := targets.Values()
		ts := make([]string, len(values))
		for i, t := range values {
			ts[i] = util.FormatSnowflake(t)
		}
		gm.Grants[util.FormatSnowflake(granter)] = ts
	}
	return gm
}
