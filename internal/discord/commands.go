package discord

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/util"
)

var (
	manageRoles  int64 = discordgo.PermissionManageRoles
	dmPermission       = false
)

func roleOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionRole, Name: name, Description: description, Required: true}
}

func stringOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{Type: discordgo.ApplicationCommandOptionString, Name: name, Description: description, Required: true}
}

var applicationCommands = []*discordgo.ApplicationCommand{
	{
		Name:                     "react_role",
		Description:              "Add a reaction role assignment to a message",
		DefaultMemberPermissions: &manageRoles,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			stringOption("message", "Message link, or ID of a message in this channel"),
			stringOption("emoji", "Emoji to react with"),
			roleOption("role", "Role to assign"),
		},
	},
	{
		Name:                     "react_role_clear",
		Description:              "Remove all reaction role assignments from a message",
		DefaultMemberPermissions: &manageRoles,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			stringOption("message", "Message link, or ID of a message in this channel"),
		},
	},
	{
		Name:                     "delegate_role",
		Description:              "Allow members with one role to grant another role",
		DefaultMemberPermissions: &manageRoles,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			roleOption("granter", "Role whose members may grant"),
			roleOption("target", "Role they may grant"),
		},
	},
	{
		Name:                     "revoke_delegation",
		Description:              "Stop members with one role from granting another role",
		DefaultMemberPermissions: &manageRoles,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			roleOption("granter", "Role whose members may grant"),
			roleOption("target", "Role they may grant"),
		},
	},
	{
		Name:         "grant_role",
		Description:  "Grant a role you have been delegated to another member",
		DMPermission: &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			roleOption("role", "Role to grant"),
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to grant the role to", Required: true},
		},
	},
}

// Invocation is a slash command call reduced to what the handlers need.
type Invocation struct {
	GuildID   string
	ChannelID string
	UserID    string
	Roles     *util.SnowflakeSet
	Options   map[string]string
}

func invocationFrom(i *discordgo.InteractionCreate) (string, *Invocation, bool) {
	if i.Interaction == nil || i.Type != discordgo.InteractionApplicationCommand {
		return "", nil, false
	}
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return "", nil, false
	}

	data := i.ApplicationCommandData()
	inv := &Invocation{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    i.Member.User.ID,
		Roles:     util.ParseSnowflakeSet(i.Member.Roles),
		Options:   make(map[string]string, len(data.Options)),
	}
	for _, o := range data.Options {
		if v, ok := o.Value.(string); ok {
			inv.Options[o.Name] = v
		}
	}
	return data.Name, inv, true
}

func (inv *Invocation) snowflake(name string) (util.Snowflake, error) {
	v, ok := inv.Options[name]
	if !ok {
		return 0, fmt.Errorf("missing option %s", name)
	}
	return util.ParseSnowflake(v)
}

type commandFunc func(ctx context.Context, inv *Invocation) (string, error)

// Commands answers the slash commands. Every handler returns the reply shown to the invoker,
// together with the error that caused a refusal.
type Commands struct {
	logger   *zap.SugaredLogger
	platform Platform
	roles    *rolemap.Store
	grants   *delegation.Graph
	link     *regexp.Regexp
	handlers map[string]commandFunc
}

func NewCommands(log *zap.SugaredLogger, platform Platform, roles *rolemap.Store, grants *delegation.Graph, link *regexp.Regexp) *Commands {
	c := &Commands{logger: log, platform: platform, roles: roles, grants: grants, link: link}
	c.handlers = map[string]commandFunc{
		"react_role":        c.reactRole,
		"react_role_clear":  c.reactRoleClear,
		"delegate_role":     c.delegateRole,
		"revoke_delegation": c.revokeDelegation,
		"grant_role":        c.grantRole,
	}
	return c
}

func (c *Commands) Handle(ctx context.Context, name string, inv *Invocation) (string, error) {
	h, ok := c.handlers[name]
	if !ok {
		return "Unknown command.", fmt.Errorf("unknown command %s", name)
	}
	return h(ctx, inv)
}

// reactRole registers a reaction role on a message. The bot reacts first: that call is where
// Discord tells whether the emoji is usable here.
func (c *Commands) reactRole(ctx context.Context, inv *Invocation) (string, error) {
	notFound := fmt.Sprintf("Cannot find message in channel <#%s>", inv.ChannelID)

	ref, err := parseMessageRef(c.link, inv.Options["message"], inv.GuildID, inv.ChannelID)
	if err != nil {
		return notFound, err
	}
	roleID, err := inv.snowflake("role")
	if err != nil {
		return "A role is required.", err
	}

	if _, err := c.platform.Message(ctx, ref.ChannelID, ref.MessageID); err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return fmt.Sprintf("Cannot find message in channel <#%s>", ref.ChannelID), err
		}
		return "Couldn't fetch the message, try again later.", err
	}

	raw := inv.Options["emoji"]
	k, err := emoji.Parse(raw)
	if err != nil {
		return fmt.Sprintf("%s is not a valid emoji.", raw), err
	}

	if err := c.platform.AddReaction(ctx, ref.ChannelID, ref.MessageID, k); err != nil {
		if k.Kind == emoji.Custom {
			return "Custom emoji can only be used if they belong to the **owning** Discord server.", err
		}
		return fmt.Sprintf("%s is incompatible.", raw), err
	}

	if err := c.roles.Register(ctx, ref.MessageID, k, roleID); err != nil {
		var dup *rolemap.DuplicateKeyError
		if errors.As(err, &dup) {
			return fmt.Sprintf("%s on %s already gives <@&%d>.", k.Mention(), ref.JumpURL(), dup.RoleID), err
		}
		return "Couldn't save the reaction role, try again later.", err
	}

	return fmt.Sprintf("When a user reacts to %s with %s they'll get <@&%d>", ref.JumpURL(), k.Mention(), roleID), nil
}

func (c *Commands) reactRoleClear(ctx context.Context, inv *Invocation) (string, error) {
	ref, err := parseMessageRef(c.link, inv.Options["message"], inv.GuildID, inv.ChannelID)
	if err != nil {
		return fmt.Sprintf("Cannot find message in channel <#%s>", inv.ChannelID), err
	}
	if err := c.roles.Remove(ctx, ref.MessageID); err != nil {
		return "Couldn't clear reaction roles, try again later.", err
	}
	return fmt.Sprintf("Cleared reaction roles of %s.", ref.JumpURL()), nil
}

func (c *Commands) delegationPair(inv *Invocation) (util.Snowflake, util.Snowflake, error) {
	granter, err := inv.snowflake("granter")
	if err != nil {
		return 0, 0, err
	}
	target, err := inv.snowflake("target")
	return granter, target, err
}

func (c *Commands) delegateRole(ctx context.Context, inv *Invocation) (string, error) {
	granter, target, err := c.delegationPair(inv)
	if err != nil {
		return "Both roles are required.", err
	}
	added, err := c.grants.AddGrant(ctx, inv.GuildID, granter, target)
	if err != nil {
		return "Couldn't save the delegation, try again later.", err
	}
	if !added {
		return fmt.Sprintf("Members with <@&%d> can already grant <@&%d>.", granter, target), nil
	}
	return fmt.Sprintf("Members with <@&%d> can now grant <@&%d>.", granter, target), nil
}

func (c *Commands) revokeDelegation(ctx context.Context, inv *Invocation) (string, error) {
	granter, target, err := c.delegationPair(inv)
	if err != nil {
		return "Both roles are required.", err
	}
	removed, err := c.grants.RemoveGrant(ctx, inv.GuildID, granter, target)
	if err != nil {
		return "Couldn't save the delegation, try again later.", err
	}
	if !removed {
		return fmt.Sprintf("Members with <@&%d> could not grant <@&%d>.", granter, target), nil
	}
	return fmt.Sprintf("Members with <@&%d> can no longer grant <@&%d>.", granter, target), nil
}

func (c *Commands) grantRole(ctx context.Context, inv *Invocation) (string, error) {
	roleID, err := inv.snowflake("role")
	if err != nil {
		return "A role is required.", err
	}
	userID, ok := inv.Options["user"]
	if !ok {
		return "A member is required.", errors.New("missing option user")
	}
	return c.Grant(ctx, GrantRequest{
		GuildID:    inv.GuildID,
		ActorID:    inv.UserID,
		ActorRoles: inv.Roles,
		RoleID:     roleID,
		UserID:     userID,
	})
}
