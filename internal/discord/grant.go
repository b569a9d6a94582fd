package discord

import (
	"context"
	"errors"
	"fmt"

	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/util"
)

// GrantRequest asks for RoleID to be given to UserID on behalf of ActorID.
type GrantRequest struct {
	GuildID    string
	ActorID    string
	ActorRoles *util.SnowflakeSet
	RoleID     util.Snowflake
	UserID     string
}

// Grant gives the requested role if one of the actor's roles was delegated the right to.
//
// The guild's delegation record is created on first use even when the request is refused, so
// moderators can see that the key exists. A refusal wraps delegation.ErrUnauthorized, a failed
// Discord call wraps ErrPlatformCall.
func (c *Commands) Grant(ctx context.Context, r GrantRequest) (string, error) {
	rec, err := c.grants.LoadOrCreate(ctx, r.GuildID)
	if err != nil {
		return "Couldn't load delegated roles, try again later.", err
	}

	if !rec.Allows(r.ActorRoles, r.RoleID) {
		return fmt.Sprintf("You are not permitted to grant <@&%d>.", r.RoleID),
			fmt.Errorf("%w: user %s asked for role %d", delegation.ErrUnauthorized, r.ActorID, r.RoleID)
	}

	c.logger.Infof("User %s grants role %d to user %s in guild %s.", r.ActorID, r.RoleID, r.UserID, r.GuildID)
	if err := c.platform.AddRole(ctx, r.GuildID, r.UserID, r.RoleID); err != nil {
		if !errors.Is(err, ErrPlatformCall) {
			err = fmt.Errorf("%w: %w", ErrPlatformCall, err)
		}
		return fmt.Sprintf("Couldn't grant <@&%d> to <@%s>.", r.RoleID, r.UserID), err
	}

	return fmt.Sprintf("Granted <@&%d> to <@%s>.", r.RoleID, r.UserID), nil
}
