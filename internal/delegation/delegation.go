// Package delegation persists which roles may hand out which other roles in a guild.
package delegation

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"pkg.mon.icu/rolebot/internal/storage"
	"pkg.mon.icu/rolebot/internal/util"
)

// ErrUnauthorized is returned when none of the actor's roles may grant the target role.
var ErrUnauthorized = errors.New("not permitted to grant this role")

// Record is the persisted delegation graph of one guild: granter role -> grantable roles.
type Record struct {
	GuildID util.Snowflake                        `json:"GuildId"`
	Grants  map[util.Snowflake]*util.SnowflakeSet `json:"Grants"`
}

func recordKey(guildID string) string {
	return "Grants/" + guildID
}

// Allows reports whether any of roles may grant target.
func (r *Record) Allows(roles *util.SnowflakeSet, target util.Snowflake) bool {
	for _, role := range roles.Values() {
		if r.Grants[role].Contains(target) {
			return true
		}
	}
	return false
}

func (r *Record) init(guildID util.Snowflake) {
	r.GuildID = guildID
	if r.Grants == nil {
		r.Grants = map[util.Snowflake]*util.SnowflakeSet{}
	}
	// null entries can come from records edited by hand
	for granter, set := range r.Grants {
		if set == nil {
			delete(r.Grants, granter)
		}
	}
}

type Graph struct {
	logger  *zap.SugaredLogger
	records *storage.Records[Record]
}

func NewGraph(kv storage.KV, maxAttempts int, l *zap.SugaredLogger) *Graph {
	return &Graph{logger: l, records: storage.NewRecords[Record](kv, maxAttempts)}
}

func (g *Graph) update(ctx context.Context, guildID string, fn func(r *Record) bool) (*Record, error) {
	gid, err := util.ParseSnowflake(guildID)
	if err != nil {
		return nil, err
	}
	return g.records.Update(ctx, recordKey(guildID), func(r *Record, exists bool) (bool, error) {
		r.init(gid)
		changed := fn(r)
		return changed || !exists, nil
	})
}

// LoadOrCreate returns the guild's record, persisting an empty one if none existed yet.
func (g *Graph) LoadOrCreate(ctx context.Context, guildID string) (*Record, error) {
	return g.update(ctx, guildID, func(*Record) bool { return false })
}

// AddGrant allows holders of granter to grant target. It reports whether the pair was new.
func (g *Graph) AddGrant(ctx context.Context, guildID string, granter, target util.Snowflake) (bool, error) {
	var added bool
	if _, err := g.update(ctx, guildID, func(r *Record) bool {
		set := r.Grants[granter]
		if set == nil {
			set = util.NewSnowflakeSet(nil)
			r.Grants[granter] = set
		}
		added = set.Insert(target)
		return added
	}); err != nil {
		return false, err
	}

	if added {
		g.logger.Debugf("Role %d may now grant role %d in guild %s.", granter, target, guildID)
	}
	return added, nil
}

// RemoveGrant revokes a granter/target pair. It reports whether the pair existed.
func (g *Graph) RemoveGrant(ctx context.Context, guildID string, granter, target util.Snowflake) (bool, error) {
	var removed bool
	if _, err := g.update(ctx, guildID, func(r *Record) bool {
		set := r.Grants[granter]
		if set == nil {
			return false
		}
		removed = set.Remove(target)
		if set.Len() == 0 {
			delete(r.Grants, granter)
		}
		return removed
	}); err != nil {
		return false, err
	}
	return removed, nil
}

// Authorize reports whether any of actorRoles may grant target in the guild. A guild without a
// record authorizes nothing.
func (g *Graph) Authorize(ctx context.Context, guildID string, actorRoles *util.SnowflakeSet, target util.Snowflake) (bool, error) {
	r, err := g.Get(ctx, guildID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return r.Allows(actorRoles, target), nil
}

// Get returns the stored record of the guild or storage.ErrNotFound.
func (g *Graph) Get(ctx context.Context, guildID string) (*Record, error) {
	r, _, err := g.records.Load(ctx, recordKey(guildID))
	if err != nil {
		return nil, err
	}
	if r.Grants == nil {
		r.Grants = map[util.Snowflake]*util.SnowflakeSet{}
	}
	return r, nil
}
