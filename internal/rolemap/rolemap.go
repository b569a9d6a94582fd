// Package rolemap persists which role each emoji reaction on a message grants.
//
// One record is stored per message under "RoleData/{messageID}". Records written before emoji
// normalization existed keep the user-typed text as key; such keys are rewritten to the canonical
// encoding whenever a record is loaded, and those that cannot be parsed are still found through the
// historical prefix match.
package rolemap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/mo"
	"go.uber.org/zap"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/storage"
	"pkg.mon.icu/rolebot/internal/util"
)

// ErrDuplicateKey is returned when the emoji is already mapped on the message.
var ErrDuplicateKey = errors.New("emoji is already mapped on this message")

// DuplicateKeyError names the role the emoji is already mapped to.
type DuplicateKeyError struct {
	Emoji  emoji.Key
	RoleID util.Snowflake
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("emoji %s is already mapped to role %d", e.Emoji, e.RoleID)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// Mapping is the persisted record of one message. Field names match historical records.
type Mapping struct {
	MessageID  util.Snowflake            `json:"MessageId"`
	EmojiRoles map[string]util.Snowflake `json:"EmojiRoles"`
}

func recordKey(messageID string) string {
	return "RoleData/" + messageID
}

// sortedKeys gives lookups a stable order.
func (m *Mapping) sortedKeys() []string {
	keys := make([]string, 0, len(m.EmojiRoles))
	for k := range m.EmojiRoles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Mapping) lookup(k emoji.Key) (util.Snowflake, bool) {
	if r, ok := m.EmojiRoles[k.String()]; ok {
		return r, true
	}
	for _, stored := range m.sortedKeys() {
		if emoji.LegacyMatch(stored, k) {
			return m.EmojiRoles[stored], true
		}
	}
	return 0, false
}

// migrate rewrites parseable legacy keys to their canonical form and reports whether anything
// changed. When a canonical entry already exists it wins and the legacy one is dropped.
func (m *Mapping) migrate() bool {
	changed := false
	for _, stored := range m.sortedKeys() {
		if !strings.HasPrefix(stored, "<") {
			continue
		}
		k, legacy, err := emoji.Decode(stored)
		if !legacy || err != nil {
			continue
		}
		if _, exists := m.EmojiRoles[k.String()]; !exists {
			m.EmojiRoles[k.String()] = m.EmojiRoles[stored]
		}
		delete(m.EmojiRoles, stored)
		changed = true
	}
	return changed
}

type Store struct {
	logger  *zap.SugaredLogger
	records *storage.Records[Mapping]
}

func NewStore(kv storage.KV, maxAttempts int, l *zap.SugaredLogger) *Store {
	return &Store{logger: l, records: storage.NewRecords[Mapping](kv, maxAttempts)}
}

// Register maps emoji k on message messageID to roleID. The first registration of an emoji on a
// message wins; later ones fail with a *DuplicateKeyError.
func (s *Store) Register(ctx context.Context, messageID string, k emoji.Key, roleID util.Snowflake) error {
	mid, err := util.ParseSnowflake(messageID)
	if err != nil {
		return err
	}

	_, err = s.records.Update(ctx, recordKey(messageID), func(m *Mapping, exists bool) (bool, error) {
		changed := !exists
		m.MessageID = mid
		if m.EmojiRoles == nil {
			m.EmojiRoles = map[string]util.Snowflake{}
		}
		if m.migrate() {
			changed = true
		}

		if r, ok := m.lookup(k); ok {
			return changed, &DuplicateKeyError{Emoji: k, RoleID: r}
		}
		m.EmojiRoles[k.String()] = roleID
		return true, nil
	})
	if err != nil {
		return err
	}

	s.logger.Debugf("Registered emoji %s on message %s for role %d.", k, messageID, roleID)
	return nil
}

// Resolve returns the role mapped to emoji k on message messageID, if any.
func (s *Store) Resolve(ctx context.Context, messageID string, k emoji.Key) (mo.Option[util.Snowflake], error) {
	m, err := s.Get(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return mo.None[util.Snowflake](), nil
	} else if err != nil {
		return mo.None[util.Snowflake](), err
	}

	if r, ok := m.lookup(k); ok {
		return mo.Some(r), nil
	}
	return mo.None[util.Snowflake](), nil
}

// Get loads the record of messageID, migrating legacy keys on the way. A record that needs
// migration is rewritten under the key lock from a fresh load, so a concurrent delete or
// registration is never overwritten; if the write fails the migrated copy is still served.
func (s *Store) Get(ctx context.Context, messageID string) (*Mapping, error) {
	key := recordKey(messageID)
	m, _, err := s.records.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if m.EmojiRoles == nil {
		m.EmojiRoles = map[string]util.Snowflake{}
	}
	if !m.migrate() {
		return m, nil
	}

	migrated, err := s.records.Update(ctx, key, func(fresh *Mapping, exists bool) (bool, error) {
		if !exists {
			return false, storage.ErrNotFound
		}
		return fresh.migrate(), nil
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, err
	case err != nil:
		s.logger.Errorf("Failed to persist migrated emoji keys of message %s: %s.", messageID, err)
		return m, nil
	}
	if migrated.EmojiRoles == nil {
		migrated.EmojiRoles = map[string]util.Snowflake{}
	}
	s.logger.Infof("Migrated legacy emoji keys of message %s.", messageID)
	return migrated, nil
}

// Remove deletes the record of messageID. Removing an absent record is a no-op.
func (s *Store) Remove(ctx context.Context, messageID string) error {
	return s.records.Delete(ctx, recordKey(messageID))
}
