// Package emoji normalizes the two emoji representations Discord uses (unicode graphemes and guild
// custom emoji) into one lookup key.
//
// A custom emoji typed by a user as "<:name:id>" and the same emoji delivered in a reaction event as
// {name, id} normalize to the same Key. Normalization never talks to Discord: whether a standard
// grapheme is a valid emoji is only discovered when the platform accepts or rejects a reaction.
package emoji

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"pkg.mon.icu/rolebot/internal/util"
)

// ErrUnparseable is returned for malformed custom emoji text.
var ErrUnparseable = errors.New("unparseable emoji")

type Kind uint8

const (
	Standard Kind = iota + 1
	Custom
)

const (
	customDelimiter = "<"
	customPrefix    = "custom:"
)

var customPattern = regexp.MustCompile(`^<(a?):([A-Za-z0-9_~]{1,32}):(\d{1,20})>$`)

// Key identifies an emoji. Name and Animated are carried along for rendering and for the legacy
// lookup fallback; they take no part in equality.
type Key struct {
	Kind     Kind
	Value    string // grapheme for Standard, decimal id for Custom
	Name     string
	Animated bool
}

// Parse normalizes user-typed emoji text.
func Parse(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Key{}, fmt.Errorf("%w: empty emoji", ErrUnparseable)
	}
	if strings.HasPrefix(raw, customPrefix) {
		return Key{}, fmt.Errorf("%w: %q collides with the stored custom emoji form", ErrUnparseable, raw)
	}
	if !strings.HasPrefix(raw, customDelimiter) {
		return Key{Kind: Standard, Value: raw, Name: raw}, nil
	}

	m := customPattern.FindStringSubmatch(raw)
	if m == nil {
		return Key{}, fmt.Errorf("%w: %q is not <:name:id>", ErrUnparseable, raw)
	}
	id, err := util.ParseSnowflake(m[3])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %s", ErrUnparseable, err)
	}
	return Key{Kind: Custom, Value: util.FormatSnowflake(id), Name: m[2], Animated: m[1] == "a"}, nil
}

// FromEvent normalizes the emoji of a reaction event payload.
func FromEvent(e discordgo.Emoji) Key {
	if e.ID == "" {
		return Key{Kind: Standard, Value: e.Name, Name: e.Name}
	}
	return Key{Kind: Custom, Value: e.ID, Name: e.Name, Animated: e.Animated}
}

// Equal compares emoji identity only.
func (k Key) Equal(o Key) bool {
	return k.Kind == o.Kind && k.Value == o.Value
}

// String is the canonical storage encoding: the grapheme itself for standard emoji and
// "custom:<id>" for custom ones.
func (k Key) String() string {
	if k.Kind == Custom {
		return customPrefix + k.Value
	}
	return k.Value
}

// APIName is the form Discord expects when adding a reaction.
func (k Key) APIName() string {
	if k.Kind == Custom {
		name := k.Name
		if name == "" {
			name = "_"
		}
		return name + ":" + k.Value
	}
	return k.Value
}

// Mention renders the emoji for a chat message.
func (k Key) Mention() string {
	if k.Kind != Custom {
		return k.Value
	}
	a := ""
	if k.Animated {
		a = "a"
	}
	name := k.Name
	if name == "" {
		name = "_"
	}
	return fmt.Sprintf("<%s:%s:%s>", a, name, k.Value)
}

// Decode parses a stored key back into a Key. Legacy keys (typed text stored verbatim before
// normalization existed) report legacy=true; those that parse are returned normalized.
func Decode(stored string) (k Key, legacy bool, err error) {
	switch {
	case strings.HasPrefix(stored, customPrefix):
		id := strings.TrimPrefix(stored, customPrefix)
		if _, err := util.ParseSnowflake(id); err != nil {
			return Key{}, false, fmt.Errorf("%w: %s", ErrUnparseable, err)
		}
		return Key{Kind: Custom, Value: id}, false, nil
	case strings.HasPrefix(stored, customDelimiter):
		k, err := Parse(stored)
		return k, true, err
	default:
		return Key{Kind: Standard, Value: stored, Name: stored}, false, nil
	}
}

// LegacyMatch reports whether a stored legacy key belongs to the emoji of an event, using the
// historical rule: the stored text starts with "<:" + name + ":".
func LegacyMatch(stored string, k Key) bool {
	return k.Name != "" && strings.HasPrefix(stored, "<:"+k.Name+":")
}
