package util

import (
	"encoding/json"
	"sort"
)

// SnowflakeSet is a simple map-based set of unique Snowflake values.
type SnowflakeSet struct {
	backingMap map[Snowflake]struct{}
}

// NewSnowflakeSet creates a new SnowflakeSet from the specified slice of Snowflake.
func NewSnowflakeSet(s []Snowflake) *SnowflakeSet {
	set := &SnowflakeSet{make(map[Snowflake]struct{}, len(s))}
	for _, i := range s {
		set.backingMap[i] = struct{}{}
	}
	return set
}

// ParseSnowflakeSet creates a new SnowflakeSet from decimal ID strings, as found in
// discordgo member role lists. Unparseable entries are skipped.
func ParseSnowflakeSet(ids []string) *SnowflakeSet {
	set := NewSnowflakeSet(nil)
	for _, id := range ids {
		if v, err := ParseSnowflake(id); err == nil {
			set.Insert(v)
		}
	}
	return set
}

// Contains checks if this SnowflakeSet contains the specified Snowflake.
func (s *SnowflakeSet) Contains(i Snowflake) bool {
	if s == nil {
		return false
	}
	_, exists := s.backingMap[i]
	return exists
}

// Insert adds i to the set and reports whether it was absent.
func (s *SnowflakeSet) Insert(i Snowflake) bool {
	if s.backingMap == nil {
		s.backingMap = make(map[Snowflake]struct{})
	}
	if _, exists := s.backingMap[i]; exists {
		return false
	}
	s.backingMap[i] = struct{}{}
	return true
}

// Remove deletes i from the set and reports whether it was present.
func (s *SnowflakeSet) Remove(i Snowflake) bool {
	if s == nil {
		return false
	}
	if _, exists := s.backingMap[i]; !exists {
		return false
	}
	delete(s.backingMap, i)
	return true
}

func (s *SnowflakeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.backingMap)
}

// Values return values contained by this SnowflakeSet in ascending order.
func (s *SnowflakeSet) Values() []Snowflake {
	if s == nil {
		return nil
	}
	v := make([]Snowflake, 0, len(s.backingMap))
	for k := range s.backingMap {
		v = append(v, k)
	}
	sort.Slice(v, func(i, j int) bool { return v[i] < v[j] })

	return v
}

func (s *SnowflakeSet) MarshalJSON() ([]byte, error) {
	v := s.Values()
	if v == nil {
		v = []Snowflake{}
	}
	return json.Marshal(v)
}

func (s *SnowflakeSet) UnmarshalJSON(b []byte) error {
	var v []Snowflake
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = *NewSnowflakeSet(v)
	return nil
}
