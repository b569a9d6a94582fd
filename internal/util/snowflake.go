package util

import (
	"fmt"
	"strconv"
)

// Snowflake is a Discord entity identifier.
type Snowflake = uint64

// ParseSnowflake parses a decimal Snowflake ID string.
func ParseSnowflake(s string) (Snowflake, error) {
	val, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse Snowflake ID string: %w", err)
	}
	return val, nil
}

func FormatSnowflake(s Snowflake) string {
	return strconv.FormatUint(s, 10)
}
