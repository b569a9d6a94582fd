package hook

import (
	"fmt"
	"reflect"
	"regexp"

	"github.com/mitchellh/mapstructure"
)

var regexpType = reflect.TypeOf(&regexp.Regexp{})

// Regexp compiles string values into *regexp.Regexp fields. Empty strings leave the field nil.
func Regexp() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val any) (any, error) {
		if in.Kind() != reflect.String || out != regexpType {
			return val, nil
		}
		s := val.(string)
		if s == "" {
			return (*regexp.Regexp)(nil), nil
		}
		r, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
		}
		return r, nil
	}
}
