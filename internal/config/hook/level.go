package hook

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap/zapcore"
)

var levelType = reflect.TypeOf(zapcore.InfoLevel)

// Level parses zap level names ("debug", "WARN", ...) into zapcore.Level fields.
func Level() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val any) (any, error) {
		if in.Kind() != reflect.String || out != levelType {
			return val, nil
		}
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(strings.TrimSpace(val.(string)))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", val, err)
		}
		return l, nil
	}
}
