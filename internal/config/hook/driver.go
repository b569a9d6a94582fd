package hook

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"pkg.mon.icu/rolebot/internal/storage"
)

var driverType = reflect.TypeOf(storage.DriverMemory)

// Driver accepts storage driver names case-insensitively and rejects unknown ones.
func Driver() mapstructure.DecodeHookFuncType {
	return func(in reflect.Type, out reflect.Type, val any) (any, error) {
		if in.Kind() != reflect.String || out != driverType {
			return val, nil
		}
		d := storage.Driver(strings.ToLower(strings.TrimSpace(val.(string))))
		switch d {
		case storage.DriverPostgres, storage.DriverSQLite, storage.DriverMemory:
			return d, nil
		}
		return nil, fmt.Errorf("unknown storage driver %q", val)
	}
}
