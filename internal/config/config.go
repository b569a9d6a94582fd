package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"pkg.mon.icu/rolebot/internal/config/hook"
	"pkg.mon.icu/rolebot/internal/discord"
	"pkg.mon.icu/rolebot/internal/storage"
	"pkg.mon.icu/rolebot/internal/util"
)

type Config struct {
	Discord struct {
		Auth             string
		Guilds           []util.Snowflake
		Timeout          time.Duration
		RegisterCommands bool
	}

	Commands struct {
		MessageLink *regexp.Regexp
	}

	Storage struct {
		Driver      storage.Driver
		PostgresDSN string
		SQLitePath  string
		MaxAttempts int
	}

	Logging struct {
		Level zapcore.Level
	}

	Api struct {
		Port uint16
	}
}

func Read() (*Config, error) {
	v := viper.New()
	configureDefaults(v)
	configureEnv(v)
	configureLocation(v)
	return readUnmarshalConfig(v)
}

func configureDefaults(v *viper.Viper) {
	v.SetDefault("discord.auth", "")
	v.SetDefault("discord.guilds", []string{})
	v.SetDefault("discord.timeout", "10s")
	v.SetDefault("discord.registercommands", true)
	v.SetDefault("commands.messagelink", discord.DefaultMessageLink)
	v.SetDefault("storage.driver", string(storage.DriverSQLite))
	v.SetDefault("storage.postgresdsn", "")
	v.SetDefault("storage.sqlitepath", "rolebot.db")
	v.SetDefault("storage.maxattempts", storage.DefaultMaxAttempts)
	v.SetDefault("logging.level", "info")
	v.SetDefault("api.port", 0)
}

func configureEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix("conf")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func configureLocation(v *viper.Viper) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
}

// readUnmarshalConfig reads config.yaml if there is one; environment variables and defaults
// are enough to run without it.
func readUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return unmarshalConfig(v)
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		hook.Regexp(), hook.Level(), hook.Driver(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Discord.Auth == "" {
		return errors.New("discord.auth is required")
	}
	if c.Storage.Driver == storage.DriverPostgres && c.Storage.PostgresDSN == "" {
		return errors.New("storage.postgresdsn is required by the postgres driver")
	}
	if c.Storage.MaxAttempts < 1 {
		return errors.New("storage.maxattempts must be positive")
	}
	return nil
}
