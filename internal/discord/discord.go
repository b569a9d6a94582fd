package discord

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"pkg.mon.icu/rolebot/internal/delegation"
	"pkg.mon.icu/rolebot/internal/rolemap"
	"pkg.mon.icu/rolebot/internal/util"
)

type Config struct {
	guilds           *util.SnowflakeSet
	messageLink      *regexp.Regexp
	timeout          time.Duration
	registerCommands bool
}

func NewConfig(guilds []uint64, messageLink *regexp.Regexp, timeout time.Duration, registerCommands bool) *Config {
	if messageLink == nil {
		messageLink = regexp.MustCompile(DefaultMessageLink)
	}
	return &Config{
		guilds:           util.NewSnowflakeSet(guilds),
		messageLink:      messageLink,
		timeout:          timeout,
		registerCommands: registerCommands,
	}
}

type Discord struct {
	ctx     context.Context
	logger  *zap.SugaredLogger
	session *discordgo.Session
	config  *Config
	selfID  *atomic.String

	reactions *ReactionProcessor
	messages  *MessageSync
	commands  *Commands
}

func NewDiscord(ctx context.Context, log *zap.SugaredLogger, auth string, config *Config, roles *rolemap.Store, grants *delegation.Graph, sink Sink) (*Discord, error) {
	if config.messageLink.NumSubexp() < 3 {
		return nil, fmt.Errorf("message link pattern %q needs guild, channel and message groups", config.messageLink)
	}
	if !strings.HasPrefix(auth, "Bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions

	platform := newSessionPlatform(s, config.timeout)
	selfID := atomic.NewString("")
	return &Discord{
		ctx:       ctx,
		logger:    log,
		session:   s,
		config:    config,
		selfID:    selfID,
		reactions: NewReactionProcessor(log, platform, roles, sink, config.guilds, selfID),
		messages:  NewMessageSync(log, roles, sink),
		commands:  NewCommands(log, platform, roles, grants, config.messageLink),
	}, nil
}

func (d *Discord) addHandlers() {
	d.session.AddHandlerOnce(d.onReady)
	d.session.AddHandler(d.onMessageReactionAdd)
	d.session.AddHandler(d.onMessageReactionRemove)
	d.session.AddHandler(d.onMessageDelete)
	d.session.AddHandler(d.onMessageDeleteBulk)
	d.session.AddHandler(d.onInteractionCreate)
}

func (d *Discord) Connect() error {
	d.addHandlers()
	return d.session.Open()
}

func (d *Discord) Close() error {
	return d.session.Close()
}

// registerCommands overwrites the slash commands of every configured guild, or the global ones
// when no guild is configured.
func (d *Discord) registerCommands(appID string) {
	guilds := []string{""}
	if d.config.guilds.Len() > 0 {
		guilds = guilds[:0]
		for _, g := range d.config.guilds.Values() {
			guilds = append(guilds, util.FormatSnowflake(g))
		}
	}

	for _, g := range guilds {
		if _, err := d.session.ApplicationCommandBulkOverwrite(appID, g, applicationCommands); err != nil {
			d.logger.Errorf("Failed to register commands for guild %q: %s.", g, err)
			continue
		}
		d.logger.Debugf("Registered %d commands for guild %q.", len(applicationCommands), g)
	}
}
