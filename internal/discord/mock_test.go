package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
	"pkg.mon.icu/rolebot/internal/emoji"
	"pkg.mon.icu/rolebot/internal/util"
)

// MockPlatform is a mock implementation of the Platform interface
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) Message(ctx context.Context, channelID, messageID string) (*discordgo.Message, error) {
	args := m.Called(ctx, channelID, messageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Message), args.Error(1)
}

func (m *MockPlatform) AddReaction(ctx context.Context, channelID, messageID string, k emoji.Key) error {
	args := m.Called(ctx, channelID, messageID, k)
	return args.Error(0)
}

func (m *MockPlatform) AddRole(ctx context.Context, guildID, userID string, roleID util.Snowflake) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockPlatform) RemoveRole(ctx context.Context, guildID, userID string, roleID util.Snowflake) error {
	args := m.Called(ctx, guildID, userID, roleID)
	return args.Error(0)
}

func (m *MockPlatform) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	args := m.Called(ctx, guildID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*discordgo.Member), args.Error(1)
}
