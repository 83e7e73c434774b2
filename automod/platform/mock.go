package platform

import (
	"context"
	"fmt"
	"sync"
)

// One recorded call against MockClient.
type Call struct {
	Method    string
	GuildID   uint64
	ChannelID uint64
	UserID    uint64
	TargetID  uint64
	Text      string
	PurgeDays int
	Report    *Report
}

// A fake platform client, for use in tests. Records every call in order.
type MockClient struct {
	mu    sync.Mutex
	Calls []Call
	// if set, calls for this method name fail with this error
	Failures map[string]error
	// like Failures, but each entry is consumed by the first matching call
	FailNext map[string]error
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		Failures: make(map[string]error),
		FailNext: make(map[string]error),
	}
}

func (c *MockClient) record(call Call) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err, ok := c.Failures[call.Method]; ok {
		return fmt.Errorf("mock %s: %w", call.Method, err)
	}
	if err, ok := c.FailNext[call.Method]; ok {
		delete(c.FailNext, call.Method)
		return fmt.Errorf("mock %s: %w", call.Method, err)
	}
	c.Calls = append(c.Calls, call)
	return nil
}

// Snapshot of recorded calls with the given method name (all calls if empty).
func (c *MockClient) CallsTo(method string) []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Call
	for _, call := range c.Calls {
		if method == "" || call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (c *MockClient) DeleteMessage(ctx context.Context, channelID, messageID uint64) error {
	return c.record(Call{Method: "DeleteMessage", ChannelID: channelID, TargetID: messageID})
}

func (c *MockClient) SendMessage(ctx context.Context, channelID uint64, text string) error {
	return c.record(Call{Method: "SendMessage", ChannelID: channelID, Text: text})
}

func (c *MockClient) SendDirectMessage(ctx context.Context, userID uint64, text string) error {
	return c.record(Call{Method: "SendDirectMessage", UserID: userID, Text: text})
}

func (c *MockClient) SendReport(ctx context.Context, channelID uint64, report *Report) error {
	return c.record(Call{Method: "SendReport", ChannelID: channelID, Report: report})
}

func (c *MockClient) Ban(ctx context.Context, guildID, userID uint64, purgeDays int, reason string) error {
	return c.record(Call{Method: "Ban", GuildID: guildID, UserID: userID, PurgeDays: purgeDays, Text: reason})
}

func (c *MockClient) Kick(ctx context.Context, guildID, userID uint64, reason string) error {
	return c.record(Call{Method: "Kick", GuildID: guildID, UserID: userID, Text: reason})
}

func (c *MockClient) AddRole(ctx context.Context, guildID, userID, roleID uint64) error {
	return c.record(Call{Method: "AddRole", GuildID: guildID, UserID: userID, TargetID: roleID})
}

func (c *MockClient) RemoveRole(ctx context.Context, guildID, userID, roleID uint64) error {
	return c.record(Call{Method: "RemoveRole", GuildID: guildID, UserID: userID, TargetID: roleID})
}
