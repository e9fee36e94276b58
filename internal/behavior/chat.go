package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hectorgimenez/afkbot/internal/game"
)

type ChatOptions struct {
	Repeat   bool
	Delay    time.Duration
	Messages []string
}

// ChatBroadcaster sends the configured messages. With Repeat it sends one
// message per Delay, cycling through the list forever.
type ChatBroadcaster struct {
	conn   game.Conn
	opts   ChatOptions
	logger *slog.Logger

	mu   sync.Mutex
	next int
}

func NewChatBroadcaster(conn game.Conn, opts ChatOptions, logger *slog.Logger) *ChatBroadcaster {
	return &ChatBroadcaster{
		conn:   conn,
		opts:   opts,
		logger: logger,
	}
}

func (c *ChatBroadcaster) Start(r *Registry) {
	if len(c.opts.Messages) == 0 {
		return
	}
	c.logger.Info("Started chat-messages module", slog.Bool("repeat", c.opts.Repeat))

	if !c.opts.Repeat {
		for _, msg := range c.opts.Messages {
			if err := c.conn.SendText(msg); err != nil {
				c.logger.Warn("Failed to send chat message", slog.Any("error", err))
			}
		}
		return
	}

	r.Every("chat", c.opts.Delay, c.tick)
}

func (c *ChatBroadcaster) tick(_ context.Context) error {
	c.mu.Lock()
	msg := c.opts.Messages[c.next]
	c.next = (c.next + 1) % len(c.opts.Messages)
	c.mu.Unlock()

	if err := c.conn.SendText(msg); err != nil {
		return fmt.Errorf("sending chat message: %w", err)
	}
	return nil
}
