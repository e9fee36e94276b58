package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hectorgimenez/afkbot/internal/bot"
	"github.com/hectorgimenez/afkbot/internal/event"
)

// Controller is the part of the bot manager driven by chat commands.
type Controller interface {
	Start() error
	Stop()
	Running() bool
	Status() bot.Stats
}

const (
	connectAttempts   = 3
	connectRetryDelay = 2 * time.Second
)

type Bot struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	manager Controller
	logger  *slog.Logger
}

// NewBot connects to the Telegram API, retrying with a doubling delay.
// Cancelling ctx aborts the wait between attempts.
func NewBot(ctx context.Context, token string, chatID int64, manager Controller, logger *slog.Logger) (*Bot, error) {
	delay := connectRetryDelay
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		api, err := tgbotapi.NewBotAPI(token)
		if err == nil {
			return &Bot{bot: api, chatID: chatID, manager: manager, logger: logger}, nil
		}
		lastErr = err
		if attempt == connectAttempts {
			break
		}

		logger.Warn("Telegram API connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retryIn", delay),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("connecting to telegram after %d attempts: %w", connectAttempts, lastErr)
}

// Start answers commands sent to the configured chat until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	offset, err := b.getLatestOffset()
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = 5
	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			for range updates {
			}
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			if reply, ok := b.handleCommand(update.Message.Text); ok {
				if err := b.send(reply); err != nil {
					b.logger.Warn("Failed to answer Telegram command", slog.Any("error", err))
				}
			}
		}
	}
}

// Handle forwards bot events to the chat.
func (b *Bot) Handle(_ context.Context, e event.Event) error {
	return b.send(formatEvent(e))
}

func (b *Bot) handleCommand(text string) (string, bool) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(text), "/")) {
	case "status", "stats":
		st := b.manager.Status()
		return fmt.Sprintf("Status: %s\nSession: %s\nAuth: %s\nPosition: %s\nReconnects: %d, deaths: %d",
			st.SupervisorStatus, st.SessionID, st.AuthPhase, st.Position, st.Reconnects, st.Deaths), true
	case "start":
		if err := b.manager.Start(); err != nil {
			if errors.Is(err, bot.ErrAlreadyRunning) {
				return "Bot is already running.", true
			}
			return "Failed to start bot: " + err.Error(), true
		}
		return "Bot has been started.", true
	case "stop":
		if !b.manager.Running() {
			return "Bot is not running.", true
		}
		b.manager.Stop()
		return "Bot has been stopped.", true
	}
	return "", false
}

func formatEvent(e event.Event) string {
	msg := fmt.Sprintf("[%s] %s", e.Supervisor(), e.Message())
	switch evt := e.(type) {
	case event.KickedEvent:
		msg += ": " + evt.Reason
	case event.SessionEndedEvent:
		msg += fmt.Sprintf(" (reconnecting: %t)", evt.Reconnecting)
	case event.AuthFinishedEvent:
		if !evt.Success {
			msg += ": " + evt.Reason
		}
	}
	return msg
}

func (b *Bot) send(text string) error {
	if _, err := b.bot.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func (b *Bot) getLatestOffset() (int, error) {
	upds, err := b.bot.GetUpdates(tgbotapi.NewUpdate(-1))
	if err != nil {
		return 0, err
	}
	offset := 0
	if len(upds) > 0 {
		offset = upds[0].UpdateID + 1
	}
	return offset, nil
}

// Close drops idle API connections. Polling is stopped by Start when its
// context ends.
func (b *Bot) Close() {
	if b == nil || b.bot == nil {
		return
	}
	if c, ok := b.bot.Client.(*http.Client); ok {
		c.CloseIdleConnections()
	}
}
