package discord

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hectorgimenez/afkbot/internal/bot"
)

const helpMessage = "Available commands:\n" +
	"`!start` start the bot\n" +
	"`!stop` disconnect and stop reconnecting\n" +
	"`!status` show the current session\n" +
	"`!help` show this message"

// handleCommand answers a chat command. ok is false for messages that are not
// commands.
func (b *Bot) handleCommand(content string) (reply string, ok bool) {
	if !strings.HasPrefix(content, "!") {
		return "", false
	}

	prefix := strings.Fields(content)[0]
	switch prefix {
	case "!start":
		return b.handleStartRequest(), true
	case "!stop":
		return b.handleStopRequest(), true
	case "!status", "!stats":
		return b.handleStatusRequest(), true
	case "!help":
		return helpMessage, true
	default:
		return fmt.Sprintf("Unknown command: `%s`. Type `!help` for available commands.", prefix), true
	}
}

func (b *Bot) handleStartRequest() string {
	if err := b.manager.Start(); err != nil {
		if errors.Is(err, bot.ErrAlreadyRunning) {
			return "Bot is already running."
		}
		return fmt.Sprintf("Failed to start bot: %s", err)
	}
	return "Bot has been started."
}

func (b *Bot) handleStopRequest() string {
	if !b.manager.Running() {
		return "Bot is not running."
	}
	b.manager.Stop()
	return "Bot has been stopped."
}

func (b *Bot) handleStatusRequest() string {
	return formatStatus(b.manager.Status())
}

func formatStatus(st bot.Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status: **%s**\n", st.SupervisorStatus))
	if st.SessionID != "" {
		sb.WriteString(fmt.Sprintf("Session: `%s`", st.SessionID))
		if !st.StartedAt.IsZero() {
			sb.WriteString(fmt.Sprintf(" (up %s)", time.Since(st.StartedAt).Round(time.Second)))
		}
		sb.WriteString("\n")
	}
	if st.AuthPhase != "" {
		sb.WriteString(fmt.Sprintf("Auth: %s\n", st.AuthPhase))
	}
	sb.WriteString(fmt.Sprintf("Position: %s\n", st.Position))
	sb.WriteString(fmt.Sprintf("Reconnects: %d | Deaths: %d", st.Reconnects, st.Deaths))
	if st.LastKickReason != "" {
		sb.WriteString(fmt.Sprintf("\nLast kick: %s", st.LastKickReason))
	}
	return sb.String()
}
