package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hectorgimenez/afkbot/internal/bot"
	"github.com/hectorgimenez/afkbot/internal/event"
)

type fakeController struct {
	running bool
}

func (f *fakeController) Start() error {
	if f.running {
		return bot.ErrAlreadyRunning
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop()         { f.running = false }
func (f *fakeController) Running() bool { return f.running }
func (f *fakeController) Status() bot.Stats {
	return bot.Stats{SessionID: "abc", SupervisorStatus: bot.InGame, Reconnects: 3}
}

func TestHandleCommand(t *testing.T) {
	ctrl := &fakeController{}
	b := &Bot{manager: ctrl}

	_, ok := b.handleCommand("hello")
	assert.False(t, ok)

	reply, ok := b.handleCommand("/start")
	assert.True(t, ok)
	assert.Equal(t, "Bot has been started.", reply)
	assert.True(t, ctrl.running)

	reply, _ = b.handleCommand("START")
	assert.Equal(t, "Bot is already running.", reply)

	reply, _ = b.handleCommand("status")
	assert.Contains(t, reply, "Status: In game")
	assert.Contains(t, reply, "Session: abc")
	assert.Contains(t, reply, "Reconnects: 3")

	reply, _ = b.handleCommand("/stop")
	assert.Equal(t, "Bot has been stopped.", reply)
	reply, _ = b.handleCommand("/stop")
	assert.Equal(t, "Bot is not running.", reply)
}

func TestFormatEvent(t *testing.T) {
	assert.Equal(t, "[afkbot] Bot was kicked from the server: idle",
		formatEvent(event.Kicked(event.Text("afkbot", "Bot was kicked from the server"), "idle")))
	assert.Equal(t, "[afkbot] Bot disconnected (reconnecting: true)",
		formatEvent(event.SessionEnded(event.Text("afkbot", "Bot disconnected"), "id", "closed", true)))
	assert.Equal(t, "[afkbot] Auto-auth completed",
		formatEvent(event.AuthFinished(event.Text("afkbot", "Auto-auth completed"), true, "")))
}

func TestCloseWithoutClient(t *testing.T) {
	var nilBot *Bot
	assert.NotPanics(t, nilBot.Close)
	assert.NotPanics(t, (&Bot{}).Close)
}
