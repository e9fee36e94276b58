package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorgimenez/afkbot/internal/auth"
	"github.com/hectorgimenez/afkbot/internal/config"
	"github.com/hectorgimenez/afkbot/internal/event"
	"github.com/hectorgimenez/afkbot/internal/game"
	"github.com/hectorgimenez/afkbot/internal/game/gametest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestConfig(t *testing.T) *config.BotCfg {
	t.Helper()

	cfg := &config.BotCfg{}
	cfg.Account.Username = "AfkBot"
	cfg.Bridge.URL = "ws://127.0.0.1:8089/bot"
	cfg.ChatMessages.Enabled = true
	cfg.ChatMessages.Messages = []string{"hi", "still here"}
	cfg.AntiAfk.Enabled = true
	cfg.AntiAfk.Sneak = true
	require.NoError(t, cfg.Validate())

	return cfg
}

func enableAuth(cfg *config.BotCfg) {
	cfg.AutoAuth.Enabled = true
	cfg.AutoAuth.Password = "pw"
}

// answerAuth replies to /register and /login with the given lines.
func answerAuth(conn *gametest.Conn, register, login string) {
	conn.OnSend = func(text string) {
		switch {
		case strings.HasPrefix(text, "/register") && register != "":
			conn.Say(register)
		case strings.HasPrefix(text, "/login") && login != "":
			conn.Say(login)
		}
	}
}

type sessionResult struct {
	reason string
	err    error
}

func runSession(t *testing.T, ctx context.Context, s *Session, conn *gametest.Conn) <-chan sessionResult {
	t.Helper()

	res := make(chan sessionResult, 1)
	go func() {
		reason, err := s.Run(ctx)
		res <- sessionResult{reason: reason, err: err}
	}()
	require.Eventually(t, conn.Started, time.Second, time.Millisecond)

	return res
}

type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *eventRecorder) send(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) authResults() []event.AuthFinishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.AuthFinishedEvent
	for _, e := range r.events {
		if af, ok := e.(event.AuthFinishedEvent); ok {
			out = append(out, af)
		}
	}
	return out
}

func taskNames(s *Session) []string {
	var names []string
	for _, task := range s.Tasks() {
		names = append(names, task.Name)
	}
	return names
}

func TestSessionWithoutAutoAuthStartsBehaviorsOnSpawn(t *testing.T) {
	cfg := newTestConfig(t)
	conn := gametest.NewConn()
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})

	assert.Equal(t, []string{"hi", "still here"}, conn.Sent())
	assert.ElementsMatch(t, []string{"wander", "sneak", "jump"}, taskNames(s))

	phase, _ := s.AuthState()
	assert.Equal(t, auth.Idle, phase)

	conn.Emit(game.Event{Kind: game.KindEnd, Reason: "server closed"})
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, "server closed", r.reason)

	assert.Empty(t, s.Tasks())
	assert.Zero(t, conn.Subscribers())
	assert.True(t, conn.Closed())
	for _, sent := range conn.Sent() {
		assert.False(t, strings.HasPrefix(sent, "/register") || strings.HasPrefix(sent, "/login"))
	}
}

func TestSessionAuthenticatesBeforeBehaviors(t *testing.T) {
	cfg := newTestConfig(t)
	enableAuth(cfg)
	conn := gametest.NewConn()
	answerAuth(conn, "successfully registered", "successfully logged in")
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})

	require.Eventually(t, func() bool { return len(conn.Sent()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"/register pw pw", "/login pw", "hi", "still here"}, conn.Sent())

	phase, err := s.AuthState()
	assert.Equal(t, auth.Authenticated, phase)
	assert.NoError(t, err)

	conn.Emit(game.Event{Kind: game.KindEnd})
	<-res
}

func TestSessionAuthFailureStillStartsBehaviors(t *testing.T) {
	cfg := newTestConfig(t)
	enableAuth(cfg)
	conn := gametest.NewConn()
	answerAuth(conn, "already registered", "Invalid password")
	stats := NewStatsHandler(discard)
	s := NewSession("s1", conn, cfg, stats, discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})

	require.Eventually(t, func() bool { return len(conn.Sent()) == 4 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"/register pw pw", "/login pw", "hi", "still here"}, conn.Sent())

	phase, err := s.AuthState()
	assert.Equal(t, auth.Failed, phase)
	assert.ErrorIs(t, err, auth.ErrBadPassword)
	assert.Equal(t, auth.Failed.String(), stats.Stats().AuthPhase)

	conn.Emit(game.Event{Kind: game.KindEnd})
	<-res
}

func TestSessionLifecycleEventsDoNotEndSession(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChatMessages.Enabled = false
	cfg.AntiAfk.Enabled = false
	conn := gametest.NewConn()
	stats := NewStatsHandler(discard)
	s := NewSession("s1", conn, cfg, stats, discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})
	conn.Emit(game.Event{Kind: game.KindDeath})
	conn.Emit(game.Event{Kind: game.KindSpawn})
	conn.Emit(game.Event{Kind: game.KindKicked, Reason: "idle too long"})
	conn.Emit(game.Event{Kind: game.KindError, Err: game.ErrConnection})
	conn.Emit(game.Event{Kind: game.KindGoalReached})

	select {
	case <-res:
		t.Fatal("session ended before the end event")
	case <-time.After(20 * time.Millisecond):
	}

	st := stats.Stats()
	assert.Equal(t, 1, st.Deaths)
	assert.Equal(t, "idle too long", st.LastKickReason)
	assert.Equal(t, InGame, st.SupervisorStatus)

	conn.Emit(game.Event{Kind: game.KindEnd, Reason: "kicked"})
	r := <-res
	assert.Equal(t, "kicked", r.reason)
}

func TestSessionCancelTearsDown(t *testing.T) {
	cfg := newTestConfig(t)
	enableAuth(cfg)
	conn := gametest.NewConn()
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)

	ctx, cancel := context.WithCancel(context.Background())
	res := runSession(t, ctx, s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})
	require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, time.Second, time.Millisecond)

	cancel()
	r := <-res
	require.NoError(t, r.err)
	assert.Equal(t, endReasonStopped, r.reason)

	// the pending handshake is abandoned and no behavior started
	phase, err := s.AuthState()
	assert.Equal(t, auth.Failed, phase)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"/register pw pw"}, conn.Sent())
	assert.Empty(t, s.Tasks())
	assert.Zero(t, conn.Subscribers())
	assert.True(t, conn.Closed())
}

func TestSessionFixedPointMoveOnStart(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChatMessages.Enabled = false
	cfg.AntiAfk.Enabled = false
	cfg.Position.Enabled = true
	cfg.Position.X, cfg.Position.Y, cfg.Position.Z = 120, 70, -45
	conn := gametest.NewConn()
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})
	conn.Emit(game.Event{Kind: game.KindDeath})
	conn.Emit(game.Event{Kind: game.KindSpawn})

	assert.Equal(t, []game.Position{{X: 120, Y: 70, Z: -45}}, conn.Moves())
	assert.Empty(t, s.Tasks())

	conn.Emit(game.Event{Kind: game.KindEnd})
	<-res
}

func TestSessionWithoutSneak(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChatMessages.Enabled = false
	cfg.AntiAfk.Sneak = false
	conn := gametest.NewConn()
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})

	assert.ElementsMatch(t, []string{"wander", "jump"}, taskNames(s))
	for _, task := range s.Tasks() {
		switch task.Name {
		case "wander":
			assert.Equal(t, 15*time.Second, task.Interval)
		case "jump":
			assert.Equal(t, 20*time.Second, task.Interval)
		}
	}

	conn.Emit(game.Event{Kind: game.KindEnd})
	<-res
}

func TestSessionSustainedHighPingEndsSession(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ChatMessages.Enabled = false
	cfg.AntiAfk.Enabled = false
	cfg.PingMonitor.Enabled = true
	cfg.PingMonitor.HighPingThreshold = 500
	cfg.PingMonitor.SustainedDuration = 0
	conn := gametest.NewConn()
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)

	res := runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})
	conn.Emit(game.Event{Kind: game.KindPing, PingMs: 80})
	conn.Emit(game.Event{Kind: game.KindPing, PingMs: 1200})
	assert.False(t, conn.Closed())

	conn.Emit(game.Event{Kind: game.KindPing, PingMs: 1300})

	select {
	case r := <-res:
		require.NoError(t, r.err)
		assert.Equal(t, "connection closed", r.reason)
	case <-time.After(time.Second):
		t.Fatal("session did not end after sustained high ping")
	}
	assert.True(t, conn.Closed())
}

func TestSessionAuthEventsSkipCancelledHandshake(t *testing.T) {
	cfg := newTestConfig(t)
	enableAuth(cfg)

	conn := gametest.NewConn()
	rec := &eventRecorder{}
	s := NewSession("s1", conn, cfg, NewStatsHandler(discard), discard)
	s.send = rec.send

	ctx, cancel := context.WithCancel(context.Background())
	res := runSession(t, ctx, s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})
	require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, time.Second, time.Millisecond)
	cancel()
	<-res
	assert.Empty(t, rec.authResults())

	conn = gametest.NewConn()
	answerAuth(conn, "already registered", "Invalid password")
	rec = &eventRecorder{}
	s = NewSession("s2", conn, cfg, NewStatsHandler(discard), discard)
	s.send = rec.send

	res = runSession(t, context.Background(), s, conn)
	conn.Emit(game.Event{Kind: game.KindSpawn})
	require.Eventually(t, func() bool { return len(rec.authResults()) == 1 }, time.Second, time.Millisecond)

	got := rec.authResults()[0]
	assert.False(t, got.Success)
	assert.Contains(t, got.Reason, "Invalid password")

	conn.Emit(game.Event{Kind: game.KindEnd})
	<-res
}
