package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hectorgimenez/afkbot/internal/game"
	"github.com/hectorgimenez/afkbot/internal/game/gametest"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// replyWith answers each auth command with the next scripted server line.
func replyWith(conn *gametest.Conn, replies map[string][]string) {
	conn.OnSend = func(text string) {
		for prefix, lines := range replies {
			if strings.HasPrefix(text, prefix) {
				for _, l := range lines {
					conn.Say(l)
				}
			}
		}
	}
}

func TestFlowOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		register  []string
		login     []string
		wantErr   error
		wantPhase Phase
		wantSent  []string
	}{
		{
			name:      "fresh account",
			register:  []string{"You have successfully registered!"},
			login:     []string{"You have successfully logged in!"},
			wantPhase: Authenticated,
			wantSent:  []string{"/register pw pw", "/login pw"},
		},
		{
			name:      "already registered",
			register:  []string{"You are already registered."},
			login:     []string{"Welcome! successfully logged in"},
			wantPhase: Authenticated,
			wantSent:  []string{"/register pw pw", "/login pw"},
		},
		{
			name:      "register invalid command",
			register:  []string{"Unknown or incomplete command. Invalid command"},
			wantErr:   ErrRegistrationInvalid,
			wantPhase: Failed,
			wantSent:  []string{"/register pw pw"},
		},
		{
			name:      "bad password",
			register:  []string{"already registered"},
			login:     []string{"Invalid password!"},
			wantErr:   ErrBadPassword,
			wantPhase: Failed,
			wantSent:  []string{"/register pw pw", "/login pw"},
		},
		{
			name:      "not registered",
			register:  []string{"successfully registered"},
			login:     []string{"You are not registered"},
			wantErr:   ErrNotRegistered,
			wantPhase: Failed,
			wantSent:  []string{"/register pw pw", "/login pw"},
		},
		{
			name:      "unmatched lines are ignored",
			register:  []string{"Welcome to the server", "successfully registered"},
			login:     []string{"Please wait", "successfully logged in"},
			wantPhase: Authenticated,
			wantSent:  []string{"/register pw pw", "/login pw"},
		},
		{
			name:      "failure after success is ignored",
			register:  []string{"successfully registered"},
			login:     []string{"successfully logged in", "Invalid password"},
			wantPhase: Authenticated,
			wantSent:  []string{"/register pw pw", "/login pw"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := gametest.NewConn()
			replyWith(conn, map[string][]string{"/register": tt.register, "/login": tt.login})

			f := NewFlow(conn, discard)
			err := f.Run(context.Background(), Credentials{Password: "pw"})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			phase, _ := f.State()
			assert.Equal(t, tt.wantPhase, phase)
			if diff := cmp.Diff(tt.wantSent, conn.Sent()); diff != "" {
				t.Errorf("sent commands mismatch (-want +got):\n%s", diff)
			}
			assert.Zero(t, conn.Subscribers())
		})
	}
}

func TestFlowNoChatAfterFailure(t *testing.T) {
	conn := gametest.NewConn()
	f := NewFlow(conn, discard)

	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background(), Credentials{Password: "pw"}) }()

	require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, time.Second, time.Millisecond)
	conn.Say("Invalid command")
	require.ErrorIs(t, <-errc, ErrRegistrationInvalid)

	// Late success lines must not resume the handshake.
	conn.Say("successfully registered")
	conn.Say("successfully logged in")

	assert.Equal(t, []string{"/register pw pw"}, conn.Sent())
	phase, err := f.State()
	assert.Equal(t, Failed, phase)
	assert.ErrorIs(t, err, ErrRegistrationInvalid)
}

func TestFlowHoldsSingleListener(t *testing.T) {
	conn := gametest.NewConn()
	f := NewFlow(conn, discard)

	errc := make(chan error, 1)
	go func() { errc <- f.Run(context.Background(), Credentials{Password: "pw"}) }()

	require.Eventually(t, func() bool { return len(conn.Sent()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, conn.Subscribers())

	// A repeated register confirmation must not send /login twice.
	conn.Say("successfully registered")
	conn.Say("successfully registered")
	assert.Equal(t, 1, conn.Subscribers())
	assert.Equal(t, []string{"/register pw pw", "/login pw"}, conn.Sent())

	conn.Say("successfully logged in")
	require.NoError(t, <-errc)
	assert.Zero(t, conn.Subscribers())
}

func TestFlowContextCancel(t *testing.T) {
	conn := gametest.NewConn()
	f := NewFlow(conn, discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.Run(ctx, Credentials{Password: "pw"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, conn.Subscribers())

	phase, _ := f.State()
	assert.Equal(t, Failed, phase)
}

func TestFlowSendFailure(t *testing.T) {
	conn := gametest.NewConn()
	conn.SendErr = game.ErrConnection

	err := NewFlow(conn, discard).Run(context.Background(), Credentials{Password: "pw"})
	require.ErrorIs(t, err, game.ErrConnection)
	assert.Zero(t, conn.Subscribers())
}

func TestFlowRunsOnce(t *testing.T) {
	conn := gametest.NewConn()
	replyWith(conn, map[string][]string{
		"/register": {"already registered"},
		"/login":    {"successfully logged in"},
	})

	f := NewFlow(conn, discard)
	require.NoError(t, f.Run(context.Background(), Credentials{Password: "pw"}))

	err := f.Run(context.Background(), Credentials{Password: "pw"})
	assert.True(t, errors.Is(err, ErrFlowStarted))
	assert.Len(t, conn.Sent(), 2)
}
