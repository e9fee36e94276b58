// Package auth drives the chat based register/login handshake required by
// servers running an authentication plugin.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hectorgimenez/afkbot/internal/game"
)

var (
	ErrRegistrationInvalid = errors.New("registration failed: invalid command")
	ErrBadPassword         = errors.New("login failed: invalid password")
	ErrNotRegistered       = errors.New("login failed: not registered")
	ErrFlowStarted         = errors.New("auth flow already started")
)

type Phase int

const (
	Idle Phase = iota
	AwaitingRegisterResult
	AwaitingLoginResult
	Authenticated
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AwaitingRegisterResult:
		return "awaiting_register_result"
	case AwaitingLoginResult:
		return "awaiting_login_result"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) Terminal() bool {
	return p == Authenticated || p == Failed
}

type Credentials struct {
	Password string
}

// rule maps a server line fragment to the outcome of the current phase. A nil
// err means the phase succeeded.
type rule struct {
	contains string
	err      error
}

var (
	registerRules = []rule{
		{contains: "successfully registered"},
		{contains: "already registered"},
		{contains: "Invalid command", err: ErrRegistrationInvalid},
	}
	loginRules = []rule{
		{contains: "successfully logged in"},
		{contains: "Invalid password", err: ErrBadPassword},
		{contains: "not registered", err: ErrNotRegistered},
	}
)

// Flow is a single register/login handshake. It holds at most one text
// subscription at any time; the subscription of a phase is closed before the
// next phase installs its own.
type Flow struct {
	conn   game.Conn
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	phase   Phase
	err     error
	sub     *game.Subscription
	gen     uint64
	creds   Credentials
	done    chan struct{}
}

func NewFlow(conn game.Conn, logger *slog.Logger) *Flow {
	return &Flow{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run performs the handshake and blocks until it resolves. It returns nil once
// authenticated and the failure otherwise. Cancelling ctx fails the flow with
// ctx.Err(). Run may only be called once.
func (f *Flow) Run(ctx context.Context, creds Credentials) error {
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		return ErrFlowStarted
	}
	f.started = true
	f.creds = creds
	f.mu.Unlock()

	f.logger.Info("Started auto-auth module")
	f.advance(Idle, AwaitingRegisterResult)

	select {
	case <-f.done:
	case <-ctx.Done():
		f.finish(Failed, ctx.Err())
	}

	return f.Err()
}

// State returns the current phase and, when Failed, the reason.
func (f *Flow) State() (Phase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase, f.err
}

func (f *Flow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Done is closed once the flow reached a terminal phase.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// advance moves from the expected phase to next, installs the listener for
// next and sends the matching command. The listener goes in before the command
// so a fast reply cannot be missed.
func (f *Flow) advance(from, next Phase) {
	f.mu.Lock()
	if f.phase != from {
		f.mu.Unlock()
		return
	}
	f.sub.Close()
	f.phase = next

	var rules []rule
	var cmd string
	switch next {
	case AwaitingRegisterResult:
		rules = registerRules
		cmd = fmt.Sprintf("/register %s %s", f.creds.Password, f.creds.Password)
	case AwaitingLoginResult:
		rules = loginRules
		cmd = fmt.Sprintf("/login %s", f.creds.Password)
	}

	f.gen++
	gen := f.gen
	f.sub = f.conn.Subscribe(func(e game.Event) {
		if e.Kind == game.KindMessage {
			f.onText(gen, next, rules, e.Text)
		}
	})
	f.mu.Unlock()

	if err := f.conn.SendText(cmd); err != nil {
		f.finish(Failed, fmt.Errorf("sending %s: %w", strings.Fields(cmd)[0], err))
		return
	}
	f.logger.Info("Sent auth command", slog.String("command", strings.Fields(cmd)[0]))
}

func (f *Flow) onText(gen uint64, phase Phase, rules []rule, text string) {
	f.mu.Lock()
	current := f.gen == gen && f.phase == phase
	f.mu.Unlock()
	if !current {
		return
	}

	for _, r := range rules {
		if !strings.Contains(text, r.contains) {
			continue
		}

		if r.err != nil {
			f.finish(Failed, fmt.Errorf("%w: %q", r.err, text))
			return
		}

		switch phase {
		case AwaitingRegisterResult:
			f.logger.Info("Registration confirmed", slog.String("message", text))
			f.advance(AwaitingRegisterResult, AwaitingLoginResult)
		case AwaitingLoginResult:
			f.logger.Info("Login successful")
			f.finish(Authenticated, nil)
		}
		return
	}
}

func (f *Flow) finish(phase Phase, err error) {
	f.mu.Lock()
	if f.phase.Terminal() {
		f.mu.Unlock()
		return
	}
	f.sub.Close()
	f.sub = nil
	f.phase = phase
	f.err = err
	f.mu.Unlock()

	close(f.done)
}
