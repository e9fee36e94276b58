package bot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hectorgimenez/afkbot/internal/config"
	"github.com/hectorgimenez/afkbot/internal/event"
	"github.com/hectorgimenez/afkbot/internal/game"
)

var ErrAlreadyRunning = errors.New("bot is already running")

// Dialer opens a new connection for a session.
type Dialer func(ctx context.Context) (game.Conn, error)

// SupervisorManager keeps the bot in the world: it runs one session at a time
// and cold-starts a new one after each end when auto-reconnect is on.
type SupervisorManager struct {
	cfg    *config.BotCfg
	dial   Dialer
	logger *slog.Logger
	stats  *StatsHandler

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	current *Session
}

func NewSupervisorManager(cfg *config.BotCfg, dial Dialer, logger *slog.Logger) *SupervisorManager {
	return &SupervisorManager{
		cfg:    cfg,
		dial:   dial,
		logger: logger,
		stats:  NewStatsHandler(logger),
	}
}

// Start runs the reconnect loop in the background.
func (mng *SupervisorManager) Start() error {
	mng.mu.Lock()
	if mng.cancel != nil {
		mng.mu.Unlock()
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	mng.cancel = cancel
	mng.done = done
	mng.mu.Unlock()

	go func() {
		defer close(done)
		mng.Run(ctx)

		mng.mu.Lock()
		if mng.done == done {
			mng.cancel = nil
			mng.done = nil
		}
		mng.mu.Unlock()
	}()

	return nil
}

// Stop ends the running session, aborts any pending reconnect and waits for
// the loop to exit.
func (mng *SupervisorManager) Stop() {
	mng.mu.Lock()
	cancel, done := mng.cancel, mng.done
	mng.cancel = nil
	mng.done = nil
	mng.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (mng *SupervisorManager) Running() bool {
	mng.mu.Lock()
	defer mng.mu.Unlock()
	return mng.cancel != nil
}

func (mng *SupervisorManager) Status() Stats {
	return mng.stats.Stats()
}

// CurrentSession returns the live session, nil between sessions.
func (mng *SupervisorManager) CurrentSession() *Session {
	mng.mu.Lock()
	defer mng.mu.Unlock()
	return mng.current
}

// Run is the reconnect loop. Every iteration is a cold start: new connection,
// new auth flow, new timers. It returns when ctx is done.
func (mng *SupervisorManager) Run(ctx context.Context) {
	for {
		reason := mng.runSession(ctx)
		if ctx.Err() != nil {
			mng.stats.SetStatus(Stopped)
			mng.logger.Info("Bot stopped")
			return
		}

		reconnect := mng.cfg.AutoReconnect.Enabled
		mng.stats.Ended(reason)
		event.Send(event.SessionEnded(event.Text(supervisorName, "Bot disconnected: "+reason), mng.stats.Stats().SessionID, reason, reconnect))

		if !reconnect {
			mng.stats.SetStatus(Idle)
			mng.logger.Info("Session ended, auto-reconnect disabled", slog.String("reason", reason))
			<-ctx.Done()
			mng.stats.SetStatus(Stopped)
			return
		}

		delay := mng.cfg.ReconnectDelay()
		mng.stats.SetStatus(Reconnecting)
		mng.logger.Info("Session ended, reconnecting", slog.String("reason", reason), slog.Duration("delay", delay))

		select {
		case <-ctx.Done():
			mng.stats.SetStatus(Stopped)
			return
		case <-time.After(delay):
		}
	}
}

func (mng *SupervisorManager) runSession(ctx context.Context) string {
	id := uuid.NewString()
	logger := mng.logger.With(slog.String("session", id))
	mng.stats.NewSession(id)

	conn, err := mng.dial(ctx)
	if err != nil {
		mng.stats.Error(err)
		logger.Error("Failed to connect", slog.Any("error", err))
		return err.Error()
	}

	s := NewSession(id, conn, mng.cfg, mng.stats, logger)
	mng.mu.Lock()
	mng.current = s
	mng.mu.Unlock()

	reason, err := s.Run(ctx)

	mng.mu.Lock()
	mng.current = nil
	mng.mu.Unlock()

	if err != nil {
		mng.stats.Error(err)
		logger.Error("Session failed", slog.Any("error", err))
		return err.Error()
	}
	return reason
}
