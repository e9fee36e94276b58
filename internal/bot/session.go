package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hectorgimenez/afkbot/internal/auth"
	"github.com/hectorgimenez/afkbot/internal/behavior"
	"github.com/hectorgimenez/afkbot/internal/config"
	"github.com/hectorgimenez/afkbot/internal/event"
	"github.com/hectorgimenez/afkbot/internal/game"
	"github.com/hectorgimenez/afkbot/internal/health"
	"golang.org/x/sync/errgroup"
)

const (
	endReasonStopped = "stopped"
	supervisorName   = "afkbot"
)

// Session owns a single connection attempt from spawn to end: the connection,
// its auth flow and the behavior timers. Nothing is reused across sessions.
type Session struct {
	id     string
	conn   game.Conn
	cfg    *config.BotCfg
	logger *slog.Logger
	stats  *StatsHandler
	send   func(event.Event)

	flow     *auth.Flow
	registry *behavior.Registry
	ping     *health.PingMonitor
	sub      *game.Subscription

	ctx     context.Context
	cancel  context.CancelFunc
	g       *errgroup.Group
	mu      sync.Mutex
	closing bool

	spawnOnce sync.Once
	schedOnce sync.Once
	endOnce   sync.Once
	ended     chan struct{}
	endReason string
}

func NewSession(id string, conn game.Conn, cfg *config.BotCfg, stats *StatsHandler, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger,
		stats:  stats,
		send:   event.Send,
		flow:   auth.NewFlow(conn, logger),
		ended:  make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Run starts the connection and blocks until it ends or ctx is done. It
// returns the end reason once every timer and listener of the session is gone.
func (s *Session) Run(ctx context.Context) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	s.g, s.ctx = errgroup.WithContext(ctx)
	s.cancel = cancel
	s.registry = behavior.NewRegistry(s.ctx, s.logger)

	if s.cfg.PingMonitor.Enabled {
		s.ping = health.NewPingMonitor(s.logger, s.cfg.PingMonitor.HighPingThreshold, time.Duration(s.cfg.PingMonitor.SustainedDuration)*time.Second)
		s.ping.OnHighPing = func(int, time.Duration) {
			s.logger.Warn("Closing connection due to sustained high ping")
			_ = s.conn.Close()
		}
	}

	s.sub = s.conn.Subscribe(s.handle)
	if err := s.conn.Start(); err != nil {
		s.teardown()
		return "", fmt.Errorf("starting session: %w", err)
	}

	reason := endReasonStopped
	select {
	case <-s.ended:
		reason = s.endReason
	case <-ctx.Done():
	}

	s.teardown()
	return reason, nil
}

// Tasks returns the timers currently owned by the session.
func (s *Session) Tasks() []behavior.Task {
	if s.registry == nil {
		return nil
	}
	return s.registry.Tasks()
}

// AuthState returns the handshake phase of this session.
func (s *Session) AuthState() (auth.Phase, error) {
	return s.flow.State()
}

func (s *Session) teardown() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.cancel()
	if err := s.g.Wait(); err != nil {
		s.logger.Debug("Session routine finished with error", slog.Any("error", err))
	}
	s.registry.CancelAll()
	s.sub.Close()
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("Error closing connection", slog.Any("error", err))
	}
}

// positionLabel formats the last reported position and records it in stats.
func (s *Session) positionLabel() string {
	pos, ok := s.conn.Position()
	if !ok {
		return "unknown"
	}
	s.stats.SetPosition(pos)
	return pos.String()
}

// handle runs on the connection's event goroutine.
func (s *Session) handle(e game.Event) {
	switch e.Kind {
	case game.KindSpawn:
		s.onSpawn()
	case game.KindGoalReached:
		s.logger.Info("Bot arrived at the target location", slog.String("position", s.positionLabel()))
	case game.KindDeath:
		pos := s.positionLabel()
		s.stats.Died()
		s.logger.Warn("Bot has died and was respawned", slog.String("position", pos))
		s.send(event.Died(event.Text(supervisorName, "Bot has died and was respawned at "+pos)))
	case game.KindKicked:
		s.stats.Kicked(e.Reason)
		s.logger.Warn("Bot was kicked from the server", slog.String("reason", e.Reason))
		s.send(event.Kicked(event.Text(supervisorName, "Bot was kicked from the server"), e.Reason))
	case game.KindError:
		if e.Err != nil {
			s.stats.Error(e.Err)
			s.logger.Error("Connection error", slog.Any("error", e.Err))
		}
	case game.KindMessage:
		s.logger.Debug("[Server] " + e.Text)
	case game.KindPosition:
		s.stats.SetPosition(e.Position)
	case game.KindPing:
		if s.ping != nil {
			s.ping.Observe(e)
		}
	case game.KindEnd:
		s.endOnce.Do(func() {
			s.endReason = e.Reason
			close(s.ended)
		})
	}
}

func (s *Session) onSpawn() {
	first := false
	s.spawnOnce.Do(func() { first = true })
	if !first {
		s.logger.Info("Bot respawned", slog.String("position", s.positionLabel()))
		return
	}

	s.logger.Info("Bot joined the server")
	s.stats.SetStatus(InGame)
	s.send(event.SessionStarted(event.Text(supervisorName, "Bot joined the server"), s.id))

	if !s.cfg.AutoAuth.Enabled {
		s.startBehaviors()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return
	}
	s.g.Go(func() error {
		s.authenticate(s.ctx)
		s.startBehaviors()
		return nil
	})
}

// authenticate runs the handshake bounded by the configured timeout. The
// outcome is logged and published, a failure never ends the session.
func (s *Session) authenticate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AuthTimeout())
	defer cancel()

	s.stats.SetAuthPhase(auth.AwaitingRegisterResult.String())
	err := s.flow.Run(ctx, auth.Credentials{Password: s.cfg.AutoAuth.Password})
	phase, _ := s.flow.State()
	s.stats.SetAuthPhase(phase.String())

	if errors.Is(err, context.Canceled) {
		s.logger.Debug("Auto-auth abandoned, session is closing")
		return
	}
	if err != nil {
		s.logger.Error("Auto-auth failed", slog.Any("error", err))
		s.send(event.AuthFinished(event.Text(supervisorName, "Auto-auth failed"), false, err.Error()))
		return
	}

	s.logger.Info("Auto-auth completed")
	s.send(event.AuthFinished(event.Text(supervisorName, "Auto-auth completed"), true, ""))
}

// startBehaviors starts every behavior enabled in config. It runs once, after
// the handshake resolved or right on spawn when auto-auth is off.
func (s *Session) startBehaviors() {
	s.schedOnce.Do(func() {
		if s.ctx.Err() != nil {
			return
		}

		if s.cfg.ChatMessages.Enabled {
			behavior.NewChatBroadcaster(s.conn, behavior.ChatOptions{
				Repeat:   s.cfg.ChatMessages.Repeat,
				Delay:    s.cfg.ChatRepeatDelay(),
				Messages: s.cfg.ChatMessages.Messages,
			}, s.logger).Start(s.registry)
		}

		if s.cfg.Position.Enabled {
			p := s.cfg.Position
			behavior.MoveToFixedPoint(s.conn, game.Position{X: p.X, Y: p.Y, Z: p.Z}, s.logger)
		}

		if s.cfg.AntiAfk.Enabled {
			s.logger.Info("Started anti-afk module", slog.Bool("sneak", s.cfg.AntiAfk.Sneak))
			behavior.NewWander(s.conn, nil, s.logger).Start(s.registry)
			if s.cfg.AntiAfk.Sneak {
				behavior.StartGesture(s.registry, s.conn, behavior.Sneak)
			}
			behavior.StartGesture(s.registry, s.conn, behavior.Jump)
		}
	})
}
