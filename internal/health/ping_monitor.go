package health

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hectorgimenez/afkbot/internal/game"
)

// PingMonitor fires OnHighPing once when the latency reported by the client
// stays above Threshold for Sustained. The session closes the connection from
// that callback and the reconnect loop takes over.
type PingMonitor struct {
	Threshold  int
	Sustained  time.Duration
	OnHighPing func(ping int, elapsed time.Duration)

	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	highSince time.Time
	fired     bool
}

func NewPingMonitor(logger *slog.Logger, threshold int, sustained time.Duration) *PingMonitor {
	return &PingMonitor{
		Threshold: threshold,
		Sustained: sustained,
		logger:    logger,
		now:       time.Now,
	}
}

// Observe feeds a connection event to the monitor. Anything but KindPing is
// ignored.
func (pm *PingMonitor) Observe(e game.Event) {
	if e.Kind == game.KindPing {
		pm.CheckPing(e.PingMs)
	}
}

// CheckPing records a latency sample and reports whether the sustained limit
// was reached with it.
func (pm *PingMonitor) CheckPing(ping int) bool {
	pm.mu.Lock()
	if pm.fired {
		pm.mu.Unlock()
		return false
	}

	now := pm.now()
	if ping <= pm.Threshold {
		if !pm.highSince.IsZero() {
			pm.logger.Info("Ping returned to normal",
				slog.Int("ping", ping),
				slog.Duration("highPingDuration", now.Sub(pm.highSince)))
			pm.highSince = time.Time{}
		}
		pm.mu.Unlock()
		return false
	}

	if pm.highSince.IsZero() {
		pm.highSince = now
		pm.logger.Warn("High ping detected, starting monitor",
			slog.Int("ping", ping),
			slog.Int("threshold", pm.Threshold),
			slog.Duration("sustainedDuration", pm.Sustained))
		pm.mu.Unlock()
		return false
	}

	elapsed := now.Sub(pm.highSince)
	if elapsed < pm.Sustained {
		pm.mu.Unlock()
		return false
	}

	pm.fired = true
	cb := pm.OnHighPing
	pm.mu.Unlock()

	pm.logger.Error("Sustained high ping detected",
		slog.Int("ping", ping),
		slog.Duration("duration", elapsed))
	if cb != nil {
		cb(ping, elapsed)
	}

	return true
}

// Reset clears the tracking state so the monitor can fire again.
func (pm *PingMonitor) Reset() {
	pm.mu.Lock()
	pm.highSince = time.Time{}
	pm.fired = false
	pm.mu.Unlock()
}
