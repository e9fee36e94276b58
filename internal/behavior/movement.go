package behavior

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/hectorgimenez/afkbot/internal/game"
)

const (
	WanderInterval = 15 * time.Second
	WanderRadius   = 5.0
)

// Wander walks to a random block near the current position every Interval.
// Targets are always relative to where the bot stands at tick time.
type Wander struct {
	conn     game.Conn
	logger   *slog.Logger
	Interval time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewWander(conn game.Conn, rnd *rand.Rand, logger *slog.Logger) *Wander {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Wander{
		conn:     conn,
		logger:   logger,
		Interval: WanderInterval,
		rnd:      rnd,
	}
}

func (w *Wander) Start(r *Registry) {
	r.Every("wander", w.Interval, w.tick)
}

// Target picks the next destination around from. X and Z get an offset in
// [-WanderRadius, WanderRadius], Y is kept, and the result is floored.
func (w *Wander) Target(from game.Position) game.Position {
	w.mu.Lock()
	dx := w.rnd.Float64()*2*WanderRadius - WanderRadius
	dz := w.rnd.Float64()*2*WanderRadius - WanderRadius
	w.mu.Unlock()

	return game.Position{X: from.X + dx, Y: from.Y, Z: from.Z + dz}.Floor()
}

func (w *Wander) tick(_ context.Context) error {
	from, ok := w.conn.Position()
	if !ok {
		w.logger.Debug("Position unknown, skipping wander")
		return nil
	}
	target := w.Target(from)
	if err := w.conn.MoveTo(target); err != nil {
		return fmt.Errorf("moving to %s: %w", target, err)
	}
	w.logger.Debug("Wandering", slog.String("target", target.String()))
	return nil
}

// MoveToFixedPoint sends the bot to the configured standing spot.
func MoveToFixedPoint(conn game.Conn, p game.Position, logger *slog.Logger) {
	logger.Info("Starting to move to target location", slog.String("target", p.String()))
	if err := conn.MoveTo(p); err != nil {
		logger.Warn("Failed to move to target location", slog.Any("error", err))
	}
}
