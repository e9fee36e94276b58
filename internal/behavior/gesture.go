package behavior

import (
	"context"
	"fmt"
	"time"

	"github.com/hectorgimenez/afkbot/internal/game"
)

// Gesture holds a control for Hold once every Every.
type Gesture struct {
	Control game.Control
	Every   time.Duration
	Hold    time.Duration
}

var (
	Sneak = Gesture{Control: game.ControlSneak, Every: 30 * time.Second, Hold: 2 * time.Second}
	Jump  = Gesture{Control: game.ControlJump, Every: 20 * time.Second, Hold: 500 * time.Millisecond}
)

// StartGesture schedules g on r. The release is a one-shot task of the same
// registry so a cancelled session never leaves it pending. Windows may overlap
// when Hold exceeds Every.
func StartGesture(r *Registry, conn game.Conn, g Gesture) {
	r.Every(string(g.Control), g.Every, func(_ context.Context) error {
		if err := conn.SetControl(g.Control, true); err != nil {
			return fmt.Errorf("engaging %s: %w", g.Control, err)
		}

		r.After(string(g.Control)+"-release", g.Hold, func(_ context.Context) error {
			if err := conn.SetControl(g.Control, false); err != nil {
				return fmt.Errorf("releasing %s: %w", g.Control, err)
			}
			return nil
		})
		return nil
	})
}
