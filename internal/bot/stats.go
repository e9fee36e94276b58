package bot

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hectorgimenez/afkbot/internal/game"
)

type SupervisorStatus string

const (
	NotStarted   SupervisorStatus = "Not Started"
	Connecting   SupervisorStatus = "Connecting"
	InGame       SupervisorStatus = "In game"
	Reconnecting SupervisorStatus = "Waiting to reconnect"
	Idle         SupervisorStatus = "Idle"
	Stopped      SupervisorStatus = "Stopped"
)

type Stats struct {
	SessionID        string           `json:"sessionId"`
	SupervisorStatus SupervisorStatus `json:"status"`
	AuthPhase        string           `json:"authPhase"`
	StartedAt        time.Time        `json:"startedAt"`
	Sessions         int              `json:"sessions"`
	Reconnects       int              `json:"reconnects"`
	Deaths           int              `json:"deaths"`
	LastKickReason   string           `json:"lastKickReason,omitempty"`
	LastEndReason    string           `json:"lastEndReason,omitempty"`
	LastError        string           `json:"lastError,omitempty"`
	Position         game.Position    `json:"position"`
}

// StatsHandler keeps the counters shown by the status endpoint and the remote
// notifiers. Counters survive reconnects, per session fields are reset by
// NewSession.
type StatsHandler struct {
	mu     sync.RWMutex
	stats  Stats
	logger *slog.Logger
}

func NewStatsHandler(logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:  Stats{SupervisorStatus: NotStarted},
		logger: logger,
	}
}

func (h *StatsHandler) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

func (h *StatsHandler) NewSession(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stats.Sessions > 0 {
		h.stats.Reconnects++
	}
	h.stats.Sessions++
	h.stats.SessionID = id
	h.stats.StartedAt = time.Now()
	h.stats.AuthPhase = ""
	h.stats.SupervisorStatus = Connecting
}

func (h *StatsHandler) SetStatus(status SupervisorStatus) {
	h.mu.Lock()
	h.stats.SupervisorStatus = status
	h.mu.Unlock()
	h.logger.Debug("Status changed", slog.String("status", string(status)))
}

func (h *StatsHandler) SetAuthPhase(phase string) {
	h.mu.Lock()
	h.stats.AuthPhase = phase
	h.mu.Unlock()
}

func (h *StatsHandler) SetPosition(p game.Position) {
	h.mu.Lock()
	h.stats.Position = p
	h.mu.Unlock()
}

func (h *StatsHandler) Died() {
	h.mu.Lock()
	h.stats.Deaths++
	h.mu.Unlock()
}

func (h *StatsHandler) Kicked(reason string) {
	h.mu.Lock()
	h.stats.LastKickReason = reason
	h.mu.Unlock()
}

func (h *StatsHandler) Ended(reason string) {
	h.mu.Lock()
	h.stats.LastEndReason = reason
	h.mu.Unlock()
}

func (h *StatsHandler) Error(err error) {
	h.mu.Lock()
	h.stats.LastError = err.Error()
	h.mu.Unlock()
}
