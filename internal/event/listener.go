package event

import (
	"context"
	"log/slog"
	"sync"
)

const queueSize = 100

var events = make(chan Event, queueSize)

type Handler func(ctx context.Context, e Event) error

// Send queues e for every registered handler. It never blocks: when the queue
// is full the event is dropped, notifications must not stall a session.
func Send(e Event) {
	select {
	case events <- e:
	default:
		slog.Warn("Event queue full, dropping event", slog.String("message", e.Message()))
	}
}

type Listener struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
	queue    chan Event
}

func NewListener(logger *slog.Logger) *Listener {
	return &Listener{
		logger: logger,
		queue:  events,
	}
}

func (l *Listener) Register(h Handler) {
	l.mu.Lock()
	l.handlers = append(l.handlers, h)
	l.mu.Unlock()
}

// Listen dispatches queued events until ctx is done. Handler errors are logged
// and do not stop the other handlers.
func (l *Listener) Listen(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-l.queue:
			l.dispatch(ctx, e)
		}
	}
}

// Publish delivers e synchronously, bypassing the queue.
func (l *Listener) Publish(ctx context.Context, e Event) {
	l.dispatch(ctx, e)
}

func (l *Listener) dispatch(ctx context.Context, e Event) {
	l.mu.RLock()
	handlers := make([]Handler, len(l.handlers))
	copy(handlers, l.handlers)
	l.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, e); err != nil {
			l.logger.Error("Error handling event",
				slog.String("supervisor", e.Supervisor()),
				slog.String("message", e.Message()),
				slog.Any("error", err))
		}
	}
}
