package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 15 * time.Second
)

type BridgeOptions struct {
	URL    string
	Login  LoginInfo
	Logger *slog.Logger
}

// inbound is the wire form of an event coming from the client bridge.
type inbound struct {
	Type    EventKind `json:"type"`
	Text    string    `json:"text"`
	Reason  string    `json:"reason"`
	Message string    `json:"message"`
	X       *float64  `json:"x"`
	Y       *float64  `json:"y"`
	Z       *float64  `json:"z"`
	Ms      int       `json:"ms"`
}

// position returns the coordinates carried by the message, if all three are set.
func (m inbound) position() (Position, bool) {
	if m.X == nil || m.Y == nil || m.Z == nil {
		return Position{}, false
	}
	return Position{X: *m.X, Y: *m.Y, Z: *m.Z}, true
}

// Bridge is a Conn backed by a websocket to a headless game client. The bridge
// process owns the game protocol, entity tracking and pathing; this side only
// relays commands and events.
type Bridge struct {
	ws       *websocket.Conn
	hub      *Hub
	commands *CommandSender
	login    LoginInfo
	logger   *slog.Logger

	writeMu  sync.Mutex
	posMu    sync.RWMutex
	position Position
	posKnown bool

	startOnce sync.Once
	endOnce   sync.Once
	done      chan struct{}
}

func DialBridge(ctx context.Context, opts BridgeOptions) (*Bridge, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing client bridge %s: %w", ErrConnection, opts.URL, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		ws:     ws,
		hub:    NewHub(),
		login:  opts.Login,
		logger: logger,
		done:   make(chan struct{}),
	}
	b.commands = NewCommandSender(b)

	return b, nil
}

// Start asks the bridge to join the server and begins delivering events.
func (b *Bridge) Start() error {
	var err error
	b.startOnce.Do(func() {
		go b.readLoop()
		err = b.commands.Connect(b.login)
	})
	return err
}

func (b *Bridge) Subscribe(fn func(Event)) *Subscription {
	return b.hub.Subscribe(fn)
}

func (b *Bridge) SendText(text string) error {
	return b.commands.Chat(text)
}

func (b *Bridge) MoveTo(p Position) error {
	return b.commands.MoveTo(p)
}

func (b *Bridge) SetControl(c Control, state bool) error {
	return b.commands.SetControl(c, state)
}

func (b *Bridge) Position() (Position, bool) {
	b.posMu.RLock()
	defer b.posMu.RUnlock()
	return b.position, b.posKnown
}

// Close tears down the websocket. The read loop then reports KindEnd. It does
// not wait for the read loop so it is safe to call from a subscriber.
func (b *Bridge) Close() error {
	b.writeMu.Lock()
	_ = b.ws.SetWriteDeadline(time.Now().Add(time.Second))
	_ = b.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	b.writeMu.Unlock()

	return b.ws.Close()
}

// Done is closed once the read loop exits.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) WriteCommand(cmd Command) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := b.ws.WriteJSON(cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	return nil
}

func (b *Bridge) readLoop() {
	defer close(b.done)

	for {
		_, data, err := b.ws.ReadMessage()
		if err != nil {
			reason := "connection closed"
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = err.Error()
			}
			b.end(reason)
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			b.logger.Debug("Discarding malformed bridge message", slog.Any("error", err))
			continue
		}

		if msg.Type == KindEnd {
			b.end(msg.Reason)
			_ = b.ws.Close()
			return
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg inbound) {
	e := Event{Kind: msg.Type}

	pos, hasPos := msg.position()
	if hasPos {
		e.Position = pos
	}

	switch msg.Type {
	case KindMessage:
		e.Text = StripFormatting(msg.Text)
	case KindPosition:
		if !hasPos {
			b.logger.Debug("Discarding position event without coordinates")
			return
		}
	case KindKicked:
		e.Reason = StripFormatting(msg.Reason)
	case KindError:
		e.Err = fmt.Errorf("%w: %s", ErrConnection, msg.Message)
	case KindPing:
		e.PingMs = msg.Ms
	case KindSpawn, KindDeath, KindGoalReached:
	default:
		b.logger.Debug("Ignoring unknown bridge event", slog.String("type", string(msg.Type)))
		return
	}

	if hasPos {
		b.posMu.Lock()
		b.position = pos
		b.posKnown = true
		b.posMu.Unlock()
	}
	b.hub.Publish(e)
}

func (b *Bridge) end(reason string) {
	b.endOnce.Do(func() {
		b.hub.Publish(Event{Kind: KindEnd, Reason: reason})
	})
}
