// Package gametest provides an in-memory game.Conn for tests.
package gametest

import (
	"sync"

	"github.com/hectorgimenez/afkbot/internal/game"
)

type ControlCall struct {
	Control game.Control
	State   bool
}

// Conn records every outgoing call and lets tests inject events with Emit.
type Conn struct {
	hub *game.Hub

	mu       sync.Mutex
	started  bool
	closed   bool
	sent     []string
	moves    []game.Position
	controls []ControlCall
	position game.Position
	posKnown bool

	// SendErr, MoveErr and ControlErr are returned by the matching calls when set.
	SendErr    error
	MoveErr    error
	ControlErr error

	// OnSend runs after a text is recorded, outside the lock.
	OnSend func(text string)
}

func NewConn() *Conn {
	return &Conn{hub: game.NewHub()}
}

func (c *Conn) Start() error {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

func (c *Conn) Subscribe(fn func(game.Event)) *game.Subscription {
	return c.hub.Subscribe(fn)
}

func (c *Conn) SendText(text string) error {
	c.mu.Lock()
	c.sent = append(c.sent, text)
	err := c.SendErr
	onSend := c.OnSend
	c.mu.Unlock()

	if onSend != nil {
		onSend(text)
	}
	return err
}

func (c *Conn) MoveTo(p game.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moves = append(c.moves, p)
	return c.MoveErr
}

func (c *Conn) SetControl(ctrl game.Control, state bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, ControlCall{Control: ctrl, State: state})
	return c.ControlErr
}

func (c *Conn) Position() (game.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position, c.posKnown
}

func (c *Conn) SetPosition(p game.Position) {
	c.mu.Lock()
	c.position = p
	c.posKnown = true
	c.mu.Unlock()
}

// Close marks the conn closed and, like the bridge, reports KindEnd once.
func (c *Conn) Close() error {
	c.mu.Lock()
	first := !c.closed
	c.closed = true
	c.mu.Unlock()

	if first {
		c.hub.Publish(game.Event{Kind: game.KindEnd, Reason: "connection closed"})
	}
	return nil
}

// Emit publishes e to the subscribers synchronously.
func (c *Conn) Emit(e game.Event) {
	c.hub.Publish(e)
}

func (c *Conn) Say(text string) {
	c.Emit(game.Event{Kind: game.KindMessage, Text: text})
}

func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func (c *Conn) Moves() []game.Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]game.Position(nil), c.moves...)
}

func (c *Conn) Controls() []ControlCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ControlCall(nil), c.controls...)
}

func (c *Conn) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Subscribers returns the number of live subscriptions.
func (c *Conn) Subscribers() int {
	return c.hub.Len()
}
