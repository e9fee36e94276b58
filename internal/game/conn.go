package game

import (
	"errors"
	"fmt"
	"math"
)

// ErrConnection is returned for transport-level failures talking to the client bridge.
var ErrConnection = errors.New("connection error")

type EventKind string

const (
	KindSpawn       EventKind = "spawn"
	KindEnd         EventKind = "end"
	KindError       EventKind = "error"
	KindKicked      EventKind = "kicked"
	KindDeath       EventKind = "death"
	KindGoalReached EventKind = "goal_reached"
	KindMessage     EventKind = "message"
	KindPosition    EventKind = "position"
	KindPing        EventKind = "ping"
)

// Event is a single notification coming from the game client. Text carries the
// server chat line for KindMessage, Reason the kick/end reason and Err the
// failure for KindError.
type Event struct {
	Kind     EventKind
	Text     string
	Reason   string
	Err      error
	Position Position
	PingMs   int
}

type Control string

const (
	ControlSneak Control = "sneak"
	ControlJump  Control = "jump"
)

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Floor snaps the position to the block grid.
func (p Position) Floor() Position {
	return Position{X: math.Floor(p.X), Y: math.Floor(p.Y), Z: math.Floor(p.Z)}
}

func (p Position) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", p.X, p.Y, p.Z)
}

// Conn is the handle of a single connection to the game server. Events are
// delivered to subscribers in arrival order from a single goroutine, and
// KindEnd is delivered exactly once. No event is delivered before Start, so
// callers subscribe first. Position reports false until the client sent one.
type Conn interface {
	Start() error
	SendText(text string) error
	Subscribe(fn func(Event)) *Subscription
	Position() (Position, bool)
	MoveTo(p Position) error
	SetControl(c Control, state bool) error
	Close() error
}
