package event

// SessionStartedEvent is emitted once the bot spawned in the world.
type SessionStartedEvent struct {
	BaseEvent
	SessionID string
}

func SessionStarted(be BaseEvent, sessionID string) SessionStartedEvent {
	return SessionStartedEvent{BaseEvent: be, SessionID: sessionID}
}

type AuthFinishedEvent struct {
	BaseEvent
	Success bool
	Reason  string
}

func AuthFinished(be BaseEvent, success bool, reason string) AuthFinishedEvent {
	return AuthFinishedEvent{BaseEvent: be, Success: success, Reason: reason}
}

type KickedEvent struct {
	BaseEvent
	Reason string
}

func Kicked(be BaseEvent, reason string) KickedEvent {
	return KickedEvent{BaseEvent: be, Reason: reason}
}

type DiedEvent struct {
	BaseEvent
}

func Died(be BaseEvent) DiedEvent {
	return DiedEvent{BaseEvent: be}
}

// SessionEndedEvent is emitted when the connection is gone. Reconnecting tells
// whether a new session will be started.
type SessionEndedEvent struct {
	BaseEvent
	SessionID    string
	Reason       string
	Reconnecting bool
}

func SessionEnded(be BaseEvent, sessionID, reason string, reconnecting bool) SessionEndedEvent {
	return SessionEndedEvent{BaseEvent: be, SessionID: sessionID, Reason: reason, Reconnecting: reconnecting}
}

type NgrokTunnelEvent struct {
	BaseEvent
	URL string
}

func NgrokTunnel(url string) NgrokTunnelEvent {
	return NgrokTunnelEvent{BaseEvent: Text("", "ngrok tunnel ready: "+url), URL: url}
}
