package event

import "time"

type Event interface {
	Message() string
	Supervisor() string
	OccurredAt() time.Time
}

type BaseEvent struct {
	message    string
	supervisor string
	occurredAt time.Time
}

func (b BaseEvent) Message() string {
	return b.message
}

func (b BaseEvent) Supervisor() string {
	return b.supervisor
}

func (b BaseEvent) OccurredAt() time.Time {
	return b.occurredAt
}

func Text(supervisor string, message string) BaseEvent {
	return BaseEvent{
		supervisor: supervisor,
		message:    message,
		occurredAt: time.Now(),
	}
}
