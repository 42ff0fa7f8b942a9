package state

import "github.com/tailored-agentic-units/flux/observability"

const (
	EventCreate           observability.EventType = "state.create"
	EventSet              observability.EventType = "state.set"
	EventNotify           observability.EventType = "state.notify"
	EventSubscriberFailed observability.EventType = "state.subscriber.failed"
	EventRestore          observability.EventType = "state.restore"
	EventPersistLoad      observability.EventType = "state.persist.load"
	EventPersistFailed    observability.EventType = "state.persist.failed"
)
