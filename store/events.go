package store

import "github.com/tailored-agentic-units/flux/observability"

const (
	EventBuild             observability.EventType = "store.build"
	EventDispatchStart     observability.EventType = "store.dispatch.start"
	EventDispatchComplete  observability.EventType = "store.dispatch.complete"
	EventDispatchCancelled observability.EventType = "store.dispatch.cancelled"
	EventDispatchError     observability.EventType = "store.dispatch.error"
	EventDispatchUnhandled observability.EventType = "store.dispatch.unhandled"
	EventStageComplete     observability.EventType = "store.stage.complete"
	EventUpdaterApplied    observability.EventType = "store.updater.applied"
	EventNotifyFailed      observability.EventType = "store.notify.failed"
	EventFlush             observability.EventType = "store.flush"
)
