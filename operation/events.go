package operation

import "github.com/tailored-agentic-units/flux/observability"

const (
	EventSkipped       observability.EventType = "operation.skipped"
	EventLoadStart     observability.EventType = "operation.load.start"
	EventLoadSucceeded observability.EventType = "operation.load.succeeded"
	EventLoadFailed    observability.EventType = "operation.load.failed"
	EventDispatchError observability.EventType = "operation.dispatch.error"
)
