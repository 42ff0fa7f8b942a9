package observability

import "context"

// NoOpObserver drops every event. It is the fallback whenever a component is
// constructed without an observer.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}

// OrNoOp returns obs, or NoOpObserver when obs is nil.
func OrNoOp(obs Observer) Observer {
	if obs == nil {
		return NoOpObserver{}
	}
	return obs
}
