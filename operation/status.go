package operation

import (
	"github.com/tailored-agentic-units/flux/store"
)

// Status is the lifecycle of one asynchronous operation.
type Status int

const (
	Idle Status = iota
	Loading
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tracked is a state slice that carries an operation's status. WithOpStatus
// returns a copy; it must not modify the receiver.
type Tracked[S any] interface {
	OpStatus() Status
	WithOpStatus(Status) S
}

// StatusChanged moves slice S to Status. Operations dispatch it themselves.
type StatusChanged[S any] struct {
	store.Target[S]
	Status Status
}

// Reset returns slice S to Idle so its operation can load again.
type Reset[S any] struct {
	store.Target[S]
}

// Loaded is dispatched after a successful load. Register updaters for it to
// fold Result into state.
type Loaded[A, R any] struct {
	Trigger A
	Result  R
}

func registerStatus[S Tracked[S]](b *store.Builder) {
	if !store.HasUpdater[StatusChanged[S], S](b) {
		store.RegisterUpdater(b, func(a StatusChanged[S], s S) S {
			return s.WithOpStatus(a.Status)
		})
	}
	if !store.HasUpdater[Reset[S], S](b) {
		store.RegisterUpdater(b, func(_ Reset[S], s S) S {
			return s.WithOpStatus(Idle)
		})
	}
}
