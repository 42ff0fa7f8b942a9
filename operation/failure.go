package operation

import (
	"time"

	"github.com/tailored-agentic-units/flux/state"
	"github.com/tailored-agentic-units/flux/store"
)

// Failure records one failed load: the action that triggered it, the slice
// value before the load started and after Failed was applied, and the load
// error.
type Failure struct {
	Operation  string
	Trigger    any
	Before     any
	After      any
	Err        error
	DispatchID string
	At         time.Time
}

// FailureLog is the slice that collects Failures from every operation in a
// store, oldest first.
type FailureLog struct {
	Entries []Failure
}

// Last returns the most recent failure.
func (l FailureLog) Last() (Failure, bool) {
	if len(l.Entries) == 0 {
		return Failure{}, false
	}
	return l.Entries[len(l.Entries)-1], true
}

// For returns the failures recorded by the named operation.
func (l FailureLog) For(operation string) []Failure {
	var out []Failure
	for _, f := range l.Entries {
		if f.Operation == operation {
			out = append(out, f)
		}
	}
	return out
}

// RecordFailure appends its Failure to the FailureLog.
type RecordFailure struct {
	store.Target[FailureLog]
	Failure
}

// ClearFailures empties the FailureLog.
type ClearFailures struct {
	store.Target[FailureLog]
}

// registerFailureLog adds the FailureLog slice the first time any operation
// is registered on b. The first registration's limit applies.
func registerFailureLog(b *store.Builder, limit int) {
	if store.HasState[FailureLog](b) {
		return
	}

	store.RegisterState(b, state.Value(FailureLog{}))
	store.RegisterUpdater(b, func(a RecordFailure, l FailureLog) FailureLog {
		entries := append(make([]Failure, 0, len(l.Entries)+1), l.Entries...)
		entries = append(entries, a.Failure)
		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		return FailureLog{Entries: entries}
	})
	store.RegisterUpdater(b, func(_ ClearFailures, _ FailureLog) FailureLog {
		return FailureLog{}
	})
}
