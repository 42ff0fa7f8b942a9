// Package operation runs asynchronous loads from after-effects.
//
// An operation is triggered by an action and tracks its progress in a state
// slice that implements Tracked. It loads at most once per Idle period:
// dispatching the trigger while the slice is Loading, Succeeded or Failed
// does nothing until Reset is dispatched.
//
//	type Profile struct {
//		Status operation.Status
//		Name   string
//	}
//
//	func (p Profile) OpStatus() operation.Status { return p.Status }
//	func (p Profile) WithOpStatus(s operation.Status) Profile {
//		p.Status = s
//		return p
//	}
//
//	type FetchProfile struct{ ID string }
//
//	operation.Register(b, func(ctx context.Context, a FetchProfile, _ Profile) (string, error) {
//		return api.Name(ctx, a.ID)
//	})
//	store.RegisterUpdater(b, func(a operation.Loaded[FetchProfile, string], p Profile) Profile {
//		p.Name = a.Result
//		return p
//	})
//
// Failed loads are appended to the FailureLog slice, which the first
// Register call adds to the builder.
package operation
