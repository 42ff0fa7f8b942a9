package store

import "reflect"

// Scoped is implemented by actions that belong to exactly one state slice.
// Build rejects an updater of any other slice for such an action.
type Scoped interface {
	TargetState() reflect.Type
}

// Target scopes an action to slice S when embedded in the action struct.
//
//	type Increment struct {
//		store.Target[Counter]
//		By int
//	}
type Target[S any] struct{}

// TargetState returns the type of S.
func (Target[S]) TargetState() reflect.Type { return reflect.TypeFor[S]() }

var scopedType = reflect.TypeFor[Scoped]()

// targetOf reports the slice type action type t is scoped to, if any.
func targetOf(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() == reflect.Interface || !t.Implements(scopedType) {
		return nil, false
	}

	var v reflect.Value
	if t.Kind() == reflect.Pointer {
		v = reflect.New(t.Elem())
	} else {
		v = reflect.Zero(t)
	}
	return v.Interface().(Scoped).TargetState(), true
}
