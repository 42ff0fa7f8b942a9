package store

import (
	"context"
)

// HookPoint is where in a stage a hook runs.
type HookPoint int

const (
	BeforeInterceptor HookPoint = iota
	AfterInterceptor
	BeforeUpdater
	AfterUpdater
	BeforeAfterEffect
	AfterAfterEffect
)

func (p HookPoint) String() string {
	switch p {
	case BeforeInterceptor:
		return "before-interceptor"
	case AfterInterceptor:
		return "after-interceptor"
	case BeforeUpdater:
		return "before-updater"
	case AfterUpdater:
		return "after-updater"
	case BeforeAfterEffect:
		return "before-after-effect"
	case AfterAfterEffect:
		return "after-after-effect"
	default:
		return "unknown"
	}
}

// Unit describes the unit of work a hook surrounds.
type Unit struct {
	Point   HookPoint
	Stage   Stage
	Index   int    // position of the unit within its stage
	Action  any
	Slice   string // target slice name; updaters only
	Changed bool   // AfterUpdater only: whether the slice changed
	Control *Control
}

// Hook is a cross-cutting callback around units of work. Hooks steer the
// pipeline only through Unit.Control. A returned error aborts the dispatch
// the same way a failing unit does.
type Hook func(ctx context.Context, u Unit) error

func runHooks(ctx context.Context, hooks []Hook, u Unit) error {
	for _, h := range hooks {
		if err := h(ctx, u); err != nil {
			return err
		}
	}
	return nil
}
