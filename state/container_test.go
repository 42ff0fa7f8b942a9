package state_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/state"
)

type counter struct {
	Count int `json:"count"`
}

type tags struct {
	Items []string
}

type version struct {
	Major, Minor int
	Note         string
}

// Equal ignores Note.
func (v version) Equal(o version) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) count(typ observability.EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestNew_CallsProviderOnce(t *testing.T) {
	calls := 0
	c := state.New("counter", state.ProviderFunc[counter](func() counter {
		calls++
		return counter{Count: 5}
	}))

	if calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
	if got := c.Current(); got.Count != 5 {
		t.Errorf("Current() = %+v, want count 5", got)
	}
	if c.Name() != "counter" {
		t.Errorf("Name() = %q", c.Name())
	}
	if c.Type().Name() != "counter" {
		t.Errorf("Type() = %v", c.Type())
	}
}

func TestSet_EqualValueIsNoOp(t *testing.T) {
	obs := &captureObserver{}
	c := state.New("counter", state.Value(counter{}), state.WithObserver[counter](obs))

	notified := 0
	c.Subscribe(func(counter) error { notified++; return nil })

	if c.Set(counter{}) {
		t.Error("Set(equal) reported a change")
	}
	if !c.Set(counter{Count: 1}) {
		t.Error("Set(different) reported no change")
	}
	if obs.count(state.EventSet) != 1 {
		t.Errorf("got %d set events, want 1", obs.count(state.EventSet))
	}
	if notified != 0 {
		t.Errorf("Set must never notify, got %d notifications", notified)
	}

	if err := c.Notify(); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if c.Set(counter{Count: 1}) {
		t.Error("Set(equal) after change reported a change")
	}
	if err := c.Notify(); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if notified != 2 {
		t.Errorf("explicit Notify must always fire, got %d", notified)
	}
}

func TestSet_ValueEquality(t *testing.T) {
	t.Run("deep equal slices", func(t *testing.T) {
		c := state.New("tags", state.Value(tags{Items: []string{"a"}}))
		if c.Set(tags{Items: []string{"a"}}) {
			t.Error("structurally equal value with a fresh slice counted as a change")
		}
	})

	t.Run("equal method", func(t *testing.T) {
		c := state.New("version", state.Value(version{Major: 1}))
		if c.Set(version{Major: 1, Note: "ignored"}) {
			t.Error("Equal method should treat differing Note as equal")
		}
		if !c.Set(version{Major: 2}) {
			t.Error("Equal method should detect a major bump")
		}
	})

	t.Run("proto message", func(t *testing.T) {
		c := state.New("count", state.Value(wrapperspb.Int64(3)))
		if c.Set(wrapperspb.Int64(3)) {
			t.Error("proto.Equal messages counted as a change")
		}
		if !c.Set(wrapperspb.Int64(4)) {
			t.Error("different proto message not detected")
		}
	})

	t.Run("custom equal", func(t *testing.T) {
		c := state.New("counter", state.Value(counter{}), state.WithEqual[counter](func(a, b counter) bool { return false }))
		if !c.Set(counter{}) {
			t.Error("WithEqual override was ignored")
		}
	})
}

func TestSubscribe_OrderAndDuplicates(t *testing.T) {
	c := state.New("counter", state.Value(counter{}))

	var order []string
	record := func(name string) state.Subscriber[counter] {
		return func(counter) error { order = append(order, name); return nil }
	}

	shared := record("shared")
	c.Subscribe(record("first"))
	id := c.Subscribe(shared)
	c.Subscribe(shared)
	c.Subscribe(record("last"))

	_ = c.Notify()

	want := []string{"first", "shared", "shared", "last"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}

	order = nil
	c.Unsubscribe(id)
	c.Unsubscribe(9999)
	_ = c.Notify()

	if len(order) != 3 || order[1] != "shared" {
		t.Errorf("after unsubscribing one duplicate, order = %v", order)
	}
}

func TestNotify_IsolatesFailures(t *testing.T) {
	obs := &captureObserver{}
	c := state.New("counter", state.Value(counter{}), state.WithObserver[counter](obs))

	boom := errors.New("render failed")
	ran := 0
	c.Subscribe(func(counter) error { ran++; return boom })
	c.Subscribe(func(counter) error { ran++; panic("nil view") })
	c.Subscribe(func(counter) error { ran++; return nil })

	err := c.Notify()
	if ran != 3 {
		t.Errorf("ran %d subscribers, want all 3", ran)
	}

	var notifyErr *state.NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("Notify() error = %v, want *NotifyError", err)
	}
	if len(notifyErr.Failures) != 2 {
		t.Errorf("got %d failures, want 2", len(notifyErr.Failures))
	}
	if !errors.Is(err, boom) {
		t.Error("NotifyError should unwrap to the subscriber error")
	}
	if !errors.Is(err, state.ErrSubscriberPanic) {
		t.Error("NotifyError should unwrap to ErrSubscriberPanic")
	}
	if obs.count(state.EventSubscriberFailed) != 2 {
		t.Errorf("got %d failure events, want 2", obs.count(state.EventSubscriberFailed))
	}
}

func TestNotify_SubscriberMayUnsubscribe(t *testing.T) {
	c := state.New("counter", state.Value(counter{}))

	var id state.Subscription
	calls := 0
	id = c.Subscribe(func(counter) error {
		calls++
		c.Unsubscribe(id)
		return nil
	})

	_ = c.Notify()
	_ = c.Notify()

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRestore(t *testing.T) {
	c := state.New("counter", state.Value(counter{}))

	var seen []int
	c.Subscribe(func(s counter) error { seen = append(seen, s.Count); return nil })

	if err := c.Restore(counter{Count: 9}); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if c.Current().Count != 9 || len(seen) != 1 || seen[0] != 9 {
		t.Errorf("Restore did not set and notify: current=%+v seen=%v", c.Current(), seen)
	}

	if err := c.Restore("nope"); !errors.Is(err, state.ErrTypeMismatch) {
		t.Errorf("Restore(string) error = %v, want ErrTypeMismatch", err)
	}
	if c.Value().(counter).Count != 9 {
		t.Error("failed Restore must not change the value")
	}
}

func TestContainer_ConcurrentAccess(t *testing.T) {
	c := state.New("counter", state.Value(counter{}))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			c.Set(counter{Count: n})
		}(i)
		go func() {
			defer wg.Done()
			id := c.Subscribe(func(counter) error { return nil })
			c.Unsubscribe(id)
		}()
		go func() {
			defer wg.Done()
			_ = c.Notify()
			_ = c.Current()
		}()
	}
	wg.Wait()
}
