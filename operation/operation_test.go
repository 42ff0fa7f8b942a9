package operation_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/flux/observability"
	"github.com/tailored-agentic-units/flux/operation"
	"github.com/tailored-agentic-units/flux/state"
	"github.com/tailored-agentic-units/flux/store"
)

type Profile struct {
	Status operation.Status
	Name   string
}

func (p Profile) OpStatus() operation.Status { return p.Status }

func (p Profile) WithOpStatus(s operation.Status) Profile {
	p.Status = s
	return p
}

type Fetch struct {
	ID string
}

func newBuilder() *store.Builder {
	b := store.NewBuilder(&store.Config{Name: "test"})
	store.RegisterState(b, state.Value(Profile{}))
	store.RegisterUpdater(b, func(a operation.Loaded[Fetch, string], p Profile) Profile {
		p.Name = a.Result
		return p
	})
	return b
}

func build(t *testing.T, b *store.Builder) *store.Store {
	t.Helper()
	st, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return st
}

func watchStatus(st *store.Store) func() []operation.Status {
	var mu sync.Mutex
	var seen []operation.Status
	c, _ := store.Select[Profile](st)
	c.Subscribe(func(p Profile) error {
		mu.Lock()
		defer mu.Unlock()
		if len(seen) == 0 || seen[len(seen)-1] != p.Status {
			seen = append(seen, p.Status)
		}
		return nil
	})
	return func() []operation.Status {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(seen)
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status operation.Status
		want   string
	}{
		{operation.Idle, "idle"},
		{operation.Loading, "loading"},
		{operation.Succeeded, "succeeded"},
		{operation.Failed, "failed"},
		{operation.Status(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestOperation_Succeeds(t *testing.T) {
	b := newBuilder()
	op := operation.Register(b, func(_ context.Context, a Fetch, p Profile) (string, error) {
		if p.Status != operation.Idle {
			t.Errorf("load saw status %s, want the pre-load value", p.Status)
		}
		return "user-" + a.ID, nil
	})
	st := build(t, b)
	statuses := watchStatus(st)

	if err := st.Dispatch(context.Background(), Fetch{ID: "7"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	got := store.Current[Profile](st)
	if got.Status != operation.Succeeded || got.Name != "user-7" {
		t.Errorf("Profile = %+v", got)
	}
	if want := []operation.Status{operation.Loading, operation.Succeeded}; !slices.Equal(statuses(), want) {
		t.Errorf("transitions = %v, want %v", statuses(), want)
	}
	if op.Loads() != 1 || op.Busy() {
		t.Errorf("Loads() = %d Busy() = %v", op.Loads(), op.Busy())
	}
	if op.Name() != "operation_test.Fetch" {
		t.Errorf("Name() = %q", op.Name())
	}
}

func TestOperation_FailureIsRecorded(t *testing.T) {
	boom := errors.New("backend down")

	b := newBuilder()
	operation.Register(b, func(context.Context, Fetch, Profile) (string, error) {
		return "", boom
	}, operation.WithName("fetch-profile"))
	st := build(t, b)
	statuses := watchStatus(st)

	if err := st.Dispatch(context.Background(), Fetch{ID: "9"}); err != nil {
		t.Fatalf("load failures must not surface from Dispatch, got %v", err)
	}

	if want := []operation.Status{operation.Loading, operation.Failed}; !slices.Equal(statuses(), want) {
		t.Errorf("transitions = %v, want %v", statuses(), want)
	}

	log := store.Current[operation.FailureLog](st)
	f, ok := log.Last()
	if !ok || len(log.Entries) != 1 {
		t.Fatalf("FailureLog = %+v, want one entry", log)
	}
	if f.Operation != "fetch-profile" || !errors.Is(f.Err, boom) || f.DispatchID == "" || f.At.IsZero() {
		t.Errorf("Failure = %+v", f)
	}
	if trigger, ok := f.Trigger.(Fetch); !ok || trigger.ID != "9" {
		t.Errorf("Trigger = %#v", f.Trigger)
	}
	if before := f.Before.(Profile); before.Status != operation.Idle {
		t.Errorf("Before = %+v, want the Idle snapshot", before)
	}
	if after := f.After.(Profile); after.Status != operation.Failed {
		t.Errorf("After = %+v, want the Failed snapshot", after)
	}
	if len(log.For("fetch-profile")) != 1 || len(log.For("other")) != 0 {
		t.Error("For() filters by operation name")
	}
}

func TestOperation_DeduplicatesWhileLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	b := newBuilder()
	op := operation.Register(b, func(ctx context.Context, a Fetch, _ Profile) (string, error) {
		started <- struct{}{}
		<-release
		return a.ID, nil
	}, operation.WithDetach())
	st := build(t, b)
	ctx := context.Background()

	if err := st.Dispatch(ctx, Fetch{ID: "first"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	<-started

	if got := store.Current[Profile](st).Status; got != operation.Loading {
		t.Fatalf("status = %s, want loading", got)
	}
	if err := st.Dispatch(ctx, Fetch{ID: "second"}); err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}

	close(release)
	op.Wait()

	if op.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", op.Loads())
	}
	if got := store.Current[Profile](st); got.Name != "first" || got.Status != operation.Succeeded {
		t.Errorf("Profile = %+v", got)
	}
}

func TestOperation_IgnoresTriggerUntilReset(t *testing.T) {
	b := newBuilder()
	calls := 0
	op := operation.Register(b, func(_ context.Context, a Fetch, _ Profile) (string, error) {
		calls++
		return a.ID, nil
	})
	st := build(t, b)
	ctx := context.Background()

	_ = st.Dispatch(ctx, Fetch{ID: "a"})
	_ = st.Dispatch(ctx, Fetch{ID: "b"})
	if calls != 1 || store.Current[Profile](st).Name != "a" {
		t.Fatalf("second trigger should be ignored while Succeeded, calls = %d", calls)
	}

	if err := st.Dispatch(ctx, operation.Reset[Profile]{}); err != nil {
		t.Fatalf("Reset error = %v", err)
	}
	if got := store.Current[Profile](st).Status; got != operation.Idle {
		t.Errorf("status after Reset = %s", got)
	}

	_ = st.Dispatch(ctx, Fetch{ID: "c"})
	if calls != 2 || op.Loads() != 2 || store.Current[Profile](st).Name != "c" {
		t.Errorf("load after Reset: calls = %d name = %q", calls, store.Current[Profile](st).Name)
	}
}

func TestOperation_DetachedLoadOutlivesDispatch(t *testing.T) {
	b := newBuilder()
	var loadErr error
	op := operation.Register(b, func(ctx context.Context, a Fetch, _ Profile) (string, error) {
		loadErr = ctx.Err()
		return a.ID, nil
	}, operation.WithDetach())
	st := build(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	if err := st.Dispatch(ctx, Fetch{ID: "x"}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	cancel()
	op.Wait()

	if loadErr != nil {
		t.Errorf("detached load saw a cancelled context: %v", loadErr)
	}
	if store.Current[Profile](st).Status != operation.Succeeded {
		t.Error("detached load did not complete")
	}
}

func TestOperation_FailureLogIsBounded(t *testing.T) {
	b := newBuilder()
	operation.Register(b, func(context.Context, Fetch, Profile) (string, error) {
		return "", errors.New("nope")
	}, operation.WithMaxFailures(2))
	st := build(t, b)
	ctx := context.Background()

	for range 3 {
		_ = st.Dispatch(ctx, Fetch{})
		_ = st.Dispatch(ctx, operation.Reset[Profile]{})
	}

	if n := len(store.Current[operation.FailureLog](st).Entries); n != 2 {
		t.Errorf("FailureLog has %d entries, want 2", n)
	}

	if err := st.Dispatch(ctx, operation.ClearFailures{}); err != nil {
		t.Fatalf("ClearFailures error = %v", err)
	}
	if _, ok := store.Current[operation.FailureLog](st).Last(); ok {
		t.Error("ClearFailures left entries behind")
	}
}

func TestOperation_SharedSliceRegistersOnce(t *testing.T) {
	type Refresh struct{}

	b := newBuilder()
	operation.Register(b, func(_ context.Context, a Fetch, _ Profile) (string, error) { return a.ID, nil })
	operation.Register(b, func(context.Context, Refresh, Profile) (int, error) { return 1, nil })

	st := build(t, b)
	if err := st.Dispatch(context.Background(), Refresh{}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if store.Current[Profile](st).Status != operation.Succeeded {
		t.Error("second operation on the same slice did not run")
	}
}

type captureObserver struct {
	mu    sync.Mutex
	types []observability.EventType
}

func (c *captureObserver) OnEvent(_ context.Context, e observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, e.Type)
}

func TestOperation_Events(t *testing.T) {
	obs := &captureObserver{}

	b := newBuilder()
	operation.Register(b, func(_ context.Context, a Fetch, _ Profile) (string, error) {
		return a.ID, nil
	}, operation.WithObserver(obs))
	st := build(t, b)

	ctx := context.Background()
	_ = st.Dispatch(ctx, Fetch{})
	_ = st.Dispatch(ctx, Fetch{})

	want := []observability.EventType{
		operation.EventLoadStart,
		operation.EventLoadSucceeded,
		operation.EventSkipped,
	}
	if !slices.Equal(obs.types, want) {
		t.Errorf("events = %v, want %v", obs.types, want)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := operation.DefaultConfig()
	if cfg.MaxFailures != 50 {
		t.Errorf("got MaxFailures %d, want 50", cfg.MaxFailures)
	}

	cfg.Merge(&operation.Config{})
	if cfg.MaxFailures != 50 {
		t.Error("zero values must preserve defaults")
	}

	cfg.Merge(&operation.Config{MaxFailures: 5})
	if cfg.MaxFailures != 5 {
		t.Errorf("got MaxFailures %d, want 5", cfg.MaxFailures)
	}
}
