package mvi

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Count int
	Flag  bool
}

type testOutcome interface {
	testOutcome()
}

// added is reduced through the reducer table.
type added struct {
	N int
}

// setTo reduces itself.
type setTo struct {
	Value int
}

func (o setTo) Reduce(prev testState) testState {
	prev.Count = o.Value
	return prev
}

// note is a plain effect.
type note struct {
	Effect
	Text string
}

// flagged is an effect that also reduces itself.
type flagged struct {
	Effect
}

func (flagged) Reduce(prev testState) testState {
	prev.Flag = true
	return prev
}

// forward re-dispatches Next.
type forward struct {
	Next any
}

func (o forward) Intention() any {
	return o.Next
}

// explode makes the test reducer panic.
type explode struct{}

func (added) testOutcome()   {}
func (setTo) testOutcome()   {}
func (note) testOutcome()    {}
func (flagged) testOutcome() {}
func (forward) testOutcome() {}
func (explode) testOutcome() {}

type (
	add    struct{ N int }
	set    struct{ Value int }
	say    struct{ Text string }
	flag   struct{}
	bounce struct{ Next any }
	blowUp struct{}
	crash  struct{}
	ping   struct{ Global }
)

type otherState struct {
	Pings int
}

type otherOutcome interface {
	otherOutcome()
}

type pinged struct{}

func (pinged) otherOutcome() {}

func newTestReducer() *DefaultReducer[testState, testOutcome] {
	r := NewDefaultReducer[testState, testOutcome]()
	On(r, func(prev testState, o added) testState {
		prev.Count += o.N
		return prev
	})
	On(r, func(prev testState, o setTo) testState {
		prev.Count = -1
		return prev
	})
	On(r, func(prev testState, _ note) testState {
		prev.Count = -100
		return prev
	})
	On(r, func(prev testState, _ explode) testState {
		panic("reducer exploded")
	})
	return r
}

// testFeatures maps each test intention to one outcome.
func testFeatures() []*Feature[testOutcome] {
	return []*Feature[testOutcome]{
		Typed(func(ctx context.Context, i add, _ Store) (testOutcome, error) {
			return added{N: i.N}, nil
		}, WithName("add")),
		Typed(func(ctx context.Context, i set, _ Store) (testOutcome, error) {
			return setTo{Value: i.Value}, nil
		}, WithName("set")),
		Typed(func(ctx context.Context, i say, _ Store) (testOutcome, error) {
			return note{Text: i.Text}, nil
		}, WithName("say")),
		Typed(func(ctx context.Context, _ flag, _ Store) (testOutcome, error) {
			return flagged{}, nil
		}, WithName("flag")),
		Typed(func(ctx context.Context, i bounce, _ Store) (testOutcome, error) {
			return forward{Next: i.Next}, nil
		}, WithName("bounce")),
		Typed(func(ctx context.Context, _ blowUp, _ Store) (testOutcome, error) {
			return explode{}, nil
		}, WithName("blow-up")),
		Typed(func(ctx context.Context, _ crash, _ Store) (testOutcome, error) {
			panic("feature crashed")
		}, WithName("crash")),
	}
}

func testDefinition() Definition[testState, testOutcome] {
	return Definition[testState, testOutcome]{
		Name:     "test",
		Reducer:  newTestReducer(),
		Features: testFeatures,
	}
}

func otherDefinition() Definition[otherState, otherOutcome] {
	return Definition[otherState, otherOutcome]{
		Name: "other",
		Reducer: ReducerFunc[otherState, otherOutcome](func(prev otherState, o otherOutcome) otherState {
			switch o.(type) {
			case pinged:
				prev.Pings++
				return prev
			default:
				return prev
			}
		}),
		Features: func() []*Feature[otherOutcome] {
			return []*Feature[otherOutcome]{
				Typed(func(ctx context.Context, _ ping, _ Store) (otherOutcome, error) {
					return pinged{}, nil
				}, WithName("ping")),
			}
		},
	}
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, opts ...StoreOption) *RootStore {
	t.Helper()
	store := NewStore(append([]StoreOption{WithLogger(silentLogger())}, opts...)...)
	t.Cleanup(func() {
		_ = store.Dispose()
	})
	return store
}

func newTestContainer(t *testing.T, store *RootStore, opts ...ContainerOption) *Container[testState, testOutcome] {
	t.Helper()
	c, err := NewContainer(context.Background(), store, testDefinition(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})
	return c
}

func requireState[S any](t *testing.T, flow *StateFlow[S], want S) {
	t.Helper()

	var mu sync.Mutex
	var last S
	ok := assert.Eventually(t, func() bool {
		v := flow.Value()
		mu.Lock()
		last = v
		mu.Unlock()
		return cmp.Equal(v, want)
	}, 2*time.Second, 5*time.Millisecond)
	if !ok {
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("state diff (-got +want):\n%s", cmp.Diff(last, want))
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}
