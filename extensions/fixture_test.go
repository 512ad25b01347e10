package extensions

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	mvi "github.com/pumped-fn/pumped-mvi"
)

type lamp struct {
	On       bool
	Switches int
}

type lampOutcome interface {
	lampOutcome()
}

type switched struct{ On bool }

type blinked struct{ mvi.Effect }

// fused makes the reducer panic.
type fused struct{}

func (switched) lampOutcome() {}
func (blinked) lampOutcome()  {}
func (fused) lampOutcome()    {}

type (
	toggle   struct{ On bool }
	blink    struct{}
	overload struct{}
	short    struct{}
)

func reduceLamp(prev lamp, o lampOutcome) lamp {
	switch o := o.(type) {
	case switched:
		prev.On = o.On
		prev.Switches++
		return prev
	case fused:
		panic("fuse blown")
	default:
		return prev
	}
}

func lampDefinition() mvi.Definition[lamp, lampOutcome] {
	return mvi.Definition[lamp, lampOutcome]{
		Name:    "lamp",
		Reducer: mvi.ReducerFunc[lamp, lampOutcome](reduceLamp),
		Features: func() []*mvi.Feature[lampOutcome] {
			return []*mvi.Feature[lampOutcome]{
				mvi.Typed(func(ctx context.Context, i toggle, _ mvi.Store) (lampOutcome, error) {
					return switched{On: i.On}, nil
				}, mvi.WithName("toggle")),
				mvi.Typed(func(ctx context.Context, _ blink, _ mvi.Store) (lampOutcome, error) {
					return blinked{}, nil
				}, mvi.WithName("blink")),
				mvi.Typed(func(ctx context.Context, _ overload, _ mvi.Store) (lampOutcome, error) {
					return fused{}, nil
				}, mvi.WithName("overload")),
				mvi.Typed(func(ctx context.Context, _ short, _ mvi.Store) (lampOutcome, error) {
					panic("short circuit")
				}, mvi.WithName("short")),
			}
		},
	}
}

// newLamp opens a lamp container in a fresh store carrying exts.
func newLamp(t *testing.T, exts ...mvi.Extension) (*mvi.RootStore, *mvi.Container[lamp, lampOutcome]) {
	t.Helper()

	opts := []mvi.StoreOption{mvi.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	for _, ext := range exts {
		opts = append(opts, mvi.WithExtension(ext))
	}
	store := mvi.NewStore(opts...)
	t.Cleanup(func() {
		_ = store.Dispose()
	})

	c, err := lampDefinition().Create(context.Background(), store)
	require.NoError(t, err)
	return store, c
}

func waitLamp(t *testing.T, c *mvi.Container[lamp, lampOutcome], want lamp) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Value() == want
	}, 2*time.Second, 5*time.Millisecond)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
