package mvi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultReducer_SelfReducingWins(t *testing.T) {
	r := newTestReducer()

	got := r.Reduce(testState{Count: 3}, setTo{Value: 42})

	assert.Equal(t, testState{Count: 42}, got)
}

func TestDefaultReducer_RegisteredByExactType(t *testing.T) {
	r := newTestReducer()

	got := r.Reduce(testState{Count: 1}, added{N: 2})
	got = r.Reduce(got, added{N: 3})

	assert.Equal(t, testState{Count: 6}, got)
	assert.True(t, r.Handles(added{}))
	assert.False(t, r.Handles(forward{}))
}

func TestDefaultReducer_UnmatchedIsNoOp(t *testing.T) {
	r := newTestReducer()
	prev := testState{Count: 7, Flag: true}

	assert.Equal(t, prev, r.Reduce(prev, forward{Next: add{N: 1}}))
}

func TestDefaultReducer_LaterRegistrationReplaces(t *testing.T) {
	r := NewDefaultReducer[testState, testOutcome]()
	On(r, func(prev testState, o added) testState {
		prev.Count += o.N
		return prev
	})
	On(r, func(prev testState, o added) testState {
		prev.Count *= o.N
		return prev
	})

	assert.Equal(t, testState{Count: 6}, r.Reduce(testState{Count: 2}, added{N: 3}))
}

func TestDefaultReducer_DoesNotMutatePrev(t *testing.T) {
	type listState struct {
		Items []int
	}
	r := NewDefaultReducer[listState, testOutcome]()
	On(r, func(prev listState, o added) listState {
		items := make([]int, 0, len(prev.Items)+1)
		items = append(items, prev.Items...)
		return listState{Items: append(items, o.N)}
	})

	prev := listState{Items: []int{1}}
	next := r.Reduce(prev, added{N: 2})

	assert.Equal(t, []int{1}, prev.Items)
	assert.Equal(t, []int{1, 2}, next.Items)
}

func TestReducerFunc_ExhaustiveSwitch(t *testing.T) {
	def := otherDefinition()

	got := def.Reducer.Reduce(otherState{}, pinged{})
	got = def.Reducer.Reduce(got, pinged{})

	assert.Equal(t, otherState{Pings: 2}, got)
}
