package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fsmState struct {
	log []string
}

func TestFSMRunsStatesInOrder(t *testing.T) {
	s := &fsmState{}
	states := []StateFunc[fsmState]{
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "a"); return Next(), nil },
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "b"); return Next(), nil },
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "c"); return Return(), nil },
	}
	f := NewFSM(s, states, nil, func(s *fsmState) (string, error) {
		return "done", nil
	})
	v, ready, err := f.Poll(nil)
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, []string{"a", "b", "c"}, s.log)
}

func TestFSMYieldSuspends(t *testing.T) {
	s := &fsmState{}
	yielded := false
	states := []StateFunc[fsmState]{
		func(s *fsmState, w *Waker) (Action, error) {
			if !yielded {
				yielded = true
				return Yield(), nil
			}
			return Next(), nil
		},
	}
	f := NewFSM(s, states, nil, func(s *fsmState) (int, error) { return 1, nil })
	_, ready, _ := f.Poll(nil)
	require.False(t, ready)
	v, ready, err := f.Poll(nil)
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFSMUnwindsInReverseOrderOnError(t *testing.T) {
	s := &fsmState{}
	sentinel := errors.New("constructor failed")
	states := []StateFunc[fsmState]{
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "acquire-A"); return Next(), nil },
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "acquire-B"); return Next(), nil },
		func(s *fsmState, w *Waker) (Action, error) { return Action{}, sentinel },
	}
	unwind := []UnwindFunc[fsmState]{
		func(s *fsmState) { s.log = append(s.log, "release-A") },
		func(s *fsmState) { s.log = append(s.log, "release-B") },
		nil,
	}
	f := NewFSM(s, states, unwind, func(s *fsmState) (int, error) { return 0, nil })
	_, ready, err := f.Poll(nil)
	require.True(t, ready)
	assert.ErrorIs(t, err, sentinel)
	assert.True(t, f.Unwound())
	// state 2 has no unwind handler and never acquired anything; B was
	// acquired by state 1 and must be released before A.
	assert.Equal(t, []string{"acquire-A", "acquire-B", "release-B", "release-A"}, s.log)
}

func TestFSMTransitionJumpsState(t *testing.T) {
	s := &fsmState{}
	states := []StateFunc[fsmState]{
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "0"); return Transition(2), nil },
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "skipped"); return Next(), nil },
		func(s *fsmState, w *Waker) (Action, error) { s.log = append(s.log, "2"); return Return(), nil },
	}
	f := NewFSM(s, states, nil, func(s *fsmState) (int, error) { return 0, nil })
	_, ready, err := f.Poll(nil)
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "2"}, s.log)
}

func TestFSMPolledAfterReady(t *testing.T) {
	s := &fsmState{}
	f := NewFSM(s, []StateFunc[fsmState]{
		func(s *fsmState, w *Waker) (Action, error) { return Return(), nil },
	}, nil, func(s *fsmState) (int, error) { return 1, nil })
	_, ready, _ := f.Poll(nil)
	require.True(t, ready)
	_, ready, err := f.Poll(nil)
	require.True(t, ready)
	assert.ErrorIs(t, err, ErrPolledAfterReady)
}

func TestFSMAwaitsSubFutureViaWaker(t *testing.T) {
	inner := &pendingOnceFuture{value: 42}
	s := &fsmState{}
	var result int
	states := []StateFunc[fsmState]{
		func(s *fsmState, w *Waker) (Action, error) {
			v, ready, err := inner.Poll(w)
			if err != nil {
				return Action{}, err
			}
			if !ready {
				return Yield(), nil
			}
			result = v
			return Return(), nil
		},
	}
	f := NewFSM(s, states, nil, func(s *fsmState) (int, error) { return result, nil })
	_, ready, _ := f.Poll(newWaker(func() {}))
	require.False(t, ready)
	v, ready, err := f.Poll(newWaker(func() {}))
	require.True(t, ready)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
