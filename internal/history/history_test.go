package history_test

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/pagemark/internal/history"
	"github.com/fakeyudi/pagemark/internal/marks"
)

func snapshotAction(n int) history.Action {
	return history.Action{
		Op:       history.OpDelete,
		Snapshot: []byte(fmt.Sprintf("snapshot-%d", n)),
	}
}

// 51 pushes with bound 50: the oldest action is gone and undo reaches
// exactly 50 steps back.
func TestBoundEvictsOldest(t *testing.T) {
	s := history.New(50)
	for i := 1; i <= 51; i++ {
		s.Push(snapshotAction(i))
	}
	require.Equal(t, 50, s.Depth())

	var last history.Action
	steps := 0
	for {
		a, ok := s.Undo()
		if !ok {
			break
		}
		last = a
		steps++
	}
	assert.Equal(t, 50, steps)
	assert.Equal(t, []byte("snapshot-2"), last.Snapshot, "snapshot-1 should have been evicted")
}

func TestPushClearsRedo(t *testing.T) {
	s := history.New(10)
	s.Push(snapshotAction(1))
	s.Push(snapshotAction(2))

	_, ok := s.Undo()
	require.True(t, ok)
	require.True(t, s.CanRedo())

	s.Push(snapshotAction(3))
	assert.False(t, s.CanRedo(), "push must discard redo history")
}

func TestRedoOnlyReplaysAdditive(t *testing.T) {
	s := history.New(10)
	added := marks.Mark{ID: "m1", Kind: marks.KindSticky, Page: 2, Text: "note"}
	s.Push(history.Action{Op: history.OpAddMark, Mark: added, Additive: true})
	s.Push(snapshotAction(1))

	// Undo the structural action: redo must not replay it.
	_, ok := s.Undo()
	require.True(t, ok)
	a, ok, replayable := s.Redo()
	require.True(t, ok)
	assert.False(t, replayable)
	assert.Equal(t, history.OpDelete, a.Op)

	// Undo both, then redo the additive one: the exact mark comes back.
	_, ok = s.Undo()
	require.True(t, ok)
	_, ok = s.Undo()
	require.True(t, ok)
	a, ok, replayable = s.Redo()
	require.True(t, ok)
	assert.True(t, replayable)
	assert.Equal(t, added, a.Mark)
}

func TestDropSession(t *testing.T) {
	s := history.New(10)
	s.Push(history.Action{Op: history.OpDelete, SessionID: 1})
	s.Push(history.Action{Op: history.OpDelete, SessionID: 2})
	s.Push(history.Action{Op: history.OpDelete, SessionID: 1})

	s.DropSession(1)
	require.Equal(t, 1, s.Depth())
	a, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, 2, a.SessionID)
}

// Property: depth never exceeds the bound, and undo-all always yields
// exactly min(pushes since last clear, bound) actions.
func TestBoundedDepthProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bound := rapid.IntRange(1, 20).Draw(t, "bound")
		pushes := rapid.IntRange(0, 60).Draw(t, "pushes")

		s := history.New(bound)
		for i := 0; i < pushes; i++ {
			s.Push(snapshotAction(i))
		}

		want := pushes
		if want > bound {
			want = bound
		}
		if s.Depth() != want {
			t.Fatalf("depth = %d, want %d", s.Depth(), want)
		}
	})
}
