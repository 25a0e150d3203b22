// Package history implements the bounded, coarse-grained undo/redo
// stack. Actions either carry a full pre-action byte snapshot (any
// operation that went through the document engine) or an in-memory
// mark payload (additive overlay edits that never touched the bytes).
//
// Redo is deliberately asymmetric: additive actions re-apply their
// mark; snapshot actions are not re-executed, so redoing one is a
// stack no-op. That limitation is part of the design, not an
// oversight.
package history

import "github.com/fakeyudi/pagemark/internal/marks"

// Op tags what an action did.
type Op string

const (
	OpAddText   Op = "add-text"
	OpAddMark   Op = "add-mark"
	OpDelete    Op = "delete"
	OpReorder   Op = "reorder"
	OpRotate    Op = "rotate"
	OpRedact    Op = "redact"
	OpStamp     Op = "stamp"
	OpFillForm  Op = "fill-form"
	OpFlatten   Op = "flatten"
	OpAddField  Op = "add-field"
)

// DefaultBound is the default maximum stack depth.
const DefaultBound = 50

// Action is one undoable step.
type Action struct {
	Op Op
	// SessionID identifies the document session the action applies to.
	SessionID int

	// Snapshot, when non-nil, is the complete document bytes from
	// before the action. Undo restores them wholesale.
	Snapshot []byte

	// Mark, when Additive, is the in-memory mark the action added.
	// Undo removes it; redo re-adds it.
	Mark     marks.Mark
	Additive bool
}

// Stack is a bounded undo stack with an attached redo stack. The zero
// value is not usable; use New.
type Stack struct {
	bound int
	undo  []Action
	redo  []Action
}

// New returns a Stack that holds at most bound actions. A bound < 1
// falls back to DefaultBound.
func New(bound int) *Stack {
	if bound < 1 {
		bound = DefaultBound
	}
	return &Stack{bound: bound}
}

// Push records a completed action. Exceeding the bound silently evicts
// the oldest entry, which becomes permanently unrecoverable. Any
// pending redo history is discarded: there is no branching.
func (s *Stack) Push(a Action) {
	s.undo = append(s.undo, a)
	if len(s.undo) > s.bound {
		s.undo = append(s.undo[:0], s.undo[1:]...)
	}
	s.redo = s.redo[:0]
}

// Undo pops the most recent action and moves it to the redo stack.
func (s *Stack) Undo() (Action, bool) {
	if len(s.undo) == 0 {
		return Action{}, false
	}
	a := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, a)
	return a, true
}

// Redo pops the most recently undone action. The second result is
// false when the redo stack is empty. The third is true only when the
// action is additive and should actually be re-applied; snapshot
// actions come back replayable=false and the caller performs stack
// bookkeeping only.
func (s *Stack) Redo() (a Action, ok bool, replayable bool) {
	if len(s.redo) == 0 {
		return Action{}, false, false
	}
	a = s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, a)
	if len(s.undo) > s.bound {
		s.undo = append(s.undo[:0], s.undo[1:]...)
	}
	return a, true, a.Additive
}

// CanUndo reports whether an undo step is available.
func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether a redo step is available.
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// Depth returns the current undo depth.
func (s *Stack) Depth() int { return len(s.undo) }

// DropSession removes every action belonging to the given session,
// used when its document is closed.
func (s *Stack) DropSession(id int) {
	s.undo = dropSession(s.undo, id)
	s.redo = dropSession(s.redo, id)
}

func dropSession(actions []Action, id int) []Action {
	kept := actions[:0]
	for _, a := range actions {
		if a.SessionID != id {
			kept = append(kept, a)
		}
	}
	return kept
}
