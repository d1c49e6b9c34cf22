package chain

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/chaintiles/internal/grid"
	"github.com/lawnchairsociety/chaintiles/internal/tile"
)

// ErrEmptyCell is returned when a chain is started on an empty cell.
var ErrEmptyCell = errors.New("chain: cannot begin on an empty cell")

// Board is the read-only view of the grid the tracker needs.
type Board interface {
	At(p grid.Position) (*tile.Tile, error)
}

// Outcome describes what Extend did with a candidate cell.
type Outcome int

const (
	Rejected  Outcome = iota // chain unchanged
	Appended                 // candidate became the new tail
	Retracted                // tail dropped; candidate (the previous member) is the tail again
)

// String returns the string representation of an Outcome
func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Appended:
		return "appended"
	case Retracted:
		return "retracted"
	default:
		return "unknown"
	}
}

// Accepted reports whether the chain changed
func (o Outcome) Accepted() bool {
	return o == Appended || o == Retracted
}

// Tracker holds the selection chain for one drag gesture. Members are
// positions; all share the anchor's kind and each is adjacent to the next.
type Tracker struct {
	board      Board
	members    []grid.Position
	anchorKind tile.Kind
}

// NewTracker creates a tracker reading tiles from board
func NewTracker(board Board) *Tracker {
	return &Tracker{board: board}
}

// Begin starts a new chain anchored at p, discarding any previous chain.
func (t *Tracker) Begin(p grid.Position) error {
	tl, err := t.board.At(p)
	if err != nil {
		return err
	}
	if tl == nil {
		return fmt.Errorf("%w: %s", ErrEmptyCell, p)
	}
	t.members = append(t.members[:0], p)
	t.anchorKind = tl.Kind()
	return nil
}

// Extend offers the cell under the pointer to the chain.
//
// The candidate is rejected if it is the current tail, differs in kind from
// the anchor, or is not orthogonally adjacent to the tail. Otherwise a new
// cell is appended, and the second-to-last member retracts the tail. Any
// other member already in the chain is rejected.
func (t *Tracker) Extend(p grid.Position) (Outcome, error) {
	tl, err := t.board.At(p)
	if err != nil {
		return Rejected, err
	}
	if len(t.members) == 0 {
		return Rejected, nil
	}

	tail := t.members[len(t.members)-1]
	if p == tail {
		return Rejected, nil
	}
	if tl == nil || tl.Kind() != t.anchorKind {
		return Rejected, nil
	}
	if !grid.Adjacent(tail, p) {
		return Rejected, nil
	}

	idx := t.indexOf(p)
	switch {
	case idx < 0:
		t.members = append(t.members, p)
		return Appended, nil
	case idx == len(t.members)-2:
		t.members = t.members[:len(t.members)-1]
		return Retracted, nil
	default:
		return Rejected, nil
	}
}

func (t *Tracker) indexOf(p grid.Position) int {
	for i, m := range t.members {
		if m == p {
			return i
		}
	}
	return -1
}

// Contains reports whether p is a chain member
func (t *Tracker) Contains(p grid.Position) bool {
	return t.indexOf(p) >= 0
}

// Len returns the number of members
func (t *Tracker) Len() int {
	return len(t.members)
}

// Active reports whether a chain has been started
func (t *Tracker) Active() bool {
	return len(t.members) > 0
}

// Members returns a copy of the chain in selection order
func (t *Tracker) Members() []grid.Position {
	out := make([]grid.Position, len(t.members))
	copy(out, t.members)
	return out
}

// Anchor returns the first member
func (t *Tracker) Anchor() (grid.Position, bool) {
	if len(t.members) == 0 {
		return grid.Position{}, false
	}
	return t.members[0], true
}

// Tail returns the last member
func (t *Tracker) Tail() (grid.Position, bool) {
	if len(t.members) == 0 {
		return grid.Position{}, false
	}
	return t.members[len(t.members)-1], true
}

// AnchorKind returns the kind every member must share
func (t *Tracker) AnchorKind() (tile.Kind, bool) {
	if len(t.members) == 0 {
		return 0, false
	}
	return t.anchorKind, true
}

// Reset empties the chain
func (t *Tracker) Reset() {
	t.members = t.members[:0]
}
