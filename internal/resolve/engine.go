package resolve

import (
	"errors"
	"fmt"

	"github.com/lawnchairsociety/chaintiles/internal/grid"
	"github.com/lawnchairsociety/chaintiles/internal/tile"
)

// DefaultMinChain is the shortest chain that triggers a removal.
const DefaultMinChain = 3

// ErrBusy is returned by Release while a previous cycle is still running.
var ErrBusy = errors.New("resolve: resolution cycle in progress")

// Phase is the engine's position in the resolution cycle.
type Phase int

const (
	Idle Phase = iota
	Removing
	Compacting
	Filling
)

// String returns the string representation of a Phase
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Removing:
		return "removing"
	case Compacting:
		return "compacting"
	case Filling:
		return "filling"
	default:
		return "unknown"
	}
}

// StepResult reports what a single Step did.
type StepResult struct {
	Phase       Phase // phase after the step
	Moved       bool  // a compaction pass moved at least one tile
	RevealedRow int   // grid row written by a fill step, -1 if none
	Done        bool  // the cycle is over and the engine is idle
}

// Stats counts the work done in the current (or most recent) cycle.
type Stats struct {
	Removed int `json:"removed"`
	Passes  int `json:"passes"`
	Filled  int `json:"filled"`
}

// Option configures an Engine
type Option func(*Engine)

// WithMinChain sets the minimum chain length for a removal. Values below 1 are ignored.
func WithMinChain(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.minChain = n
		}
	}
}

// Engine removes released chains and drives the grid back to a full state
// one Step at a time: compaction passes until nothing moves, then one
// pending fill row per step, lowest row first. The engine holds the input
// lockout for the whole cycle.
//
// Engine is not safe for concurrent use.
type Engine struct {
	grid     *grid.Grid
	gen      *tile.Generator
	minChain int

	phase   Phase
	locked  bool
	pending [][]*tile.Tile
	next    int // index into pending of the next row to reveal
	stats   Stats
}

// New creates an idle engine that mutates g and draws refills from gen
func New(g *grid.Grid, gen *tile.Generator, opts ...Option) *Engine {
	e := &Engine{
		grid:     g,
		gen:      gen,
		minChain: DefaultMinChain,
		next:     -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MinChain returns the configured minimum chain length
func (e *Engine) MinChain() int { return e.minChain }

// Phase returns the current phase
func (e *Engine) Phase() Phase { return e.phase }

// Locked reports whether input is locked out
func (e *Engine) Locked() bool { return e.locked }

// Stats returns counters for the current or most recent cycle
func (e *Engine) Stats() Stats { return e.stats }

// PendingRows returns how many fill rows are still waiting to be revealed
func (e *Engine) PendingRows() int {
	if e.phase != Filling {
		return 0
	}
	return e.next + 1
}

// Release commits a finished chain. Chains shorter than the minimum are
// ignored and leave the grid untouched. Otherwise every distinct member is
// cleared, the lockout is set, and the engine waits for its first Step.
func (e *Engine) Release(chain []grid.Position) (bool, error) {
	if e.phase != Idle {
		return false, ErrBusy
	}
	if len(chain) < e.minChain {
		return false, nil
	}
	for _, p := range chain {
		if !e.grid.Contains(p) {
			return false, fmt.Errorf("release: %w: %s", grid.ErrOutOfBounds, p)
		}
	}

	e.locked = true
	e.phase = Removing
	e.stats = Stats{}

	seen := make(map[grid.Position]bool, len(chain))
	for _, p := range chain {
		if seen[p] {
			continue
		}
		seen[p] = true
		// Already-empty cells are tolerated.
		if removed, _ := e.grid.Clear(p); removed {
			e.stats.Removed++
		}
	}

	e.phase = Compacting
	return true, nil
}

// Step performs one bounded unit of work and reports whether the cycle is done.
func (e *Engine) Step() (StepResult, error) {
	switch e.phase {
	case Idle:
		return StepResult{Phase: Idle, RevealedRow: -1, Done: true}, nil

	case Compacting:
		moved := false
		for c := 0; c < e.grid.Cols(); c++ {
			m, err := e.grid.CompactColumn(c)
			if err != nil {
				return StepResult{}, fmt.Errorf("compact column %d: %w", c, err)
			}
			moved = moved || m
		}
		if moved {
			e.stats.Passes++
			return StepResult{Phase: Compacting, Moved: true, RevealedRow: -1}, nil
		}

		if err := e.buildFill(); err != nil {
			return StepResult{}, err
		}
		if len(e.pending) == 0 {
			e.finish()
			return StepResult{Phase: Idle, RevealedRow: -1, Done: true}, nil
		}
		e.phase = Filling
		return e.reveal()

	case Filling:
		return e.reveal()

	default:
		return StepResult{}, fmt.Errorf("resolve: step in unexpected phase %s", e.phase)
	}
}

// RunToIdle steps until the cycle completes and returns the number of steps taken.
func (e *Engine) RunToIdle() (int, error) {
	steps := 0
	for e.phase != Idle {
		if _, err := e.Step(); err != nil {
			return steps, err
		}
		steps++
	}
	return steps, nil
}

// buildFill walks rows from the top and, for every row that still has a
// hole, prepares a row of new tiles for exactly those holes. Scanning stops
// at the first full row; everything below it is settled.
func (e *Engine) buildFill() error {
	e.pending = e.pending[:0]
	for r := 0; r < e.grid.Rows(); r++ {
		hasEmpty, err := e.grid.RowHasEmpty(r)
		if err != nil {
			return err
		}
		if !hasEmpty {
			break
		}
		row := make([]*tile.Tile, e.grid.Cols())
		for c := range row {
			cur, err := e.grid.At(grid.At(r, c))
			if err != nil {
				return err
			}
			if cur == nil {
				row[c] = e.gen.Next()
			}
		}
		e.pending = append(e.pending, row)
	}
	e.next = len(e.pending) - 1
	return nil
}

// reveal writes the lowest unrevealed pending row into the grid.
func (e *Engine) reveal() (StepResult, error) {
	r := e.next
	for c, t := range e.pending[r] {
		if t == nil {
			continue
		}
		if err := e.grid.Set(grid.At(r, c), t); err != nil {
			return StepResult{}, err
		}
		e.stats.Filled++
	}
	e.next--

	if e.next < 0 {
		e.finish()
		return StepResult{Phase: Idle, RevealedRow: r, Done: true}, nil
	}
	return StepResult{Phase: Filling, RevealedRow: r}, nil
}

func (e *Engine) finish() {
	e.pending = e.pending[:0]
	e.next = -1
	e.phase = Idle
	e.locked = false
}
