package resolve

import (
	"errors"
	"testing"

	"github.com/lawnchairsociety/chaintiles/internal/chain"
	"github.com/lawnchairsociety/chaintiles/internal/grid"
	"github.com/lawnchairsociety/chaintiles/internal/tile"
)

func board(t *testing.T, rows ...string) *grid.Grid {
	t.Helper()
	kinds := make([][]tile.Kind, len(rows))
	for r, row := range rows {
		kinds[r] = make([]tile.Kind, len(row))
		for c, ch := range row {
			if ch == '.' {
				kinds[r][c] = grid.Hole
			} else {
				kinds[r][c] = tile.Kind(ch - '0')
			}
		}
	}
	g, err := grid.FromKinds(kinds)
	if err != nil {
		t.Fatalf("FromKinds failed: %v", err)
	}
	return g
}

// refills always produce kind 9 so new tiles are easy to spot in String().
func nines(t *testing.T) *tile.Generator {
	t.Helper()
	gen, err := tile.NewGenerator(10, tile.NewScriptedSource(9))
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	return gen
}

func positions(ps ...[2]int) []grid.Position {
	out := make([]grid.Position, len(ps))
	for i, p := range ps {
		out[i] = grid.At(p[0], p[1])
	}
	return out
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{Idle, "idle"},
		{Removing, "removing"},
		{Compacting, "compacting"},
		{Filling, "filling"},
		{Phase(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.expected {
			t.Errorf("Phase(%d).String() = %q, want %q", int(tt.phase), got, tt.expected)
		}
	}
}

func TestShortReleaseLeavesGridUntouched(t *testing.T) {
	g := board(t,
		"112",
		"345",
	)
	e := New(g, nines(t))
	before := g.String()

	for _, c := range [][]grid.Position{
		nil,
		positions([2]int{0, 0}),
		positions([2]int{0, 0}, [2]int{0, 1}),
	} {
		started, err := e.Release(c)
		if err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if started {
			t.Errorf("Release(%v) started a cycle", c)
		}
		if e.Locked() || e.Phase() != Idle {
			t.Errorf("engine locked=%v phase=%s after short release", e.Locked(), e.Phase())
		}
		if g.String() != before {
			t.Errorf("grid changed after short release:\n%s", g)
		}
	}
}

func TestReleaseClearsDistinctMembers(t *testing.T) {
	g := board(t,
		"1112",
		"3456",
	)
	e := New(g, nines(t))

	started, err := e.Release(positions([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}, [2]int{0, 1}))
	if err != nil || !started {
		t.Fatalf("Release = %v, %v; want true, nil", started, err)
	}
	if !e.Locked() {
		t.Error("engine should be locked after a valid release")
	}
	if e.Phase() != Compacting {
		t.Errorf("Phase() = %s, want compacting", e.Phase())
	}
	if e.Stats().Removed != 3 {
		t.Errorf("Removed = %d, want 3", e.Stats().Removed)
	}
	if got, want := g.String(), "...2\n3456"; got != want {
		t.Errorf("grid after release:\n%s\nwant:\n%s", got, want)
	}
}

func TestReleaseToleratesEmptyCells(t *testing.T) {
	g := board(t,
		"1.1",
		"222",
	)
	e := New(g, nines(t))

	started, err := e.Release(positions([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}))
	if err != nil || !started {
		t.Fatalf("Release = %v, %v", started, err)
	}
	if e.Stats().Removed != 2 {
		t.Errorf("Removed = %d, want 2", e.Stats().Removed)
	}
	if _, err := e.RunToIdle(); err != nil {
		t.Fatalf("RunToIdle failed: %v", err)
	}
	if !g.Full() {
		t.Errorf("grid not full after cycle:\n%s", g)
	}
}

func TestReleaseOutOfBounds(t *testing.T) {
	g := board(t, "111")
	e := New(g, nines(t))

	_, err := e.Release(positions([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 3}))
	if !errors.Is(err, grid.ErrOutOfBounds) {
		t.Fatalf("Release error = %v, want ErrOutOfBounds", err)
	}
	if e.Locked() || g.Count() != 3 {
		t.Error("failed release must not lock or mutate")
	}
}

func TestReleaseWhileBusy(t *testing.T) {
	g := board(t, "111", "111")
	e := New(g, nines(t))
	e.Release(positions([2]int{1, 0}, [2]int{1, 1}, [2]int{1, 2}))

	if _, err := e.Release(positions([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2})); !errors.Is(err, ErrBusy) {
		t.Errorf("second Release error = %v, want ErrBusy", err)
	}
}

func TestStepSequence(t *testing.T) {
	// Column 0 loses two tiles from the bottom, so it needs two compaction
	// passes; then two fill rows, lowest first.
	g := board(t,
		"12",
		"34",
		"15",
		"16",
	)
	e := New(g, nines(t))
	if ok, err := e.Release(positions([2]int{2, 0}, [2]int{3, 0}, [2]int{0, 0})); err != nil || !ok {
		t.Fatalf("Release = %v, %v", ok, err)
	}
	// Removing (0,0) as well leaves only the 3 at (1,0).

	expect := []struct {
		res  StepResult
		grid string
	}{
		{StepResult{Phase: Compacting, Moved: true, RevealedRow: -1}, ".2\n.4\n35\n.6"},
		{StepResult{Phase: Compacting, Moved: true, RevealedRow: -1}, ".2\n.4\n.5\n36"},
		// No movement: build three fill rows and reveal row 2 immediately.
		{StepResult{Phase: Filling, RevealedRow: 2}, ".2\n.4\n95\n36"},
		{StepResult{Phase: Filling, RevealedRow: 1}, ".2\n94\n95\n36"},
		{StepResult{Phase: Idle, RevealedRow: 0, Done: true}, "92\n94\n95\n36"},
	}

	for i, want := range expect {
		if i == 2 && e.PendingRows() != 0 {
			t.Errorf("PendingRows() before filling = %d, want 0", e.PendingRows())
		}
		res, err := e.Step()
		if err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
		if res != want.res {
			t.Errorf("step %d result = %+v, want %+v", i, res, want.res)
		}
		if got := g.String(); got != want.grid {
			t.Errorf("step %d grid:\n%s\nwant:\n%s", i, got, want.grid)
		}
		if i == 2 && e.PendingRows() != 2 {
			t.Errorf("PendingRows() after first reveal = %d, want 2", e.PendingRows())
		}
		if !res.Done && !e.Locked() {
			t.Errorf("step %d: lockout cleared before the cycle finished", i)
		}
	}

	if e.Locked() {
		t.Error("lockout still set after the cycle")
	}
	st := e.Stats()
	if st.Removed != 3 || st.Filled != 3 || st.Passes != 2 {
		t.Errorf("Stats() = %+v, want removed=3 filled=3 passes=2", st)
	}

	// Idle steps are harmless.
	res, err := e.Step()
	if err != nil || !res.Done || res.Phase != Idle {
		t.Errorf("idle Step = %+v, %v", res, err)
	}
}

func TestFillOrderWithTallGap(t *testing.T) {
	// One column emptied three deep at the top: rows 2, 1, 0 are revealed in
	// that order and the settled row 3 never changes.
	g := board(t,
		"12",
		"13",
		"14",
		"25",
	)
	e := New(g, nines(t))
	e.Release(positions([2]int{0, 0}, [2]int{1, 0}, [2]int{2, 0}))
	settled, _ := g.At(grid.At(3, 0))

	var revealed []int
	for {
		res, err := e.Step()
		if err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if res.RevealedRow >= 0 {
			revealed = append(revealed, res.RevealedRow)
		}
		if cur, _ := g.At(grid.At(3, 0)); cur != settled {
			t.Fatal("settled tile moved during the cycle")
		}
		if res.Done {
			break
		}
	}

	want := []int{2, 1, 0}
	if len(revealed) != len(want) {
		t.Fatalf("revealed rows %v, want %v", revealed, want)
	}
	for i := range want {
		if revealed[i] != want[i] {
			t.Errorf("revealed rows %v, want %v", revealed, want)
			break
		}
	}
}

func TestEveryFillStepKeepsTilesSupported(t *testing.T) {
	g := board(t,
		"1231",
		"1231",
		"4231",
		"4564",
	)
	e := New(g, nines(t))
	e.Release(positions([2]int{0, 3}, [2]int{1, 3}, [2]int{2, 3}))

	for e.Phase() != Idle {
		if _, err := e.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if e.Phase() != Filling {
			continue
		}
		// No tile may float above an empty cell while filling.
		for c := 0; c < g.Cols(); c++ {
			run, _ := g.TopEmptyRun(c)
			for r := run; r < g.Rows(); r++ {
				if tl, _ := g.At(grid.At(r, c)); tl == nil {
					t.Fatalf("hole under a tile at (%d,%d):\n%s", r, c, g)
				}
			}
		}
	}
}

func TestEightByEightScenario(t *testing.T) {
	// Distinct kinds everywhere except (0,0),(0,1),(0,2), which share kind 7.
	kinds := make([][]tile.Kind, 8)
	for r := range kinds {
		kinds[r] = make([]tile.Kind, 8)
		for c := range kinds[r] {
			kinds[r][c] = tile.Kind(10 + r*8 + c)
		}
	}
	kinds[0][0], kinds[0][1], kinds[0][2] = 7, 7, 7
	g, err := grid.FromKinds(kinds)
	if err != nil {
		t.Fatalf("FromKinds failed: %v", err)
	}
	gen, _ := tile.NewGenerator(100, tile.NewScriptedSource(99))

	below := make(map[grid.Position]*tile.Tile)
	for r := 1; r < 8; r++ {
		for c := 0; c < 3; c++ {
			below[grid.At(r, c)], _ = g.At(grid.At(r, c))
		}
	}

	tr := chain.NewTracker(g)
	if err := tr.Begin(grid.At(0, 0)); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for _, p := range []grid.Position{grid.At(0, 1), grid.At(0, 2)} {
		if out, _ := tr.Extend(p); out != chain.Appended {
			t.Fatalf("Extend(%s) = %s", p, out)
		}
	}

	e := New(g, gen)
	if ok, err := e.Release(tr.Members()); err != nil || !ok {
		t.Fatalf("Release = %v, %v", ok, err)
	}
	for c := 0; c < 3; c++ {
		if tl, _ := g.At(grid.At(0, c)); tl != nil {
			t.Errorf("cell (0,%d) not cleared", c)
		}
	}

	for e.Phase() != Idle {
		if _, err := e.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if got := g.Count(); got != 64 && got != 61 {
			t.Fatalf("unexpected tile count %d mid-cycle", got)
		}
	}

	if g.Count() != 64 {
		t.Errorf("Count() = %d after cycle, want 64", g.Count())
	}
	// Removed tiles were in the top row, so nothing below needed to fall.
	for p, tl := range below {
		if cur, _ := g.At(p); cur != tl {
			t.Errorf("tile at %s moved", p)
		}
	}
	for c := 0; c < 3; c++ {
		tl, _ := g.At(grid.At(0, c))
		if tl == nil || tl.Kind() != 99 {
			t.Errorf("cell (0,%d) not backfilled with a new tile", c)
		}
	}
	if e.Stats().Filled != 3 {
		t.Errorf("Filled = %d, want 3", e.Stats().Filled)
	}
}

func TestVerticalChainCompactsColumn(t *testing.T) {
	// A vertical chain in the middle of a column: tiles above fall three rows.
	g := board(t,
		"12",
		"33",
		"54",
		"55",
		"56",
		"77",
	)
	e := New(g, nines(t))
	top, _ := g.At(grid.At(0, 0))
	mid, _ := g.At(grid.At(1, 0))

	e.Release(positions([2]int{2, 0}, [2]int{3, 0}, [2]int{4, 0}))
	if _, err := e.RunToIdle(); err != nil {
		t.Fatalf("RunToIdle failed: %v", err)
	}

	if got, want := g.String(), "92\n93\n94\n15\n36\n77"; got != want {
		t.Errorf("grid after cycle:\n%s\nwant:\n%s", got, want)
	}
	if p, _ := g.Locate(top); p != grid.At(3, 0) {
		t.Errorf("top tile at %s, want (3,0)", p)
	}
	if p, _ := g.Locate(mid); p != grid.At(4, 0) {
		t.Errorf("middle tile at %s, want (4,0)", p)
	}
	if e.Stats().Passes != 3 {
		t.Errorf("Passes = %d, want 3", e.Stats().Passes)
	}
}

func TestWithMinChain(t *testing.T) {
	g := board(t, "1111")
	e := New(g, nines(t), WithMinChain(4))
	if e.MinChain() != 4 {
		t.Fatalf("MinChain() = %d, want 4", e.MinChain())
	}

	if ok, _ := e.Release(positions([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2})); ok {
		t.Error("three tiles should not trigger a removal with min chain 4")
	}
	if ok, _ := e.Release(positions([2]int{0, 0}, [2]int{0, 1}, [2]int{0, 2}, [2]int{0, 3})); !ok {
		t.Error("four tiles should trigger a removal with min chain 4")
	}

	if New(g, nines(t), WithMinChain(0)).MinChain() != DefaultMinChain {
		t.Error("WithMinChain(0) should keep the default")
	}
}
