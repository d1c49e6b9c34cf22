package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lawnchairsociety/chaintiles/internal/tile"
)

var (
	// ErrOutOfBounds is returned for any row/column outside the grid.
	ErrOutOfBounds = errors.New("grid: position out of bounds")

	// ErrInvalidSize is returned when a grid would have no cells or ragged rows.
	ErrInvalidSize = errors.New("grid: invalid size")
)

// Hole marks an empty cell in a FromKinds layout.
const Hole tile.Kind = -1

// Grid is a fixed rows x cols board. A nil cell is empty.
// Grid is not safe for concurrent use; its owner serialises access.
type Grid struct {
	rows, cols int
	cells      [][]*tile.Tile
}

// New creates a grid with every cell empty
func New(rows, cols int) (*Grid, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, rows, cols)
	}
	cells := make([][]*tile.Tile, rows)
	for r := range cells {
		cells[r] = make([]*tile.Tile, cols)
	}
	return &Grid{rows: rows, cols: cols, cells: cells}, nil
}

// FromKinds builds a grid from a row-major layout of kinds.
// Hole leaves a cell empty.
func FromKinds(layout [][]tile.Kind) (*Grid, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrInvalidSize)
	}
	g, err := New(len(layout), len(layout[0]))
	if err != nil {
		return nil, err
	}
	for r, row := range layout {
		if len(row) != g.cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidSize, r, len(row), g.cols)
		}
		for c, k := range row {
			if k != Hole {
				g.cells[r][c] = tile.New(k)
			}
		}
	}
	return g, nil
}

// Fill places a freshly generated tile in every empty cell
func (g *Grid) Fill(gen *tile.Generator) {
	for r := range g.cells {
		for c := range g.cells[r] {
			if g.cells[r][c] == nil {
				g.cells[r][c] = gen.Next()
			}
		}
	}
}

// Rows returns the number of rows
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns
func (g *Grid) Cols() int { return g.cols }

// Contains reports whether p lies inside the grid
func (g *Grid) Contains(p Position) bool {
	return p.Row >= 0 && p.Row < g.rows && p.Col >= 0 && p.Col < g.cols
}

func (g *Grid) check(p Position) error {
	if !g.Contains(p) {
		return fmt.Errorf("%w: %s in %dx%d", ErrOutOfBounds, p, g.rows, g.cols)
	}
	return nil
}

// At returns the tile at p, or nil if the cell is empty.
func (g *Grid) At(p Position) (*tile.Tile, error) {
	if err := g.check(p); err != nil {
		return nil, err
	}
	return g.cells[p.Row][p.Col], nil
}

// Set places t at p. A nil t empties the cell.
func (g *Grid) Set(p Position, t *tile.Tile) error {
	if err := g.check(p); err != nil {
		return err
	}
	g.cells[p.Row][p.Col] = t
	return nil
}

// Locate finds a tile by identity, scanning rows top to bottom.
func (g *Grid) Locate(t *tile.Tile) (Position, bool) {
	if t == nil {
		return Position{}, false
	}
	for r, row := range g.cells {
		for c, cell := range row {
			if cell == t {
				return Position{r, c}, true
			}
		}
	}
	return Position{}, false
}

// Clear empties the cell at p and reports whether a tile was removed.
// Clearing an already empty cell does nothing.
func (g *Grid) Clear(p Position) (bool, error) {
	if err := g.check(p); err != nil {
		return false, err
	}
	if g.cells[p.Row][p.Col] == nil {
		return false, nil
	}
	g.cells[p.Row][p.Col] = nil
	return true, nil
}

// ClearTile empties whichever cell holds t. Returns false if t is not on the grid.
func (g *Grid) ClearTile(t *tile.Tile) bool {
	p, ok := g.Locate(t)
	if !ok {
		return false
	}
	g.cells[p.Row][p.Col] = nil
	return true
}

// CompactColumn performs one gravity step on a column: the stack above the
// lowest empty cell drops by one row. It reports whether anything moved.
// Tiles never pass one another, so order within the column is preserved.
func (g *Grid) CompactColumn(col int) (bool, error) {
	if col < 0 || col >= g.cols {
		return false, fmt.Errorf("%w: column %d of %d", ErrOutOfBounds, col, g.cols)
	}
	for r := g.rows - 1; r > 0; r-- {
		if g.cells[r][col] != nil {
			continue
		}
		if !g.occupiedAbove(r, col) {
			return false, nil
		}
		for k := r; k > 0; k-- {
			g.cells[k][col] = g.cells[k-1][col]
		}
		g.cells[0][col] = nil
		return true, nil
	}
	return false, nil
}

func (g *Grid) occupiedAbove(row, col int) bool {
	for r := row - 1; r >= 0; r-- {
		if g.cells[r][col] != nil {
			return true
		}
	}
	return false
}

// Settle runs CompactColumn until the column stops moving and returns the
// number of steps that moved something.
func (g *Grid) Settle(col int) (int, error) {
	steps := 0
	for {
		moved, err := g.CompactColumn(col)
		if err != nil {
			return steps, err
		}
		if !moved {
			return steps, nil
		}
		steps++
	}
}

// TopEmptyRun counts the contiguous empty cells at the top of a column
func (g *Grid) TopEmptyRun(col int) (int, error) {
	if col < 0 || col >= g.cols {
		return 0, fmt.Errorf("%w: column %d of %d", ErrOutOfBounds, col, g.cols)
	}
	n := 0
	for r := 0; r < g.rows && g.cells[r][col] == nil; r++ {
		n++
	}
	return n, nil
}

// RowHasEmpty reports whether any cell in the row is empty
func (g *Grid) RowHasEmpty(row int) (bool, error) {
	if row < 0 || row >= g.rows {
		return false, fmt.Errorf("%w: row %d of %d", ErrOutOfBounds, row, g.rows)
	}
	for _, cell := range g.cells[row] {
		if cell == nil {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of occupied cells
func (g *Grid) Count() int {
	n := 0
	for _, row := range g.cells {
		for _, cell := range row {
			if cell != nil {
				n++
			}
		}
	}
	return n
}

// Full reports whether every cell holds a tile
func (g *Grid) Full() bool {
	return g.Count() == g.rows*g.cols
}

// String renders the grid one row per line: kinds as digits, '.' for empty.
func (g *Grid) String() string {
	var sb strings.Builder
	for r, row := range g.cells {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for _, cell := range row {
			if cell == nil {
				sb.WriteByte('.')
			} else {
				fmt.Fprintf(&sb, "%d", cell.Kind())
			}
		}
	}
	return sb.String()
}
