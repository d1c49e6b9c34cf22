package grid

// Cell is one cell of a Snapshot.
type Cell struct {
	Empty      bool   `json:"empty,omitempty"`
	Kind       int    `json:"kind"`
	Appearance string `json:"appearance,omitempty"`
}

// Snapshot is a detached copy of the grid for renderers. It shares nothing
// with the live grid.
type Snapshot struct {
	Rows  int      `json:"rows"`
	Cols  int      `json:"cols"`
	Cells [][]Cell `json:"cells"`
}

// Snapshot copies the current grid contents
func (g *Grid) Snapshot() Snapshot {
	cells := make([][]Cell, g.rows)
	for r, row := range g.cells {
		cells[r] = make([]Cell, g.cols)
		for c, t := range row {
			if t == nil {
				cells[r][c] = Cell{Empty: true}
				continue
			}
			cells[r][c] = Cell{Kind: int(t.Kind()), Appearance: t.AppearanceKey()}
		}
	}
	return Snapshot{Rows: g.rows, Cols: g.cols, Cells: cells}
}

// Count returns the number of occupied cells in the snapshot
func (s Snapshot) Count() int {
	n := 0
	for _, row := range s.Cells {
		for _, cell := range row {
			if !cell.Empty {
				n++
			}
		}
	}
	return n
}
