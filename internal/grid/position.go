package grid

import "fmt"

// Position addresses a cell by row (0 = top) and column (0 = left).
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// At is shorthand for Position{Row: row, Col: col}
func At(row, col int) Position {
	return Position{Row: row, Col: col}
}

// String returns the position as "(row,col)"
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Direction represents a cardinal direction in the grid
type Direction int

const (
	North Direction = iota
	East
	South
	West
)

// String returns the string representation of a Direction
func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Opposite returns the opposite direction
func (d Direction) Opposite() Direction {
	switch d {
	case North:
		return South
	case East:
		return West
	case South:
		return North
	case West:
		return East
	default:
		return d
	}
}

// AllDirections returns all four cardinal directions
func AllDirections() []Direction {
	return []Direction{North, East, South, West}
}

// Step returns the neighbouring position in direction d.
// The result may lie outside any particular grid.
func (p Position) Step(d Direction) Position {
	switch d {
	case North:
		return Position{p.Row - 1, p.Col}
	case East:
		return Position{p.Row, p.Col + 1}
	case South:
		return Position{p.Row + 1, p.Col}
	case West:
		return Position{p.Row, p.Col - 1}
	default:
		return p
	}
}

// Neighbors returns the four orthogonal neighbours in North, East, South, West order
func (p Position) Neighbors() []Position {
	out := make([]Position, 0, 4)
	for _, d := range AllDirections() {
		out = append(out, p.Step(d))
	}
	return out
}

// Adjacent reports whether a and b share an edge. Diagonals do not count.
func Adjacent(a, b Position) bool {
	return abs(a.Row-b.Row)+abs(a.Col-b.Col) == 1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
