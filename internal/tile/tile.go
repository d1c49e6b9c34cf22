package tile

import (
	"fmt"
	"strconv"
)

// DefaultKinds is the number of tile kinds used when none is configured.
const DefaultKinds = 5

// Kind identifies the type of a tile. Two tiles match when their kinds are equal.
type Kind int

// String returns the string representation of a Kind
func (k Kind) String() string {
	return "kind-" + strconv.Itoa(int(k))
}

// Tile is a single piece on the board. It carries nothing but its kind;
// where it sits is the grid's business.
type Tile struct {
	kind Kind
}

// New creates a new tile of the given kind
func New(kind Kind) *Tile {
	return &Tile{kind: kind}
}

// Kind returns the tile's kind
func (t *Tile) Kind() Kind {
	return t.kind
}

// AppearanceKey returns the key a renderer uses to pick the tile's image.
// The core never interprets it.
func (t *Tile) AppearanceKey() string {
	return fmt.Sprintf("/images/%d.png", t.kind)
}

// Matches reports whether two tiles have the same kind. A nil tile matches nothing.
func (t *Tile) Matches(other *Tile) bool {
	if t == nil || other == nil {
		return false
	}
	return t.kind == other.kind
}
