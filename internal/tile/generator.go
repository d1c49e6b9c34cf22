package tile

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

var (
	// ErrInvalidKinds is returned when a generator is asked for fewer than one kind.
	ErrInvalidKinds = errors.New("tile: kind count must be at least 1")

	// ErrKindOutOfRange is returned when a requested kind is outside [0, kinds).
	ErrKindOutOfRange = errors.New("tile: kind out of range")
)

// IntNSource is the part of *rand.Rand the generator needs.
// Abstracted so tests can script exactly which kinds come out.
type IntNSource interface {
	IntN(n int) int
}

// Generator produces new tiles for the initial board and for refills.
type Generator struct {
	kinds int
	src   IntNSource
	mu    sync.Mutex
}

// NewGenerator creates a generator for kinds in [0, kinds).
// A nil source is replaced with a ChaCha8 stream seeded from crypto/rand.
func NewGenerator(kinds int, src IntNSource) (*Generator, error) {
	if kinds < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidKinds, kinds)
	}
	if src == nil {
		var seed [32]byte
		_, _ = crand.Read(seed[:])
		src = rand.New(rand.NewChaCha8(seed))
	}
	return &Generator{kinds: kinds, src: src}, nil
}

// NewSeededGenerator creates a generator whose sequence is reproducible from seed.
func NewSeededGenerator(kinds int, seed uint64) (*Generator, error) {
	return NewGenerator(kinds, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Kinds returns the number of kinds this generator draws from
func (g *Generator) Kinds() int {
	return g.kinds
}

// Next returns a tile with a uniformly random kind
func (g *Generator) Next() *Tile {
	g.mu.Lock()
	defer g.mu.Unlock()
	return New(Kind(g.src.IntN(g.kinds)))
}

// NextOf returns a tile of exactly the given kind.
func (g *Generator) NextOf(kind Kind) (*Tile, error) {
	if kind < 0 || int(kind) >= g.kinds {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrKindOutOfRange, kind, g.kinds)
	}
	return New(kind), nil
}

// ScriptedSource replays a fixed sequence of values, wrapping around at the end.
// Each value is reduced modulo n, so any sequence is valid for any kind count.
type ScriptedSource struct {
	values []int
	next   int
}

// NewScriptedSource creates a source that yields values in order, cyclically
func NewScriptedSource(values ...int) *ScriptedSource {
	if len(values) == 0 {
		values = []int{0}
	}
	return &ScriptedSource{values: values}
}

// IntN returns the next scripted value modulo n
func (s *ScriptedSource) IntN(n int) int {
	v := s.values[s.next%len(s.values)]
	s.next++
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
