// Package game ties the grid, chain tracker and resolution engine together
// into a session driven by pointer gestures and a scheduler.
package game

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/lawnchairsociety/chaintiles/internal/chain"
	"github.com/lawnchairsociety/chaintiles/internal/config"
	"github.com/lawnchairsociety/chaintiles/internal/gametime"
	"github.com/lawnchairsociety/chaintiles/internal/grid"
	"github.com/lawnchairsociety/chaintiles/internal/logger"
	"github.com/lawnchairsociety/chaintiles/internal/resolve"
	"github.com/lawnchairsociety/chaintiles/internal/tile"
)

// Snapshot is the observable state of a session after a change.
type Snapshot struct {
	ID     string          `json:"id"`
	Seq    uint64          `json:"seq"`
	Grid   grid.Snapshot   `json:"grid"`
	Chain  []grid.Position `json:"chain"`
	Phase  string          `json:"phase"`
	Locked bool            `json:"locked"`
	Stats  resolve.Stats   `json:"stats"`
}

// Option configures a Session
type Option func(*Session)

// WithGenerator replaces the configured tile generator
func WithGenerator(gen *tile.Generator) Option {
	return func(s *Session) { s.gen = gen }
}

// WithGrid starts the session on g instead of a random board. Empty cells
// are filled from the generator. The grid's dimensions take precedence
// over the configured ones.
func WithGrid(g *grid.Grid) Option {
	return func(s *Session) { s.grid = g }
}

// WithID sets the session ID instead of a random UUID
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one game: a board, the gesture in progress, and the
// resolution cycle that follows a release. Gestures and scheduled steps are
// serialised by a single mutex, so all methods are safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id    string
	cfg   config.GameConfig
	sched gametime.Scheduler

	grid    *grid.Grid
	gen     *tile.Generator
	tracker *chain.Tracker
	engine  *resolve.Engine

	seq          uint64
	listeners    map[int]func(Snapshot)
	nextListener int
	closed       bool
}

// NewSession creates a session with a full board. Steps of a resolution
// cycle are run through sched, cfg.StepDelay() apart.
func NewSession(cfg config.GameConfig, sched gametime.Scheduler, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, errors.New("game: nil scheduler")
	}

	s := &Session{
		cfg:       cfg,
		sched:     sched,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.gen == nil {
		gen, err := newGenerator(cfg)
		if err != nil {
			return nil, err
		}
		s.gen = gen
	}
	if s.grid == nil {
		g, err := grid.New(cfg.Rows, cfg.Columns)
		if err != nil {
			return nil, err
		}
		s.grid = g
	}
	s.grid.Fill(s.gen)

	s.tracker = chain.NewTracker(s.grid)
	s.engine = resolve.New(s.grid, s.gen, resolve.WithMinChain(cfg.MinChain))

	logger.Debug("session created", "session", s.id,
		"rows", s.grid.Rows(), "cols", s.grid.Cols(), "kinds", s.gen.Kinds())
	return s, nil
}

func newGenerator(cfg config.GameConfig) (*tile.Generator, error) {
	if cfg.Seed != 0 {
		return tile.NewSeededGenerator(cfg.Kinds, cfg.Seed)
	}
	return tile.NewGenerator(cfg.Kinds, nil)
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Locked reports whether a resolution cycle is holding the input lockout
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Locked()
}

// BeginGesture starts a chain on the tile at (row, col). It is refused
// while locked out or while another gesture is in progress.
func (s *Session) BeginGesture(row, col int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.engine.Locked() || s.tracker.Active() {
		return false, nil
	}

	p := grid.At(row, col)
	if err := s.tracker.Begin(p); err != nil {
		if errors.Is(err, chain.ErrEmptyCell) {
			return false, nil
		}
		return false, fmt.Errorf("begin gesture: %w", err)
	}

	s.notify()
	return true, nil
}

// ExtendGesture offers the tile at (row, col) to the gesture in progress.
// It returns true when the chain grew or retracted.
func (s *Session) ExtendGesture(row, col int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.engine.Locked() || !s.tracker.Active() {
		return false, nil
	}

	out, err := s.tracker.Extend(grid.At(row, col))
	if err != nil {
		return false, fmt.Errorf("extend gesture: %w", err)
	}
	if !out.Accepted() {
		return false, nil
	}

	s.notify()
	return true, nil
}

// EndGesture finishes the gesture in progress. Long enough chains are
// removed and a resolution cycle starts; it returns true in that case.
// Shorter chains are discarded without touching the board.
func (s *Session) EndGesture() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.engine.Locked() || !s.tracker.Active() {
		return false, nil
	}

	members := s.tracker.Members()
	kind, _ := s.tracker.AnchorKind()
	s.tracker.Reset()

	released, err := s.engine.Release(members)
	if err != nil {
		s.notify()
		return false, fmt.Errorf("end gesture: %w", err)
	}
	if !released {
		logger.Debug("chain too short", "session", s.id, "length", len(members), "min", s.engine.MinChain())
		s.notify()
		return false, nil
	}

	logger.Debug("chain released", "session", s.id, "length", len(members), "kind", kind.String())
	s.notify()
	s.scheduleStep()
	return true, nil
}

// CancelGesture drops the gesture in progress without committing it
func (s *Session) CancelGesture() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tracker.Active() {
		return
	}
	s.tracker.Reset()
	if !s.closed {
		s.notify()
	}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe registers fn to be called after every change. fn runs with the
// session lock held, so it must not block or call back into the session.
// The returned function removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close stops the session. Outstanding steps become no-ops and further
// gestures are refused.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.listeners = make(map[int]func(Snapshot))
	logger.Debug("session closed", "session", s.id, "phase", s.engine.Phase().String())
}

func (s *Session) scheduleStep() {
	s.sched.After(s.cfg.StepDelay(), s.step)
}

// step runs one unit of the resolution cycle and queues the next
func (s *Session) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	res, err := s.engine.Step()
	if err != nil {
		logger.Error("resolution step failed", "session", s.id, "phase", s.engine.Phase().String(), "error", err)
		return
	}
	s.notify()

	if !res.Done {
		s.scheduleStep()
		return
	}

	stats := s.engine.Stats()
	logger.Debug("resolution complete", "session", s.id,
		"removed", stats.Removed, "passes", stats.Passes, "filled", stats.Filled)
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		ID:     s.id,
		Seq:    s.seq,
		Grid:   s.grid.Snapshot(),
		Chain:  s.tracker.Members(),
		Phase:  s.engine.Phase().String(),
		Locked: s.engine.Locked(),
		Stats:  s.engine.Stats(),
	}
}

// notify bumps the sequence number and hands listeners a fresh snapshot.
// Caller holds s.mu.
func (s *Session) notify() {
	s.seq++
	if len(s.listeners) == 0 {
		return
	}
	snap := s.snapshot()
	for _, fn := range s.listeners {
		fn(snap)
	}
}
