package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"

	"github.com/lawnchairsociety/chaintiles/internal/config"
	"github.com/lawnchairsociety/chaintiles/internal/game"
	"github.com/lawnchairsociety/chaintiles/internal/gametime"
	"github.com/lawnchairsociety/chaintiles/internal/grid"
	"github.com/lawnchairsociety/chaintiles/internal/logger"
)

const (
	originX = 2
	originY = 2
	cellW   = 3
)

var palette = []tcell.Color{
	tcell.ColorRed,
	tcell.ColorGreen,
	tcell.ColorBlue,
	tcell.ColorYellow,
	tcell.ColorPurple,
	tcell.ColorTeal,
	tcell.ColorOrange,
	tcell.ColorWhite,
}

// terminal plays a local session with the mouse.
type terminal struct {
	screen tcell.Screen
	cfg    config.GameConfig

	sched       *gametime.TimerScheduler
	session     *game.Session
	unsubscribe func()
	snap        game.Snapshot

	// pressed is set while button 1 is held; inside is cleared once the
	// pointer has left the board during that press.
	pressed bool
	inside  bool
	last    grid.Position
}

func main() {
	serverConfigFile := flag.String("config", "data/server.yaml", "Path to config YAML file (game and logging blocks)")
	seed := flag.Uint64("seed", 0, "Tile generator seed (default: random)")
	flag.Parse()

	// The screen owns stdout, so logs only go to the file.
	logConfig, _ := logger.LoadConfig(*serverConfigFile)
	off := false
	logConfig.ConsoleEnabled = &off
	logConfig.FileEnabled = true
	if logConfig.FilePath == "" {
		logConfig.FilePath = "logs/chaintiles-term.log"
	}
	if err := logger.Initialize(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	serverCfg, err := config.LoadConfig(*serverConfigFile)
	if err != nil {
		logger.Warning("Failed to load config, using defaults", "path", *serverConfigFile, "error", err)
		serverCfg = config.DefaultConfig()
	}
	if *seed != 0 {
		serverCfg.Game.Seed = *seed
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("Failed to create screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("Failed to initialize screen: %v", err)
	}

	t := &terminal{screen: screen, cfg: serverCfg.Game}
	if err := t.newGame(); err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	t.run()

	t.endGame()
	screen.Fini()
}

// newGame replaces the current session with a fresh board.
func (t *terminal) newGame() error {
	t.endGame()

	t.sched = gametime.NewTimerScheduler()
	session, err := game.NewSession(t.cfg, t.sched)
	if err != nil {
		t.sched.Stop()
		return fmt.Errorf("failed to start game: %w", err)
	}
	t.session = session
	t.snap = session.Snapshot()
	t.pressed = false

	// Listeners run under the session lock; PostEvent does not block.
	t.unsubscribe = session.Subscribe(func(snap game.Snapshot) {
		t.screen.PostEvent(tcell.NewEventInterrupt(snap))
	})

	logger.Info("Game started", "session", session.ID())
	return nil
}

func (t *terminal) endGame() {
	if t.session == nil {
		return
	}
	t.unsubscribe()
	t.session.CancelGesture()
	t.session.Close()
	t.sched.Stop()
	logger.Info("Game ended", "session", t.session.ID(), "removed", t.snap.Stats.Removed)
	t.session = nil
}

func (t *terminal) run() {
	t.screen.EnableMouse()
	t.screen.HideCursor()
	t.draw()

	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}

		switch ev := ev.(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC ||
				(ev.Key() == tcell.KeyRune && ev.Rune() == 'q') {
				return
			}
			if ev.Key() == tcell.KeyRune && ev.Rune() == 'n' {
				if err := t.newGame(); err != nil {
					logger.Error("New game failed", "error", err)
				}
			}

		case *tcell.EventMouse:
			t.handleMouse(ev)

		case *tcell.EventInterrupt:
			snap, ok := ev.Data().(game.Snapshot)
			// Late frames from a replaced session are dropped.
			if !ok || t.session == nil || snap.ID != t.session.ID() || snap.Seq < t.snap.Seq {
				continue
			}
			t.snap = snap

		case *tcell.EventResize:
			t.screen.Sync()
		}

		t.draw()
	}
}

func (t *terminal) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	pos, onBoard := t.cellAt(x, y)
	down := ev.Buttons()&tcell.Button1 != 0

	switch {
	case down && !t.pressed:
		t.pressed = true
		t.inside = onBoard
		if onBoard {
			t.last = pos
			t.report("begin", func() (bool, error) { return t.session.BeginGesture(pos.Row, pos.Col) })
		}

	case down && t.pressed:
		if !t.inside {
			return
		}
		if !onBoard {
			// Leaving the board counts as a release.
			t.inside = false
			t.report("end", t.session.EndGesture)
			return
		}
		if pos != t.last {
			t.last = pos
			t.report("extend", func() (bool, error) { return t.session.ExtendGesture(pos.Row, pos.Col) })
		}

	case !down && t.pressed:
		t.pressed = false
		if t.inside {
			t.report("end", t.session.EndGesture)
		}
	}
}

func (t *terminal) report(op string, fn func() (bool, error)) {
	if _, err := fn(); err != nil {
		logger.Debug("Gesture error", "op", op, "error", err)
	}
}

// cellAt maps screen coordinates to a board cell.
func (t *terminal) cellAt(x, y int) (grid.Position, bool) {
	g := t.snap.Grid
	if x < originX || y < originY {
		return grid.Position{}, false
	}
	row, col := y-originY, (x-originX)/cellW
	if row >= g.Rows || col >= g.Cols {
		return grid.Position{}, false
	}
	return grid.Position{Row: row, Col: col}, true
}

func (t *terminal) draw() {
	t.screen.Clear()

	inChain := make(map[grid.Position]bool, len(t.snap.Chain))
	for _, p := range t.snap.Chain {
		inChain[p] = true
	}

	g := t.snap.Grid
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			x, y := originX+c*cellW, originY+r
			cell := g.Cells[r][c]
			if cell.Empty {
				t.screen.SetContent(x, y, '·', nil, tcell.StyleDefault.Foreground(tcell.ColorGray))
				continue
			}
			style := tcell.StyleDefault.Foreground(palette[cell.Kind%len(palette)])
			if inChain[grid.Position{Row: r, Col: c}] {
				style = style.Reverse(true)
			}
			t.screen.SetContent(x, y, '●', nil, style)
		}
	}

	status := fmt.Sprintf("%-10s removed %d  passes %d  filled %d", t.snap.Phase, t.snap.Stats.Removed, t.snap.Stats.Passes, t.snap.Stats.Filled)
	statusStyle := tcell.StyleDefault
	if t.snap.Locked {
		statusStyle = statusStyle.Foreground(tcell.ColorYellow)
	}
	drawText(t.screen, originX, 0, statusStyle, status)
	drawText(t.screen, originX, originY+g.Rows+1, tcell.StyleDefault.Foreground(tcell.ColorGray),
		"drag to chain matching tiles  n new game  q quit")

	t.screen.Show()
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}
