package testclient

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/chaintiles/internal/game"
	"github.com/lawnchairsociety/chaintiles/internal/grid"
	"github.com/lawnchairsociety/chaintiles/internal/server"
)

// TestClient represents a test client connection to the game server
type TestClient struct {
	Name    string
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	states   []game.Snapshot
	results  []server.ServerMessage
	errors   []string
	readErr  error
	closeOne sync.Once
}

// NewTestClient dials url and starts reading frames in the background.
func NewTestClient(name, url string) (*TestClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	client := &TestClient{
		Name: name,
		conn: conn,
	}

	go client.readMessages()

	return client, nil
}

// readMessages continuously reads frames from the server
func (c *TestClient) readMessages() {
	for {
		var msg server.ServerMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		switch msg.Type {
		case server.MsgState:
			if msg.State != nil {
				c.states = append(c.states, *msg.State)
			}
		case server.MsgResult:
			c.results = append(c.results, msg)
		case server.MsgError:
			c.errors = append(c.errors, msg.Message)
		}
		c.mu.Unlock()
	}
}

func (c *TestClient) send(msg server.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Begin starts a gesture at (row, col)
func (c *TestClient) Begin(row, col int) error {
	return c.send(server.ClientMessage{Type: server.MsgBegin, Row: row, Col: col})
}

// Extend moves the pointer onto (row, col)
func (c *TestClient) Extend(row, col int) error {
	return c.send(server.ClientMessage{Type: server.MsgExtend, Row: row, Col: col})
}

// End releases the pointer
func (c *TestClient) End() error {
	return c.send(server.ClientMessage{Type: server.MsgEnd})
}

// RequestSnapshot asks the server to resend the current state
func (c *TestClient) RequestSnapshot() error {
	return c.send(server.ClientMessage{Type: server.MsgSnapshot})
}

// SendRaw writes an arbitrary text frame
func (c *TestClient) SendRaw(data string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(data))
}

// LatestState returns the most recent state frame, if any
func (c *TestClient) LatestState() (game.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.states) == 0 {
		return game.Snapshot{}, false
	}
	return c.states[len(c.states)-1], true
}

// StateCount returns the number of state frames buffered
func (c *TestClient) StateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.states)
}

// Errors returns every error frame received so far
func (c *TestClient) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.errors))
	copy(result, c.errors)
	return result
}

// ClearMessages drops buffered results and errors. The latest state is kept.
func (c *TestClient) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = nil
	c.errors = nil
	if n := len(c.states); n > 1 {
		c.states = c.states[n-1:]
	}
}

// Disconnected reports whether the server has closed the connection
func (c *TestClient) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr != nil
}

// WaitForState waits for a state frame satisfying pred (with timeout)
func (c *TestClient) WaitForState(pred func(game.Snapshot) bool, timeout time.Duration) (game.Snapshot, bool) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		c.mu.Lock()
		for i := len(c.states) - 1; i >= 0; i-- {
			if pred(c.states[i]) {
				snap := c.states[i]
				c.mu.Unlock()
				return snap, true
			}
		}
		c.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}

	return game.Snapshot{}, false
}

// WaitForResult waits for the next unconsumed result frame for op and
// reports whether it was accepted.
func (c *TestClient) WaitForResult(op string, timeout time.Duration) (accepted bool, ok bool) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		c.mu.Lock()
		for i, msg := range c.results {
			if msg.Op != op {
				continue
			}
			c.results = append(c.results[:i], c.results[i+1:]...)
			c.mu.Unlock()
			return msg.Accepted != nil && *msg.Accepted, true
		}
		c.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}

	return false, false
}

// WaitForError waits for any error frame (with timeout)
func (c *TestClient) WaitForError(timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if errs := c.Errors(); len(errs) > 0 {
			return errs[len(errs)-1], true
		}
		time.Sleep(20 * time.Millisecond)
	}

	return "", false
}

// WaitForDisconnect waits for the server to close the connection
func (c *TestClient) WaitForDisconnect(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if c.Disconnected() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}

	return false
}

// Close closes the client connection
func (c *TestClient) Close() error {
	var err error
	c.closeOne.Do(func() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// FindChain looks for a straight run of n same-kind occupied cells on the
// board and returns their positions in order.
func FindChain(snap grid.Snapshot, n int) ([]grid.Position, bool) {
	steps := [][2]int{{0, 1}, {1, 0}}
	for r := 0; r < snap.Rows; r++ {
		for c := 0; c < snap.Cols; c++ {
			for _, d := range steps {
				if run, ok := straightRun(snap, r, c, d[0], d[1], n); ok {
					return run, true
				}
			}
		}
	}
	return nil, false
}

func straightRun(snap grid.Snapshot, r, c, dr, dc, n int) ([]grid.Position, bool) {
	start := snap.Cells[r][c]
	if start.Empty {
		return nil, false
	}
	run := make([]grid.Position, 0, n)
	for i := 0; i < n; i++ {
		rr, cc := r+i*dr, c+i*dc
		if rr >= snap.Rows || cc >= snap.Cols {
			return nil, false
		}
		cell := snap.Cells[rr][cc]
		if cell.Empty || cell.Kind != start.Kind {
			return nil, false
		}
		run = append(run, grid.Position{Row: rr, Col: cc})
	}
	return run, true
}
