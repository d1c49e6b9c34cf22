package server

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/chaintiles/internal/antispam"
	"github.com/lawnchairsociety/chaintiles/internal/game"
	"github.com/lawnchairsociety/chaintiles/internal/logger"
)

var errLockedOut = errors.New("too many protocol violations")

// gameConn pairs a client with its session. The reader goroutine applies
// gestures; the writer goroutine sends state frames, collapsing bursts of
// changes into the most recent snapshot.
type gameConn struct {
	server  *Server
	client  Client
	ip      string
	session *game.Session
	limiter *antispam.Tracker

	mu     sync.Mutex
	latest *game.Snapshot
	wake   chan struct{}
	done   chan struct{}
}

func newGameConn(s *Server, client Client, ip string, session *game.Session) *gameConn {
	rl := s.cfg.RateLimit
	return &gameConn{
		server:  s,
		client:  client,
		ip:      ip,
		session: session,
		limiter: antispam.NewTracker(antispam.ConfigFromYAML(rl.MaxMessages, rl.WindowSeconds)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// run serves the connection until the client goes away.
func (c *gameConn) run() {
	unsubscribe := c.session.Subscribe(c.publish)
	defer unsubscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	c.publish(c.session.Snapshot())

	err := c.readLoop()
	if err != nil && !isNormalClose(err) {
		logger.Debug("Connection read ended", "session", c.session.ID(), "error", err)
	}

	// A dropped pointer never commits.
	c.session.CancelGesture()
	close(c.done)
	wg.Wait()
}

// publish records snap as the next frame to send. It never blocks, so it
// is safe to call from a session listener.
func (c *gameConn) publish(snap game.Snapshot) {
	c.mu.Lock()
	c.latest = &snap
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *gameConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
			c.mu.Lock()
			snap := c.latest
			c.latest = nil
			c.mu.Unlock()
			if snap == nil {
				continue
			}
			if err := c.client.WriteJSON(stateMessage(*snap)); err != nil {
				logger.Debug("State write failed", "session", c.session.ID(), "error", err)
				c.client.Close()
				return
			}
		case <-ticker.C:
			if err := c.client.Ping(); err != nil {
				c.client.Close()
				return
			}
		}
	}
}

func (c *gameConn) readLoop() error {
	for {
		data, err := c.client.ReadMessage()
		if err != nil {
			return err
		}
		if err := c.handle(data); err != nil {
			return err
		}
	}
}

// handle applies one inbound frame. A non-nil error ends the connection.
func (c *gameConn) handle(data []byte) error {
	if res := c.limiter.Check(); !res.Allowed {
		c.client.WriteJSON(errorMessage("rate limited: %s", res.Reason))
		return c.violation("rate limited")
	}

	msg, err := decodeClientMessage(data)
	if err != nil {
		c.client.WriteJSON(errorMessage("%v", err))
		return c.violation("malformed message")
	}

	var accepted bool
	switch msg.Type {
	case MsgBegin:
		accepted, err = c.session.BeginGesture(msg.Row, msg.Col)
	case MsgExtend:
		accepted, err = c.session.ExtendGesture(msg.Row, msg.Col)
	case MsgEnd:
		accepted, err = c.session.EndGesture()
	case MsgSnapshot:
		c.publish(c.session.Snapshot())
		return nil
	}

	if err != nil {
		logger.Debug("Gesture error", "session", c.session.ID(), "op", msg.Type, "error", err)
		c.client.WriteJSON(errorMessage("%s: %v", msg.Type, err))
	}
	return c.client.WriteJSON(resultMessage(msg.Type, accepted))
}

// violation records a protocol violation and reports errLockedOut once
// the IP has crossed the limit.
func (c *gameConn) violation(reason string) error {
	locked, d := c.server.violations.Record(c.ip)
	if !locked {
		return nil
	}
	logger.Warning("Client locked out",
		"session", c.session.ID(),
		"client_ip", c.ip,
		"reason", reason,
		"lockout", d.String())
	return errLockedOut
}

func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
