package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// echoPeer starts a raw WebSocket peer that runs fn on its side of the
// connection, and returns the client side wrapped in a WebSocketClient.
func echoPeer(t *testing.T, maxSize int64, fn func(conn *websocket.Conn)) *WebSocketClient {
	t.Helper()
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	client := NewWebSocketClient(conn, maxSize)
	t.Cleanup(func() { conn.Close() })
	return client
}

func TestWebSocketClient_ReadMessage_SkipsEmptyFrames(t *testing.T) {
	client := echoPeer(t, 0, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(""))
		conn.WriteMessage(websocket.TextMessage, []byte(""))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"end"}`))
		time.Sleep(100 * time.Millisecond)
	})

	data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if string(data) != `{"type":"end"}` {
		t.Errorf("got %q, want the first non-empty frame", data)
	}
}

func TestWebSocketClient_ReadLimit(t *testing.T) {
	client := echoPeer(t, 64, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 200)))
		time.Sleep(100 * time.Millisecond)
	})

	if _, err := client.ReadMessage(); err == nil {
		t.Error("expected an error for a frame over the read limit")
	}
}

func TestWebSocketClient_WriteJSON(t *testing.T) {
	received := make(chan ServerMessage, 1)
	client := echoPeer(t, 0, func(conn *websocket.Conn) {
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	})

	if err := client.WriteJSON(resultMessage(MsgBegin, true)); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Type != MsgResult || msg.Op != MsgBegin || msg.Accepted == nil || !*msg.Accepted {
			t.Errorf("unexpected frame %+v", msg)
		}
	case <-time.After(time.Second):
		t.Error("Timeout waiting for message")
	}
}

func TestWebSocketClient_ConcurrentWrites(t *testing.T) {
	const writers, each = 8, 25
	count := make(chan int, 1)
	client := echoPeer(t, 0, func(conn *websocket.Conn) {
		n := 0
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for n < writers*each {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if !json.Valid(data) {
				break
			}
			n++
		}
		count <- n
	})

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				client.WriteJSON(errorMessage("frame %d", j))
			}
		}()
	}
	wg.Wait()

	select {
	case n := <-count:
		if n != writers*each {
			t.Errorf("peer read %d intact frames, want %d", n, writers*each)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timeout waiting for peer")
	}
}

func TestWebSocketClient_RemoteAddr(t *testing.T) {
	done := make(chan struct{})
	client := echoPeer(t, 0, func(*websocket.Conn) { <-done })
	defer close(done)

	if client.RemoteAddr() == "" {
		t.Error("RemoteAddr should not be empty")
	}
}
