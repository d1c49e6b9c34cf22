package server

// Client abstracts the connection a game session is played over.
type Client interface {
	// ReadMessage blocks until the next frame arrives.
	ReadMessage() ([]byte, error)

	// WriteJSON sends v as one frame. Safe for concurrent use.
	WriteJSON(v any) error

	// Ping sends a keepalive.
	Ping() error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the client's address for logging.
	RemoteAddr() string
}
