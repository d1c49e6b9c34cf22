package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for settings the game cannot run with.
var ErrInvalidConfig = errors.New("invalid configuration")

// ServerConfig holds server-wide configuration settings.
type ServerConfig struct {
	Game        GameConfig        `yaml:"game"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	Connections ConnectionsConfig `yaml:"connections"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
}

// GameConfig holds the board constants. They are fixed once a session is created.
type GameConfig struct {
	// Rows and Columns are the board dimensions.
	Rows    int `yaml:"rows"`
	Columns int `yaml:"columns"`

	// Kinds is the number of distinct tile kinds.
	Kinds int `yaml:"kinds"`

	// StepDelayMS is the pause between resolution steps in milliseconds.
	StepDelayMS int `yaml:"step_delay_ms"`

	// MinChain is the shortest chain that is removed on release.
	MinChain int `yaml:"min_chain"`

	// Seed makes tile generation reproducible. 0 means a random seed.
	Seed uint64 `yaml:"seed"`
}

// RateLimitConfig limits how fast a single connection may send messages.
type RateLimitConfig struct {
	// MaxMessages is the number of messages allowed per window.
	// 0 disables rate limiting.
	MaxMessages int `yaml:"max_messages"`

	// WindowSeconds is the length of the sliding window.
	WindowSeconds int `yaml:"window_seconds"`

	// MaxViolations is how many malformed or throttled messages an IP may
	// send before new connections from it are refused.
	MaxViolations int `yaml:"max_violations"`

	// LockoutSeconds is the initial refusal period in seconds.
	LockoutSeconds int `yaml:"lockout_seconds"`

	// MaxLockoutSeconds caps the lockout (for exponential backoff).
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// ConnectionsConfig holds connection limit settings.
type ConnectionsConfig struct {
	// MaxPerIP is the maximum concurrent connections allowed from a single IP address.
	// 0 means unlimited (not recommended).
	MaxPerIP int `yaml:"max_per_ip"`

	// MaxTotal is the maximum total concurrent connections to the server.
	// 0 means unlimited.
	MaxTotal int `yaml:"max_total"`

	// TrustProxy takes the client address from X-Forwarded-For or
	// X-Real-IP. Only enable behind a reverse proxy that sets them.
	TrustProxy bool `yaml:"trust_proxy"`
}

// WebSocketConfig holds WebSocket-specific settings.
type WebSocketConfig struct {
	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins (not recommended for production).
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`
}

// DefaultGameConfig returns the classic 8x8 board with five kinds.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		Rows:        8,
		Columns:     8,
		Kinds:       5,
		StepDelayMS: 300,
		MinChain:    3,
	}
}

// DefaultConfig returns a ServerConfig with secure defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Game: DefaultGameConfig(),
		WebSocket: WebSocketConfig{
			AllowedOrigins: []string{}, // Same-origin only by default
			MaxMessageSize: 1024,
		},
		Connections: ConnectionsConfig{
			MaxPerIP: 3,
			MaxTotal: 100,
		},
		RateLimit: RateLimitConfig{
			MaxMessages:       120, // pointer moves arrive in bursts
			WindowSeconds:     1,
			MaxViolations:     20,
			LockoutSeconds:    30,
			MaxLockoutSeconds: 300,
		},
	}
}

// LoadConfig loads server configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*ServerConfig, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), err
	}

	if err := config.Validate(); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// Validate checks every section that has hard limits.
func (c *ServerConfig) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return err
	}
	rl := c.RateLimit
	if rl.MaxMessages < 0 || rl.WindowSeconds < 0 || rl.MaxViolations < 0 || rl.LockoutSeconds < 0 || rl.MaxLockoutSeconds < 0 {
		return fmt.Errorf("%w: rate_limit values must not be negative", ErrInvalidConfig)
	}
	if rl.MaxMessages > 0 && rl.WindowSeconds == 0 {
		return fmt.Errorf("%w: rate_limit.window_seconds must be set when max_messages is", ErrInvalidConfig)
	}
	return nil
}

// Validate checks the board constants.
func (g GameConfig) Validate() error {
	switch {
	case g.Rows < 1 || g.Columns < 1:
		return fmt.Errorf("%w: board must be at least 1x1, got %dx%d", ErrInvalidConfig, g.Rows, g.Columns)
	case g.Kinds < 1:
		return fmt.Errorf("%w: kinds must be positive, got %d", ErrInvalidConfig, g.Kinds)
	case g.StepDelayMS < 0:
		return fmt.Errorf("%w: step_delay_ms must not be negative, got %d", ErrInvalidConfig, g.StepDelayMS)
	case g.MinChain < 1:
		return fmt.Errorf("%w: min_chain must be positive, got %d", ErrInvalidConfig, g.MinChain)
	}
	return nil
}

// StepDelay returns the pause between resolution steps.
func (g GameConfig) StepDelay() time.Duration {
	return time.Duration(g.StepDelayMS) * time.Millisecond
}

// RateWindow returns the rate limiting window as a duration.
func (c *RateLimitConfig) RateWindow() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *WebSocketConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host.
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
