package relay

import (
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const (
	// DefaultKeepAlive is the interval between ": keep-alive" comments.
	DefaultKeepAlive = 30 * time.Second

	// DefaultTimeout bounds how long the upstream may take to answer with
	// response headers.
	DefaultTimeout = 5 * time.Minute
)

// Config is the relay server configuration. It is read once at startup and
// never mutated.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8787")
	ListenAddr string

	// Profile describes the single upstream provider every turn is sent to.
	Profile llm.Profile

	// SystemPrompt is prepended to every conversation when non-empty.
	SystemPrompt string

	// KeepAlive is the keep-alive comment interval. Zero uses DefaultKeepAlive.
	KeepAlive time.Duration

	// Timeout bounds the wait for upstream response headers. The streamed
	// body is not limited. Zero uses DefaultTimeout.
	Timeout time.Duration
}

func (c Config) keepAlive() time.Duration {
	if c.KeepAlive <= 0 {
		return DefaultKeepAlive
	}
	return c.KeepAlive
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
