package core

import (
	"sync"

	"golang.org/x/time/rate"
)

// DefaultEventBuffer is the per-connection outbound queue length used when none is configured.
const DefaultEventBuffer = 64

// Client is one open realtime connection as seen by the core layer.
// A user may hold several clients at once.
type Client struct {
	ID       string
	UserID   int64
	Username string
	Events   chan *Event

	// Limiter throttles actions from this connection. Nil means unlimited.
	Limiter *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with an outbound queue of the given size.
func NewClient(id string, userID int64, username string, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		Events:   make(chan *Event, buffer),
		done:     make(chan struct{}),
	}
}

// Done is closed once the client has been removed from the registry.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) summary() UserSummary {
	return UserSummary{ID: c.UserID, Username: c.Username}
}
