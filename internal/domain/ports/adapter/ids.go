package adapter

import "time"

// IDGenerator hands out identifiers for sessions and messages. Message ids
// must never repeat for the lifetime of the generator.
type IDGenerator interface {
	NewSessionID() string
	NewMessageID() string
}

// Clock returns the current time.
type Clock func() time.Time
