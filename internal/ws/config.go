package ws

import "time"

// Config tunes connection handling and action processing.
type Config struct {
	// ActionTimeout bounds the collaborator calls of one client action.
	ActionTimeout time.Duration
	// MaxBodyLength is the longest accepted message body, in runes.
	MaxBodyLength int
	// SendQueueSize is the per-connection outbound buffer; a connection whose
	// buffer is full is dropped.
	SendQueueSize int
	WriteWait     time.Duration
	PongWait      time.Duration
	MaxFrameBytes int64
}

func (c Config) withDefaults() Config {
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.MaxBodyLength <= 0 {
		c.MaxBodyLength = 5000
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 64 << 10
	}
	return c
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}
