package livesync

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultHeartbeatTimeout = 40 * time.Second
	DefaultBaseDelay        = 1 * time.Second
	DefaultMaxDelay         = 60 * time.Second
	DefaultMaxRetries       = 3
	DefaultDialTimeout      = 15 * time.Second
)

// Config holds the reconnect and watchdog parameters shared by every subscription.
// Zero fields take the reference defaults; a negative MaxRetries disables reconnects.
type Config struct {
	HeartbeatTimeout time.Duration
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	MaxRetries       int
	DialTimeout      time.Duration
}

// DefaultConfig returns the reference values: 40s watchdog, 1s..60s backoff, 3 retries.
func DefaultConfig() Config {
	return Config{
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		BaseDelay:        DefaultBaseDelay,
		MaxDelay:         DefaultMaxDelay,
		MaxRetries:       DefaultMaxRetries,
		DialTimeout:      DefaultDialTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = d.MaxDelay
		if c.MaxDelay < c.BaseDelay {
			c.MaxDelay = c.BaseDelay
		}
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = d.MaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	return c
}

// newBackOff returns a jitter-free exponential policy: the n-th call to
// NextBackOff after Reset yields min(BaseDelay*2^n, MaxDelay).
func (c Config) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.MaxInterval = c.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}
