package domain

import (
	"time"
)

// Config holds engine tuning. Zero values are replaced by defaults; callers
// normally start from DefaultConfig and override selectively.
type Config struct {
	// DataDir is where the run-history store keeps its badger files.
	DataDir string

	// PollInterval is the cooperative polling cadence for in-flight
	// external operations.
	PollInterval time.Duration

	// MaxPollIterations bounds a single run's polling loop. Once exceeded,
	// still-pending operations are abandoned and their nodes failed.
	MaxPollIterations int

	// OperationTimeout is the upper bound each external call enforces.
	OperationTimeout time.Duration

	// UndoDepth bounds the session's snapshot history.
	UndoDepth int
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:           "./data",
		PollInterval:      time.Second,
		MaxPollIterations: 300,
		OperationTimeout:  60 * time.Second,
		UndoDepth:         100,
	}
}

func (c *Config) WithDataDir(dir string) *Config {
	c.DataDir = dir
	return c
}

func (c *Config) WithPolling(interval time.Duration, maxIterations int) *Config {
	c.PollInterval = interval
	c.MaxPollIterations = maxIterations
	return c
}

func (c *Config) WithOperationTimeout(timeout time.Duration) *Config {
	c.OperationTimeout = timeout
	return c
}

func (c *Config) WithUndoDepth(depth int) *Config {
	c.UndoDepth = depth
	return c
}

// Normalize fills unset fields with defaults.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.MaxPollIterations <= 0 {
		c.MaxPollIterations = def.MaxPollIterations
	}
	if c.OperationTimeout <= 0 {
		c.OperationTimeout = def.OperationTimeout
	}
	if c.UndoDepth <= 0 {
		c.UndoDepth = def.UndoDepth
	}
}
