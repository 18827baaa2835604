package shortener

import (
	"context"
)

// CodeLength is the length of every generated short code
const CodeLength = 6

// Generator defines the interface for generating short codes
type Generator interface {
	// Generate returns a CodeLength-character alphanumeric code that is not a key of existing
	Generate(ctx context.Context, existing map[string]struct{}) (string, error)

	// Type returns the type identifier of the generator
	Type() string
}

// CounterProvider defines the interface for managing counters used by generators
type CounterProvider interface {
	// NextCounter atomically increments and returns the counter for a given key
	NextCounter(ctx context.Context, key string) (int64, error)
}

// Config holds configuration for shortener generators
type Config struct {
	Type string `json:"type" envconfig:"GENERATOR" default:"random"`

	// CounterStep is how many counters the counter generator reserves per store write
	CounterStep int64 `json:"counter_step" envconfig:"COUNTER_STEP" default:"100"`
}

// GeneratorType constants
const (
	TypeRandom  = "random"
	TypeCounter = "counter"
)

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Type:        TypeRandom,
		CounterStep: 100,
	}
}
