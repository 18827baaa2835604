package shortener

import (
	"fmt"
)

// NewGenerator creates the generator selected by config.Type. Counter
// generators reserve config.CounterStep counters per provider call.
func NewGenerator(config Config, counters CounterProvider) (Generator, error) {
	switch config.Type {
	case "", TypeRandom:
		return NewRandomGenerator(), nil
	case TypeCounter:
		if counters == nil {
			return nil, fmt.Errorf("counter provider required for counter-based generator")
		}
		if config.CounterStep > 1 {
			counters = NewCounterCache(counters, config.CounterStep)
		}
		return NewCounterGenerator(counters), nil
	default:
		return nil, fmt.Errorf("unknown generator type: %s", config.Type)
	}
}
