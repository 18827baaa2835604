package shortener

import (
	"context"
	"fmt"
	"math/bits"
)

const (
	// Base62 characters: 0-9, a-z, A-Z (case sensitive)
	base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// 62^5 and 62^6-1 bound every value that encodes to exactly CodeLength characters
	minCodeValue = uint64(916132832)
	maxCodeValue = uint64(56800235583)

	// counterKey names the persisted counter the generator draws from
	counterKey = "short_code_counter"
)

// CounterGenerator generates obfuscated short codes from a monotonic counter.
// Consecutive counters map to unrelated-looking codes.
type CounterGenerator struct {
	counterProvider CounterProvider
	counterKey      string
	multiplier      uint64 // Large odd multiplier for obfuscation
	salt            uint64 // Salt value to add entropy
}

// NewCounterGenerator creates a new counter-based generator with obfuscation
func NewCounterGenerator(counterProvider CounterProvider) *CounterGenerator {
	return &CounterGenerator{
		counterProvider: counterProvider,
		counterKey:      counterKey,
		multiplier:      0x5DEECE66D,        // Large odd multiplier (used in LCGs)
		salt:            0x9E3779B97F4A7C15, // Large prime-like constant
	}
}

// Generate draws counters until the encoded code is not present in existing
func (g *CounterGenerator) Generate(ctx context.Context, existing map[string]struct{}) (string, error) {
	for {
		counter, err := g.counterProvider.NextCounter(ctx, g.counterKey)
		if err != nil {
			return "", fmt.Errorf("failed to get next counter: %w", err)
		}

		code := g.encodeCounter(uint64(counter))
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
}

// encodeCounter transforms the counter value and converts it to a short code
func (g *CounterGenerator) encodeCounter(counter uint64) string {
	transformed := g.obfuscateValue(counter)

	rangeSize := maxCodeValue - minCodeValue + 1
	finalValue := (transformed % rangeSize) + minCodeValue

	return toBase62(finalValue)
}

// obfuscateValue applies multiple transformations to hide the original value
func (g *CounterGenerator) obfuscateValue(value uint64) uint64 {
	result := value ^ g.salt
	result *= g.multiplier
	result = bits.RotateLeft64(result, 21)
	result ^= bits.RotateLeft64(result, 32)

	// swap halves, reversing the lower one
	lower := uint32(result & 0xFFFFFFFF)
	upper := uint32(result >> 32)
	result = (uint64(bits.Reverse32(lower)) << 32) | uint64(upper)

	return result
}

// toBase62 converts a number to base62 representation
func toBase62(num uint64) string {
	if num == 0 {
		return "0"
	}

	var buf [11]byte
	i := len(buf)
	for num > 0 {
		i--
		buf[i] = base62Chars[num%62]
		num /= 62
	}

	return string(buf[i:])
}

// Type returns the generator type
func (g *CounterGenerator) Type() string {
	return TypeCounter
}

// Ensure CounterGenerator implements Generator interface
var _ Generator = (*CounterGenerator)(nil)
