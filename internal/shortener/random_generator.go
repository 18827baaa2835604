package shortener

import (
	"context"
	"math/rand/v2"
	"sync"
)

// RandomGenerator draws codes uniformly from the base62 alphabet and
// redraws on collision. With 62^6 possible codes a redraw is rare.
type RandomGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomGenerator creates a generator backed by a randomly seeded source
func NewRandomGenerator() *RandomGenerator {
	return NewRandomGeneratorWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewRandomGeneratorWithSource creates a generator over the given source.
// Tests use a seeded source for reproducible codes.
func NewRandomGeneratorWithSource(src rand.Source) *RandomGenerator {
	return &RandomGenerator{rnd: rand.New(src)}
}

// Generate returns a fresh code not present in existing. It never fails.
func (g *RandomGenerator) Generate(ctx context.Context, existing map[string]struct{}) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		code := g.draw()
		if _, taken := existing[code]; !taken {
			return code, nil
		}
	}
}

func (g *RandomGenerator) draw() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = base62Chars[g.rnd.IntN(len(base62Chars))]
	}
	return string(b)
}

// Type returns the generator type
func (g *RandomGenerator) Type() string {
	return TypeRandom
}

// Ensure RandomGenerator implements Generator interface
var _ Generator = (*RandomGenerator)(nil)
