// Package names assigns display names to new chat participants from a static pool.
package names

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

const (
	// FallbackPrefix prefixes synthesized names once the pool has no free candidate.
	FallbackPrefix = "Guest"

	firstSuffix    = 2
	suffixBound    = 100
	fallbackMin    = 1000
	fallbackSpread = 9000
)

// Option customizes a Pool.
type Option func(*Pool)

// WithIntN replaces the random source; intN must return a value in [0, n).
func WithIntN(intN func(n int) int) Option {
	return func(p *Pool) {
		if intN != nil {
			p.intN = intN
		}
	}
}

// Pool holds the ordered base names. It is read-only after construction and safe
// for concurrent use.
type Pool struct {
	bases []string
	intN  func(n int) int
}

// NewPool constructs a pool from in-memory base names. Blank entries are skipped.
func NewPool(bases []string, opts ...Option) *Pool {
	cleaned := make([]string, 0, len(bases))
	for _, base := range bases {
		if trimmed := strings.TrimSpace(base); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	pool := &Pool{bases: cleaned, intN: rand.IntN}
	for _, opt := range opts {
		opt(pool)
	}
	return pool
}

// Load reads one base name per line from a UTF-8 file.
func Load(path string, opts ...Option) (*Pool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("names: open pool: %w", err)
	}
	defer file.Close()

	var bases []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		bases = append(bases, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("names: read pool: %w", err)
	}
	return NewPool(bases, opts...), nil
}

// Size reports the number of base names.
func (p *Pool) Size() int {
	return len(p.bases)
}

// Assign picks a name not present in live. A base name that is taken contributes
// its first free numeric variant (name2 through name99) instead. When nothing is
// free it synthesizes a guest name, which is unlikely but not guaranteed to be unused.
func (p *Pool) Assign(live map[string]struct{}) string {
	candidates := make([]string, 0, len(p.bases))
	for _, base := range p.bases {
		if _, taken := live[base]; !taken {
			candidates = append(candidates, base)
			continue
		}
		if variant, ok := freeVariant(base, live); ok {
			candidates = append(candidates, variant)
		}
	}

	if len(candidates) == 0 {
		return fmt.Sprintf("%s%d", FallbackPrefix, fallbackMin+p.intN(fallbackSpread))
	}
	return candidates[p.intN(len(candidates))]
}

func freeVariant(base string, live map[string]struct{}) (string, bool) {
	for suffix := firstSuffix; suffix < suffixBound; suffix++ {
		variant := fmt.Sprintf("%s%d", base, suffix)
		if _, taken := live[variant]; !taken {
			return variant, true
		}
	}
	return "", false
}
