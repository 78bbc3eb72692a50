package utils

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/Pallinder/go-randomdata"
)

// NameGenerator hands out unique human readable names for runs and for
// loaded entities that did not carry one in the source file.
type NameGenerator struct {
	used map[string]struct{}
}

func NewNameGenerator(seed int64) *NameGenerator {
	randomdata.CustomRand(rand.New(rand.NewSource(seed)))
	return &NameGenerator{used: make(map[string]struct{})}
}

func (g *NameGenerator) Unique(prefix string) string {
	for {
		name := strings.ToLower(randomdata.SillyName())
		if prefix != "" {
			name = prefix + "-" + name
		}
		if _, exists := g.used[name]; !exists {
			g.used[name] = struct{}{}
			return name
		}
	}
}

// UniqueSuffixed appends a numeric suffix instead of a silly name, used
// when the caller wants names derived from an existing one.
func (g *NameGenerator) UniqueSuffixed(base string) string {
	if _, exists := g.used[base]; !exists {
		g.used[base] = struct{}{}
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s.%03d", base, i)
		if _, exists := g.used[name]; !exists {
			g.used[name] = struct{}{}
			return name
		}
	}
}
