// Package namegen generates themed character and ship names (spec.md
// section 3's CharacterRecord naming rule, promoted to its own package
// per SPEC_FULL.md section 4.12 since both the bot runtime and the
// swarm manager call it and the used-name set is manager-guarded).
package namegen

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/tw2kbot/tw2kbot/internal/config"
)

var (
	prefixes = []string{"Zar", "Kel", "Tor", "Vex", "Ryn", "Xan", "Mor", "Cal", "Dren", "Sel"}
	middles  = []string{"an", "or", "ith", "ael", "ux", "en", "ira", "ost", "yn", "ak"}
	suffixes = []string{"ov", "ex", "is", "ar", "on", "eth", "ius", "ax", "id", "orn"}
)

// Generator produces collision-avoiding themed names under a
// configured complexity and optional seed (spec.md section 6,
// `character.name_complexity` / `name_seed`).
type Generator struct {
	rng *rand.Rand

	mu   sync.Mutex
	used map[string]struct{}
}

// New returns a Generator seeded per config. A nil NameSeed falls back
// to a process-random seed (non-deterministic output, which is the
// correct default absent an explicit reproducibility request).
func New(cfg config.CharacterConfig) *Generator {
	var src rand.Source
	if cfg.NameSeed != nil {
		seed := uint64(*cfg.NameSeed)
		src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{
		rng:  rand.New(src),
		used: make(map[string]struct{}),
	}
}

// Generate produces a name matching complexity, retrying against the
// manager-guarded used-name set until a fresh one is found. Once
// maxComposeAttempts draws have all been taken (the themed pool for that
// complexity is used up), a numeric serial is appended to each further
// draw so an unused name is still found.
func (g *Generator) Generate(complexity config.NameComplexity) string {
	const maxComposeAttempts = 64
	g.mu.Lock()
	defer g.mu.Unlock()
	for attempt := 0; ; attempt++ {
		name := g.compose(complexity)
		if attempt >= maxComposeAttempts {
			name = fmt.Sprintf("%s-%d", name, g.rng.IntN(9000)+1000)
		}
		if _, taken := g.used[name]; !taken {
			g.used[name] = struct{}{}
			return name
		}
	}
}

// Release frees a previously generated name back into the pool, used
// when a character is retired and its name is reclaimed (spec.md
// section 5's manager-guarded used-name set).
func (g *Generator) Release(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.used, name)
}

func (g *Generator) compose(complexity config.NameComplexity) string {
	p := prefixes[g.rng.IntN(len(prefixes))]
	switch complexity {
	case config.NameComplexitySimple:
		return p
	case config.NameComplexityMedium:
		return p + middles[g.rng.IntN(len(middles))]
	case config.NameComplexityComplex:
		return p + middles[g.rng.IntN(len(middles))] + suffixes[g.rng.IntN(len(suffixes))]
	case config.NameComplexityNumbered:
		return fmt.Sprintf("%s%s-%d", p, suffixes[g.rng.IntN(len(suffixes))], g.rng.IntN(900)+100)
	default:
		return p + middles[g.rng.IntN(len(middles))]
	}
}

// ShipName generates a ship name, appending a trailing serial number
// when ship_names_with_numbers is set (spec.md section 6).
func (g *Generator) ShipName(withNumbers bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	base := middles[g.rng.IntN(len(middles))] + suffixes[g.rng.IntN(len(suffixes))]
	if !withNumbers {
		return base
	}
	return fmt.Sprintf("%s-%d", base, g.rng.IntN(9000)+1000)
}
