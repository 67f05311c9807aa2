package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kittclouds/scrollforge/internal/rng"
)

// ParseDice parses a "NdM+K" / "NdM-K" / "NdM" dice notation string
// into its count, sides, and flat modifier. This is the single dice
// grammar shared by pkg/engine's DiceRoll attribute command and the
// stable_dice helper, rather than two separate parsers.
func ParseDice(spec string) (count, sides, mod int, err error) {
	spec = strings.TrimSpace(spec)
	dIdx := strings.IndexByte(spec, 'd')
	if dIdx < 0 {
		dIdx = strings.IndexByte(spec, 'D')
	}
	if dIdx < 0 {
		return 0, 0, 0, fmt.Errorf("helpers: invalid dice notation %q", spec)
	}
	countPart := spec[:dIdx]
	rest := spec[dIdx+1:]

	count = 1
	if countPart != "" {
		count, err = strconv.Atoi(countPart)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("helpers: invalid dice count in %q: %w", spec, err)
		}
	}

	sidesPart := rest
	modSign := 1
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		sidesPart = rest[:i]
		rest = rest[i+1:]
		mod, err = strconv.Atoi(rest)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("helpers: invalid dice modifier in %q: %w", spec, err)
		}
	} else if i := strings.IndexByte(rest, '-'); i >= 0 {
		sidesPart = rest[:i]
		rest = rest[i+1:]
		modSign = -1
		mod, err = strconv.Atoi(rest)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("helpers: invalid dice modifier in %q: %w", spec, err)
		}
		mod *= modSign
	}

	sides, err = strconv.Atoi(strings.TrimSpace(sidesPart))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("helpers: invalid dice sides in %q: %w", spec, err)
	}
	return count, sides, mod, nil
}

// RollDice evaluates spec using z, summing count independent dN rolls
// plus the flat modifier.
func RollDice(z *rng.Randomizer, spec string) (int, error) {
	count, sides, mod, err := ParseDice(spec)
	if err != nil {
		return 0, err
	}
	total := mod
	for i := 0; i < count; i++ {
		total += z.InRange(1, sides)
	}
	return total, nil
}

// StableDice evaluates spec deterministically for (seedKey, index): the
// same pair always produces the same roll across re-renders, matching
// renderer_env.rs's func_stable_dice (DefaultHasher seed + ChaCha8Rng)
// using hash/fnv + math/rand/v2 instead.
func StableDice(seedKey string, index int, spec string) (int, error) {
	seed := rng.StableSeed(seedKey, index)
	return RollDice(rng.StableSource(seed), spec)
}
