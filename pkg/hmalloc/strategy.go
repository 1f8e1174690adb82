package hmalloc

import (
	"fmt"
	"strings"
)

// Strategy selects the allocation backend behind a Heap.
type Strategy int

const (
	// StrategyDefault resolves to DefaultStrategy, chosen at build time.
	StrategyDefault Strategy = iota

	// StrategyBucket uses per-worker segregated power-of-two buckets.
	StrategyBucket

	// StrategyList uses one address-ordered first-fit list with coalescing.
	StrategyList
)

// String returns the name accepted by ParseStrategy.
func (s Strategy) String() string {
	switch s {
	case StrategyDefault:
		return "default"
	case StrategyBucket:
		return "bucket"
	case StrategyList:
		return "list"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name to its value. Names are case-insensitive;
// "opt" and "hmalloc" are accepted as aliases for bucket and list.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return StrategyDefault, nil
	case "bucket", "opt":
		return StrategyBucket, nil
	case "list", "hmalloc":
		return StrategyList, nil
	default:
		return StrategyDefault, fmt.Errorf("hmalloc: unknown strategy %q (want bucket or list)", name)
	}
}

// resolve replaces StrategyDefault with the build-time default.
func (s Strategy) resolve() Strategy {
	if s == StrategyDefault {
		return DefaultStrategy
	}
	return s
}
