//go:build hmalloc_list

package hmalloc

// DefaultStrategy is the backend used when no strategy is requested.
const DefaultStrategy = StrategyList
