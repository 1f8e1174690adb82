//go:build !hmalloc_list

package hmalloc

// DefaultStrategy is the backend used when no strategy is requested.
// Build with -tags hmalloc_list to switch it to StrategyList.
const DefaultStrategy = StrategyBucket
