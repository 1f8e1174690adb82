package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/hmalloc/alloc"
	"github.com/joshuapare/hmalloc/internal/logger"
	"github.com/joshuapare/hmalloc/pkg/hmalloc"
)

var (
	runStrategy    string
	runWorkload    string
	runWorkers     int
	runOps         int
	runMaxSize     int
	runSeed        uint64
	runRefillPages int
	runValidate    bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runStrategy, "strategy", "default", "Allocation strategy: bucket, list or default")
	cmd.Flags().StringVar(&runWorkload, "workload", "all", "Comma separated workloads: list, vector, random or all")
	cmd.Flags().IntVar(&runWorkers, "workers", 4, "Number of concurrent workers")
	cmd.Flags().IntVar(&runOps, "ops", 10000, "Operations per workload per worker")
	cmd.Flags().IntVar(&runMaxSize, "max-size", 8192, "Largest request of the random workload in bytes")
	cmd.Flags().Uint64Var(&runSeed, "seed", 1, "Seed of the random workload (worker i uses seed+i)")
	cmd.Flags().IntVar(&runRefillPages, "refill-pages", 0, "Pages mapped per bucket refill (0 keeps the default)")
	cmd.Flags().BoolVar(&runValidate, "validate", false, "Check free-list invariants after every workload")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run synthetic workloads and print allocator statistics",
		Long: `The run command drives linked-list churn, a vector grown with realloc, and a
random mix of sizes across concurrent workers, then prints the page and chunk
counters of the allocator.

Example:
  hmallocctl run --strategy list --workers 8
  hmallocctl run --workload random --max-size 20000 --json
  HMALLOC_WORKERS=2 hmallocctl run --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := runOptionsFromFlags()
			if err != nil {
				return err
			}
			return runRun(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	return cmd
}

// runOptions is the validated form of the run flags.
type runOptions struct {
	Strategy    hmalloc.Strategy
	Workloads   []string
	Workers     int
	Ops         int
	MaxSize     int
	Seed        uint64
	RefillPages int
	Validate    bool
}

// RunReport is the machine readable result of a run.
type RunReport struct {
	Strategy  string      `json:"strategy"`
	Workloads []string    `json:"workloads"`
	Workers   int         `json:"workers"`
	Ops       int         `json:"ops"`
	Elapsed   string      `json:"elapsed"`
	Stats     alloc.Stats `json:"stats"`
}

func runOptionsFromFlags() (runOptions, error) {
	strategy, err := hmalloc.ParseStrategy(runStrategy)
	if err != nil {
		return runOptions{}, err
	}
	names, err := parseWorkloads(runWorkload)
	if err != nil {
		return runOptions{}, err
	}
	switch {
	case runWorkers < 1:
		return runOptions{}, fmt.Errorf("--workers must be >= 1, got %d", runWorkers)
	case runOps < 0:
		return runOptions{}, fmt.Errorf("--ops must be >= 0, got %d", runOps)
	case runMaxSize < 0:
		return runOptions{}, fmt.Errorf("--max-size must be >= 0, got %d", runMaxSize)
	case runRefillPages < 0:
		return runOptions{}, fmt.Errorf("--refill-pages must be >= 0, got %d", runRefillPages)
	}
	return runOptions{
		Strategy:    strategy,
		Workloads:   names,
		Workers:     runWorkers,
		Ops:         runOps,
		MaxSize:     runMaxSize,
		Seed:        runSeed,
		RefillPages: runRefillPages,
		Validate:    runValidate,
	}, nil
}

func runRun(ctx context.Context, out io.Writer, opts runOptions) error {
	report, err := runWorkloads(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out, report)
	}
	if quiet {
		return nil
	}
	printVerbose(out, "Ran %v on %d worker(s), %d ops each, in %s\n",
		report.Workloads, report.Workers, report.Ops, report.Elapsed)
	return alloc.WriteStats(out, report.Strategy, report.Stats)
}

// runWorkloads builds a heap and runs every selected workload on each worker
// concurrently. The first failing worker cancels the others.
func runWorkloads(ctx context.Context, opts runOptions) (*RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := hmalloc.New(&hmalloc.Options{
		Strategy:    opts.Strategy,
		RefillPages: opts.RefillPages,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("run started",
		"strategy", h.Strategy().String(), "workloads", opts.Workloads, "workers", opts.Workers, "ops", opts.Ops)
	start := time.Now()

	allocators, err := collectWorkers(opts.Workers, h.Worker)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, a := range allocators {
		cfg := workloadConfig{Ops: opts.Ops, MaxSize: opts.MaxSize, Seed: opts.Seed + uint64(i)}

		g.Go(func() error {
			for _, name := range opts.Workloads {
				if err := workloads[name](ctx, a, cfg); err != nil {
					return fmt.Errorf("worker %d: %s workload: %w", i, name, err)
				}
				if !opts.Validate {
					continue
				}
				if err := validate(a); err != nil {
					return fmt.Errorf("worker %d: after %s workload: %w", i, name, err)
				}
			}
			logger.Debug("worker finished", "worker", i, "stats", a.Stats())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("run failed", "err", err)
		return nil, err
	}

	report := &RunReport{
		Strategy:  h.Strategy().String(),
		Workloads: opts.Workloads,
		Workers:   opts.Workers,
		Ops:       opts.Ops,
		Elapsed:   time.Since(start).Round(time.Microsecond).String(),
		Stats:     h.Stats(),
	}
	if report.Stats.InUse() != 0 {
		logger.Warn("chunks leaked", "in_use", report.Stats.InUse())
		return report, fmt.Errorf("%d chunk(s) still allocated after the run", report.Stats.InUse())
	}
	logger.Info("run finished", "elapsed", report.Elapsed, "pages_mapped", report.Stats.PagesMapped)
	return report, nil
}

// collectWorkers builds all n allocators before any workload starts, so a
// failure leaves nothing running against the heap.
func collectWorkers(n int, next func() (alloc.Allocator, error)) ([]alloc.Allocator, error) {
	out := make([]alloc.Allocator, n)
	for i := range out {
		a, err := next()
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		out[i] = a
	}
	return out, nil
}

// validate runs the allocator's own invariant check when it has one.
func validate(a alloc.Allocator) error {
	v, ok := a.(interface{ Validate() error })
	if !ok {
		return errors.New("allocator does not support validation")
	}
	return v.Validate()
}
