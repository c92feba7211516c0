package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/rosenopt/internal/linesearch"
	"github.com/cwbudde/rosenopt/internal/objective"
	"github.com/cwbudde/rosenopt/internal/opt"
	"github.com/cwbudde/rosenopt/internal/report"
	"github.com/cwbudde/rosenopt/internal/store"
)

var (
	method      string
	x0          []float64
	blocks      int
	tolerance   float64
	maxIter     int
	armijoC     float64
	alphaInit   float64
	rho         float64
	reportEvery int
	saveRun     bool
	traceRun    bool
	warmStart   bool
	warmBound   float64
	popSize     int
	warmIters   int
	seed        int64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single optimization",
	Long: `Minimizes the block Rosenbrock function from --x0 (repeated --blocks times)
and prints progress, timing and the final point.

With --save the run is checkpointed under --data-dir and can be continued
with "rosenopt resume <job-id>". With --trace every reported iteration is
appended to a JSONL trace next to the checkpoint.`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVar(&method, "method", "newton", "Direction strategy: newton, steepest-descent")
	runCmd.Flags().Float64SliceVar(&x0, "x0", []float64{-1.2, 1}, "Initial point (even number of coordinates)")
	runCmd.Flags().IntVar(&blocks, "blocks", 1, "Repeat --x0 this many times")
	runCmd.Flags().Float64Var(&tolerance, "tol", 0, "Gradient norm tolerance (0 = strategy default)")
	runCmd.Flags().IntVar(&maxIter, "max-iter", 0, "Iteration budget (0 = strategy default)")
	runCmd.Flags().Float64Var(&armijoC, "armijo-c", 0.01, "Armijo sufficient decrease constant")
	runCmd.Flags().Float64Var(&alphaInit, "alpha", 1, "Initial line search step")
	runCmd.Flags().Float64Var(&rho, "rho", 0.5, "Line search shrink factor")
	runCmd.Flags().IntVar(&reportEvery, "report-every", 0, "Print every N iterations (0 = strategy default)")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "Checkpoint the run under --data-dir")
	runCmd.Flags().BoolVar(&traceRun, "trace", false, "Write a JSONL trace under --data-dir")
	runCmd.Flags().BoolVar(&warmStart, "warm-start", false, "Pick the initial point with a mayfly search")
	runCmd.Flags().Float64Var(&warmBound, "bound", 2, "Warm start search box [-bound, bound]")
	runCmd.Flags().IntVar(&popSize, "pop", 30, "Warm start population size")
	runCmd.Flags().IntVar(&warmIters, "warm-iters", 100, "Warm start iterations")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Warm start random seed")

	rootCmd.AddCommand(runCmd)
}

// defaultReportEvery is the progress cadence of each strategy.
func defaultReportEvery(s opt.Strategy) int {
	if s == opt.StrategySteepestDescent {
		return 100
	}
	return 10
}

// replicatePoint repeats x k times.
func replicatePoint(x []float64, k int) ([]float64, error) {
	if k < 1 {
		return nil, fmt.Errorf("blocks must be at least 1, got %d", k)
	}
	out := make([]float64, 0, len(x)*k)
	for i := 0; i < k; i++ {
		out = append(out, x...)
	}
	return out, nil
}

// session is one call of optimize, either a fresh run or a resumed one.
type session struct {
	jobID        string
	config       store.JobConfig
	start        []float64
	initialValue float64

	// offset is the number of iterations completed by earlier sessions.
	offset int

	store       store.Store
	trace       bool
	appendTrace bool
	reportEvery int
}

// optimize runs one session, printing progress and the summary to out.
func optimize(ctx context.Context, out io.Writer, fn objective.Function, sess session) (*opt.Result, error) {
	opts := sess.config.Options()
	opts.MaxIterations = sess.config.MaxIterations - sess.offset
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("no iterations left: %d of %d used", sess.offset, sess.config.MaxIterations)
	}

	every := sess.reportEvery
	if every <= 0 {
		every = defaultReportEvery(sess.config.Strategy)
	}

	console := report.NewConsole(out)
	reporters := []opt.Reporter{
		report.Every(every, offsetReporter(sess.offset, console)),
		report.Every(every, report.NewStagnation(report.StagnationConfig{})),
		report.NewLog(nil),
	}

	var checkpointer *report.Checkpointer
	if sess.store != nil {
		checkpointer = report.NewCheckpointer(sess.store, sess.jobID, sess.config, sess.initialValue, sess.offset, every)
		reporters = append(reporters, checkpointer)
	}

	if sess.trace && sess.store != nil {
		tw, err := store.NewTraceWriter(sess.store.JobDir(sess.jobID), sess.appendTrace)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace: %w", err)
		}
		defer tw.Close()
		reporters = append(reporters, report.NewTrace(tw, true, sess.offset))
	}

	opts.Reporter = report.Multi(reporters...)

	timer := report.NewTimer()
	res, err := opt.Optimize(ctx, fn, sess.start, opts)
	elapsed := timer.Report(out, "optimize")
	if err != nil {
		return nil, err
	}

	res.Iterations += sess.offset
	slog.Info("Optimization complete",
		"job_id", sess.jobID,
		"elapsed", elapsed,
		"state", res.State,
		"iterations", res.Iterations,
		"initial_value", sess.initialValue,
		"final_value", res.Value,
		"grad_norm", res.GradNorm,
		"fallbacks", res.Fallbacks,
	)

	if checkpointer != nil {
		// Iterations already include the offset.
		final := *res
		final.Iterations -= sess.offset
		if err := checkpointer.Final(&final); err != nil {
			return nil, fmt.Errorf("failed to save final checkpoint: %w", err)
		}
	}

	report.WriteSummary(out, res)
	return res, nil
}

// offsetReporter shifts iteration numbers so resumed runs continue the count.
func offsetReporter(offset int, r opt.Reporter) opt.Reporter {
	if offset == 0 {
		return r
	}
	return opt.ReporterFunc(func(p opt.Progress) {
		p.Iteration += offset
		r.Report(p)
	})
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	strategy, err := opt.ParseStrategy(method)
	if err != nil {
		return err
	}

	start, err := replicatePoint(x0, blocks)
	if err != nil {
		return err
	}

	config := store.JobConfig{
		Strategy:      strategy,
		InitialPoint:  start,
		Tolerance:     tolerance,
		MaxIterations: maxIter,
		LineSearch: linesearch.Config{
			C:           armijoC,
			InitialStep: alphaInit,
			Shrink:      rho,
		},
	}.WithDefaults()
	if err := config.Options().Validate(); err != nil {
		return err
	}

	fn := objective.NewBlockRosenbrock()

	if warmStart {
		best, _, err := opt.WarmStart(fn, opt.NewMayfly(warmIters, popSize, seed), len(start), warmBound)
		if err != nil {
			return fmt.Errorf("warm start failed: %w", err)
		}
		start = best
		config.InitialPoint = best
	}

	initialValue, err := fn.Value(start)
	if err != nil {
		return err
	}

	sess := session{
		config:       config,
		start:        start,
		initialValue: initialValue,
		trace:        traceRun,
		reportEvery:  reportEvery,
	}

	if saveRun || traceRun {
		checkpointStore, err := store.NewFSStore(dataDir)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint store: %w", err)
		}
		sess.store = checkpointStore
		sess.jobID = uuid.New().String()
	}

	slog.Info("Starting optimization",
		"job_id", sess.jobID,
		"strategy", config.Strategy,
		"dim", config.Dim(),
		"tolerance", config.Tolerance,
		"max_iterations", config.MaxIterations,
		"initial_value", initialValue,
	)

	ctx, stop := signalContext()
	defer stop()

	out := cmd.OutOrStdout()
	_, err = optimize(ctx, out, fn, sess)
	if errors.Is(err, context.Canceled) {
		if sess.jobID != "" {
			fmt.Fprintf(out, "Interrupted. Resume with: rosenopt resume %s\n", sess.jobID)
		}
		return err
	}
	if err != nil {
		return err
	}

	if sess.jobID != "" {
		fmt.Fprintf(out, "Job ID: %s\n", sess.jobID)
	}
	return nil
}
