package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/turtacn/molfilter/internal/application/screening"
	"github.com/turtacn/molfilter/internal/config"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molfilter/pkg/errors"
)

// pushTimeout bounds the Pushgateway request made after a run.
const pushTimeout = 10 * time.Second

// RunOptions describes one filter run.
type RunOptions struct {
	Input       string
	InputFormat string
	Output      string
	Workers     int
	Predicate   screening.Predicate
	// NamesOnly writes record names instead of records.
	NamesOnly bool
	// BestPose keeps the lowest-energy passing pose per ligand.
	BestPose bool
}

// runFilter streams opts.Input through the predicate into opts.Output and
// reports the run.
func runFilter(ctx context.Context, cc *CLIContext, opts RunOptions) error {
	start := time.Now()
	collector, fm, err := newRunMetrics(cc)
	if err != nil {
		return err
	}

	stats, err := streamRecords(ctx, cc, opts, fm)
	fm.ObserveRun(time.Since(start), opts.Workers, err)
	exportMetrics(cc, collector)

	if err != nil {
		code := errors.GetCode(err)
		cc.Logger.Error("run failed", append(statsFields(stats),
			logging.String("code", code.String()),
			logging.String("module", errors.ModuleForCode(code)),
			logging.Err(err))...)
		return err
	}
	cc.Logger.Info("run complete", statsFields(stats)...)
	printSummary(cc, stats)
	return nil
}

func streamRecords(ctx context.Context, cc *CLIContext, opts RunOptions, rec screening.Recorder) (screening.Stats, error) {
	var stats screening.Stats

	var format chemio.Format
	if opts.InputFormat != "" {
		f, err := chemio.ParseFormat(opts.InputFormat)
		if err != nil {
			return stats, err
		}
		format = f
	}

	reader, err := chemio.Open(ctx, opts.Input, chemio.OpenOptions{Format: format, Store: cc.Store})
	if err != nil {
		return stats, err
	}
	defer reader.Close()

	create := chemio.CreateOptions{
		Compression: chemio.OutputCompression(opts.Output, reader.Compression()),
		Store:       cc.Store,
	}
	if !opts.NamesOnly {
		create.Header = reader.Header()
	}
	writer, err := chemio.Create(ctx, opts.Output, create)
	if err != nil {
		return stats, err
	}

	var sink screening.Sink = writer
	if opts.NamesOnly {
		sink = screening.NewNamesOnlySink(writer)
	}
	var best *screening.BestPoseSink
	if opts.BestPose {
		best = screening.NewBestPoseSink(sink)
		sink = best
	}

	cc.Logger.Info("run started",
		logging.String("input", opts.Input),
		logging.String("output", opts.Output),
		logging.String("format", string(reader.Format())),
		logging.String("predicate", opts.Predicate.Name()),
		logging.Int("workers", opts.Workers))

	filter := screening.NewFilter(opts.Predicate, screening.Options{
		Workers:  opts.Workers,
		Logger:   cc.Logger,
		Recorder: rec,
	})
	stats, runErr := filter.Run(ctx, reader, sink)

	// The sink is closed even after a failure so that the passing records
	// of the processed prefix reach the output.
	closeErr := sink.Close()
	if best != nil && best.Dropped() > 0 {
		cc.Logger.Info("kept best pose per ligand", logging.Int("dropped", best.Dropped()))
	}
	if runErr != nil {
		return stats, runErr
	}
	return stats, closeErr
}

// newRunMetrics registers the run metrics on a private registry labelled
// with the tool and run ID.
func newRunMetrics(cc *CLIContext) (prometheus.MetricsCollector, *prometheus.FilterMetrics, error) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:   "molfilter",
		ConstLabels: map[string]string{"tool": cc.Tool, "run_id": cc.RunID},
	}, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	return collector, prometheus.NewFilterMetrics(collector), nil
}

// exportMetrics writes the textfile and pushes to the Pushgateway when
// configured.  Export failures are logged and do not change the exit status.
func exportMetrics(cc *CLIContext, collector prometheus.MetricsCollector) {
	m := cc.Config.Metrics
	if m.Textfile != "" {
		if err := collector.WriteTextfile(m.Textfile); err != nil {
			cc.Logger.Warn("metrics textfile not written", logging.Err(err))
		}
	}
	if m.PushgatewayURL != "" {
		job := m.Job
		if job == "" {
			job = config.DefaultMetricsJob
		}
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := collector.Push(ctx, m.PushgatewayURL, job); err != nil {
			cc.Logger.Warn("metrics push failed", logging.Err(err))
		}
	}
}

func statsFields(s screening.Stats) []logging.Field {
	return []logging.Field{
		logging.Int("read", s.Read),
		logging.Int("passed", s.Passed),
		logging.Int("failed", s.Failed),
		logging.Int("skipped_parse", s.SkippedParse),
		logging.Int("skipped_eval", s.SkippedEval),
		logging.Duration("elapsed", s.Elapsed),
	}
}

// printSummary prints a one-line run summary to stderr.
func printSummary(cc *CLIContext, s screening.Stats) {
	pass := color.New(color.FgGreen, color.Bold)
	skip := color.New(color.FgYellow)
	if cc.NoColor {
		pass.DisableColor()
		skip.DisableColor()
	}
	skipped := fmt.Sprintf("%d skipped", s.Skipped())
	if s.Skipped() > 0 {
		skipped = skip.Sprint(skipped)
	}
	fmt.Fprintf(cc.Stderr, "%s: %d read, %s, %d failed, %s in %s\n",
		cc.Tool, s.Read, pass.Sprintf("%d passed", s.Passed), s.Failed, skipped,
		s.Elapsed.Round(time.Millisecond))
}

// checkWorkers validates the worker count.
func checkWorkers(n int) error {
	if n < 1 {
		return errors.Newf(errors.CodeInvalidParam, "workers must be >= 1, got %d", n)
	}
	return nil
}
