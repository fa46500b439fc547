// Package screening implements the streaming record filter shared by the
// pattern, interaction and binding-mode tools: records are read one at a
// time, parsed, handed to a predicate, and the passing ones are written out
// byte for byte in input order.
package screening

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/molfilter/internal/domain/molecule"
	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	metrics "github.com/turtacn/molfilter/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molfilter/pkg/errors"
)

// Source yields library records in order.  Next returns io.EOF after the
// last record; any other error ends the run.
type Source interface {
	Next() (chemio.Record, error)
}

// Sink receives passing records.
type Sink interface {
	Write(rec chemio.Record) error
	Close() error
}

// Predicate decides whether a parsed record passes.  An error classified by
// errors.IsRecordLevel skips the record; any other error ends the run.
// Implementations are shared by all workers and must be safe for concurrent
// use.
type Predicate interface {
	Name() string
	Evaluate(ctx context.Context, mol *molecule.Molecule, rec chemio.Record) (Outcome, error)
}

// ParseOptioner is implemented by predicates that need non-default parsing,
// e.g. hydrogens kept as graph atoms.
type ParseOptioner interface {
	ParseOptions() chemio.ParseOptions
}

// Outcome is the verdict for one record.
type Outcome struct {
	Pass bool
	// RMSD is set by the binding-mode predicate.
	RMSD *float64
	// Matches is the number of pattern mappings scored.
	Matches int
	// Interactions is the number of perceived protein–ligand contacts.
	Interactions int
	// Reason explains a failing verdict.
	Reason string
}

// Stats summarises a run.
type Stats struct {
	Read         int
	Parsed       int
	Passed       int
	Failed       int
	SkippedParse int
	SkippedEval  int
	Elapsed      time.Duration
}

// Skipped returns the number of records skipped with a warning.
func (s Stats) Skipped() int { return s.SkippedParse + s.SkippedEval }

// Recorder receives per-record observations.  *metrics.FilterMetrics
// satisfies it.
type Recorder interface {
	ObserveRecord(predicate, outcome string, d time.Duration)
	ObserveRecordError(err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRecord(string, string, time.Duration) {}
func (nopRecorder) ObserveRecordError(error)                    {}

// Options configures a Filter.
type Options struct {
	// Workers is the number of parallel evaluators.  Values below 2 run
	// sequentially.  Output is identical either way.
	Workers  int
	Logger   logging.Logger
	Recorder Recorder
}

// Filter runs a predicate over a record stream.
type Filter struct {
	predicate Predicate
	parse     chemio.ParseOptions
	workers   int
	logger    logging.Logger
	recorder  Recorder
}

// NewFilter creates a filter around predicate.
func NewFilter(predicate Predicate, opts Options) *Filter {
	f := &Filter{
		predicate: predicate,
		workers:   opts.Workers,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
	}
	if f.workers < 1 {
		f.workers = 1
	}
	if f.logger == nil {
		f.logger = logging.NewNopLogger()
	}
	if f.recorder == nil {
		f.recorder = nopRecorder{}
	}
	if po, ok := predicate.(ParseOptioner); ok {
		f.parse = po.ParseOptions()
	}
	return f
}

// result is one evaluated record.
type result struct {
	seq      int
	rec      chemio.Record
	outcome  Outcome
	err      error
	parseErr bool
	elapsed  time.Duration
}

// Run streams src through the predicate into sink.  The sink is not closed.
// On cancellation the sink holds the passing records of an in-order prefix
// of the input and a CodeCanceled error is returned.
func (f *Filter) Run(ctx context.Context, src Source, sink Sink) (Stats, error) {
	start := time.Now()
	var (
		stats Stats
		err   error
	)
	if f.workers > 1 {
		err = f.runParallel(ctx, src, sink, &stats)
	} else {
		err = f.runSequential(ctx, src, sink, &stats)
	}
	stats.Elapsed = time.Since(start)
	return stats, err
}

func (f *Filter) runSequential(ctx context.Context, src Source, sink Sink, stats *Stats) error {
	for seq := 0; ; seq++ {
		if ctx.Err() != nil {
			return canceled(ctx)
		}
		rec, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		f.recorder.ObserveRecord(f.predicate.Name(), metrics.OutcomeRead, 0)
		if err := f.emit(f.evaluate(ctx, seq, rec), sink, stats); err != nil {
			return err
		}
	}
}

// runParallel evaluates records on a worker pool and re-sequences results
// before they reach the sink.  At most 4×workers records are in flight.
func (f *Filter) runParallel(parent context.Context, src Source, sink Sink, stats *Stats) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	type job struct {
		seq int
		rec chemio.Record
	}
	jobs := make(chan job)
	results := make(chan result, f.workers)
	window := make(chan struct{}, 4*f.workers)

	g.Go(func() error {
		defer close(jobs)
		for seq := 0; ; seq++ {
			select {
			case window <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			rec, err := src.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			f.recorder.ObserveRecord(f.predicate.Name(), metrics.OutcomeRead, 0)
			select {
			case jobs <- job{seq: seq, rec: rec}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				r := f.evaluate(gctx, j.seq, j.rec)
				select {
				case results <- r:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		runErr  error
		next    int
		pending = make(map[int]result)
	)
	for r := range results {
		if runErr != nil {
			continue
		}
		pending[r.seq] = r
		for {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			<-window
			if err := f.emit(p, sink, stats); err != nil {
				runErr = err
				cancel()
				break
			}
		}
	}

	gerr := g.Wait()
	switch {
	case runErr != nil:
		return runErr
	case parent.Err() != nil:
		return canceled(parent)
	case gerr != nil:
		return gerr
	}
	return nil
}

// evaluate parses and judges one record.
func (f *Filter) evaluate(ctx context.Context, seq int, rec chemio.Record) result {
	start := time.Now()
	r := result{seq: seq, rec: rec}
	mol, err := chemio.Parse(rec, f.parse)
	if err != nil {
		r.err, r.parseErr = err, true
		r.elapsed = time.Since(start)
		return r
	}
	r.outcome, r.err = f.predicate.Evaluate(ctx, mol, rec)
	r.elapsed = time.Since(start)
	return r
}

// emit accounts for a result and writes the record if it passed.
func (f *Filter) emit(r result, sink Sink, stats *Stats) error {
	stats.Read++
	name := f.predicate.Name()
	if r.parseErr {
		stats.SkippedParse++
		f.recorder.ObserveRecord(name, metrics.OutcomeSkippedParse, r.elapsed)
		f.recorder.ObserveRecordError(r.err)
		f.logger.Warn("skipping unparseable record",
			logging.Int("index", r.rec.Index),
			logging.String("name", r.rec.Name),
			logging.Err(r.err))
		return nil
	}
	stats.Parsed++

	if r.err != nil {
		if !errors.IsRecordLevel(r.err) {
			return r.err
		}
		stats.SkippedEval++
		f.recorder.ObserveRecord(name, metrics.OutcomeSkippedEval, r.elapsed)
		f.recorder.ObserveRecordError(r.err)
		f.logger.Warn("skipping record",
			logging.Int("index", r.rec.Index),
			logging.String("name", r.rec.Name),
			logging.Err(r.err))
		return nil
	}

	if !r.outcome.Pass {
		stats.Failed++
		f.recorder.ObserveRecord(name, metrics.OutcomeFailed, r.elapsed)
		f.logger.Debug("record rejected",
			logging.Int("index", r.rec.Index),
			logging.String("name", r.rec.Name),
			logging.String("reason", r.outcome.Reason))
		return nil
	}

	if err := sink.Write(r.rec); err != nil {
		return err
	}
	stats.Passed++
	f.recorder.ObserveRecord(name, metrics.OutcomePassed, r.elapsed)
	fields := []logging.Field{
		logging.Int("index", r.rec.Index),
		logging.String("name", r.rec.Name),
	}
	if r.outcome.RMSD != nil {
		fields = append(fields, logging.Float64("rmsd", *r.outcome.RMSD))
	}
	f.logger.Debug("record passed", fields...)
	return nil
}

var errCanceled = errors.New(errors.CodeCanceled, errors.DefaultMessageForCode(errors.CodeCanceled))

func canceled(ctx context.Context) error {
	return errCanceled.WithCause(ctx.Err())
}
