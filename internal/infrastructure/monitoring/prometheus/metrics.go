package prometheus

import (
	"time"

	"github.com/turtacn/molfilter/pkg/errors"
)

// Record outcomes used as the "outcome" label of records_total.
const (
	OutcomeRead         = "read"
	OutcomePassed       = "passed"
	OutcomeFailed       = "failed"
	OutcomeSkippedParse = "skipped_parse"
	OutcomeSkippedEval  = "skipped_eval"
)

// Run statuses used as the "status" label of run_info.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// FilterMetrics holds the metrics of one filter run.
type FilterMetrics struct {
	RecordsTotal       CounterVec
	EvaluationDuration HistogramVec
	RecordErrorsTotal  CounterVec
	RunDuration        GaugeVec
	RunInfo            GaugeVec
	LastRunTimestamp   GaugeVec
	Workers            GaugeVec
}

// NewFilterMetrics registers the filter metrics on collector.
func NewFilterMetrics(collector MetricsCollector) *FilterMetrics {
	return &FilterMetrics{
		RecordsTotal: collector.RegisterCounter("records_total",
			"Records seen by the filter, by outcome.", "outcome"),
		EvaluationDuration: collector.RegisterHistogram("evaluation_duration_seconds",
			"Time to parse and evaluate one record.", nil, "predicate"),
		RecordErrorsTotal: collector.RegisterCounter("record_errors_total",
			"Record-level errors by error code.", "code"),
		RunDuration: collector.RegisterGauge("run_duration_seconds",
			"Wall time of the last run."),
		RunInfo: collector.RegisterGauge("run_info",
			"Set to 1 for the status of the last run.", "status"),
		LastRunTimestamp: collector.RegisterGauge("last_run_timestamp_seconds",
			"Unix time the last run finished."),
		Workers: collector.RegisterGauge("workers",
			"Parallel evaluators used by the last run."),
	}
}

// ObserveRecord counts one record with the given outcome.  Evaluation time
// is recorded for every record that reached the predicate.
func (m *FilterMetrics) ObserveRecord(predicate, outcome string, d time.Duration) {
	m.RecordsTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRead && outcome != OutcomeSkippedParse {
		m.EvaluationDuration.WithLabelValues(predicate).Observe(d.Seconds())
	}
}

// ObserveRecordError counts a record-level error by its code.
func (m *FilterMetrics) ObserveRecordError(err error) {
	m.RecordErrorsTotal.WithLabelValues(errors.GetCode(err).String()).Inc()
}

// ObserveRun records the end of a run.
func (m *FilterMetrics) ObserveRun(elapsed time.Duration, workers int, runErr error) {
	m.RunDuration.WithLabelValues().Set(elapsed.Seconds())
	m.Workers.WithLabelValues().Set(float64(workers))
	m.RunInfo.WithLabelValues(RunStatus(runErr)).Set(1)
	m.LastRunTimestamp.WithLabelValues().SetToCurrentTime()
}

// RunStatus classifies a run error.
func RunStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.IsCode(err, errors.CodeCanceled):
		return StatusCanceled
	}
	return StatusFailed
}
