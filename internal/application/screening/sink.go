package screening

import (
	"math"
	"strconv"
	"strings"

	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
)

// BestPoseSink keeps, for every run of consecutive passing records sharing a
// name, only the record with the lowest DOCK Total Energy.  Records without
// a parsable energy rank last; ties keep the earlier record.  The output is
// still a subsequence of the input.
type BestPoseSink struct {
	next    Sink
	held    *chemio.Record
	energy  float64
	dropped int
}

// NewBestPoseSink wraps next.
func NewBestPoseSink(next Sink) *BestPoseSink {
	return &BestPoseSink{next: next}
}

func (s *BestPoseSink) Write(rec chemio.Record) error {
	e := poseEnergy(rec)
	if s.held != nil && s.held.Name == rec.Name {
		if e < s.energy {
			s.held, s.energy = &rec, e
		}
		s.dropped++
		return nil
	}
	if err := s.flush(); err != nil {
		return err
	}
	s.held, s.energy = &rec, e
	return nil
}

// Close writes the pending pose and closes the wrapped sink.
func (s *BestPoseSink) Close() error {
	if err := s.flush(); err != nil {
		_ = s.next.Close()
		return err
	}
	return s.next.Close()
}

// Dropped returns the number of passing poses that lost to a better pose of
// the same ligand.
func (s *BestPoseSink) Dropped() int { return s.dropped }

func (s *BestPoseSink) flush() error {
	if s.held == nil {
		return nil
	}
	rec := *s.held
	s.held = nil
	return s.next.Write(rec)
}

func poseEnergy(rec chemio.Record) float64 {
	v := strings.TrimSpace(rec.Prop(chemio.PropTotalEnergy))
	if v == "" {
		return math.Inf(1)
	}
	e, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(e) {
		return math.Inf(1)
	}
	return e
}

// LineWriter accepts text lines.  *chemio.Writer satisfies it.
type LineWriter interface {
	WriteLine(s string) error
	Close() error
}

// NamesOnlySink writes the name of every passing record, one per line.
type NamesOnlySink struct {
	w LineWriter
}

// NewNamesOnlySink wraps w.
func NewNamesOnlySink(w LineWriter) *NamesOnlySink {
	return &NamesOnlySink{w: w}
}

func (s *NamesOnlySink) Write(rec chemio.Record) error {
	return s.w.WriteLine(rec.Name)
}

func (s *NamesOnlySink) Close() error { return s.w.Close() }
