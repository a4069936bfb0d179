// Package history holds the session's in-memory series of classified
// readings, with per-column min/peak/avg statistics for the dashboard.
package history

import (
	"math"
	"time"

	"github.com/luki/classmon/internal/sensor"
)

// Point is a single chart sample.
type Point struct {
	Value float64
	Time  time.Time
}

// Column selects one numeric field of a LogRecord.
type Column int

const (
	TempIn Column = iota
	TempOut
	HumIn
	LuxIn
)

// Value extracts the column from a record.
func (c Column) Value(r sensor.LogRecord) float64 {
	switch c {
	case TempIn:
		return r.TempIn
	case TempOut:
		return r.TempOut
	case HumIn:
		return r.HumIn
	default:
		return float64(r.LuxIn)
	}
}

// Stats tracks the running extremes of one column.
type Stats struct {
	Min  float64
	Peak float64
	sum  float64
	n    int
}

func newStats() Stats {
	return Stats{Min: math.MaxFloat64, Peak: -math.MaxFloat64}
}

func (s *Stats) add(v float64) {
	if v < s.Min {
		s.Min = v
	}
	if v > s.Peak {
		s.Peak = v
	}
	s.sum += v
	s.n++
}

// Avg returns the mean of every value seen, or 0 if none.
func (s Stats) Avg() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// Series is an append-only sequence of records for the current session.
// It is owned by the render loop and is not safe for concurrent use.
type Series struct {
	records []sensor.LogRecord
	stats   [4]Stats
}

// NewSeries creates an empty series.
func NewSeries() *Series {
	s := &Series{}
	for i := range s.stats {
		s.stats[i] = newStats()
	}
	return s
}

// Append adds records in order.
func (s *Series) Append(recs ...sensor.LogRecord) {
	for _, r := range recs {
		s.records = append(s.records, r)
		for c := range s.stats {
			s.stats[c].add(Column(c).Value(r))
		}
	}
}

// Len returns the number of records.
func (s *Series) Len() int {
	return len(s.records)
}

// Last returns the most recent record.
func (s *Series) Last() (sensor.LogRecord, bool) {
	if len(s.records) == 0 {
		return sensor.LogRecord{}, false
	}
	return s.records[len(s.records)-1], true
}

// Stats returns the running statistics for a column.
func (s *Series) Stats(c Column) Stats {
	return s.stats[c]
}

// LastN returns a copy of the last n records, oldest first.
func (s *Series) LastN(n int) []sensor.LogRecord {
	if n <= 0 || len(s.records) == 0 {
		return nil
	}
	start := len(s.records) - n
	if start < 0 {
		start = 0
	}
	out := make([]sensor.LogRecord, len(s.records[start:]))
	copy(out, s.records[start:])
	return out
}

// Recent returns up to n records, newest first.
func (s *Series) Recent(n int) []sensor.LogRecord {
	tail := s.LastN(n)
	for i, j := 0, len(tail)-1; i < j; i, j = i+1, j-1 {
		tail[i], tail[j] = tail[j], tail[i]
	}
	return tail
}

// Points converts records to chart points for one column.
func Points(recs []sensor.LogRecord, c Column) []Point {
	pts := make([]Point, len(recs))
	for i, r := range recs {
		pts[i] = Point{Value: c.Value(r), Time: r.Time}
	}
	return pts
}
