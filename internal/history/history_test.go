package history

import (
	"testing"
	"time"

	"github.com/luki/classmon/internal/sensor"
)

func record(i int, at time.Time) sensor.LogRecord {
	return sensor.NewLogRecord(
		sensor.Reading{Temperature: float64(30 + i%10), Humidity: 50, Light: i},
		at, 25, "Nyaman")
}

func TestSeries(t *testing.T) {
	s := NewSeries()
	if _, ok := s.Last(); ok {
		t.Fatal("empty series should have no last record")
	}

	now := time.Now()
	for i := 0; i < 7; i++ {
		s.Append(record(i, now.Add(time.Duration(i)*time.Second)))
	}

	if s.Len() != 7 {
		t.Errorf("expected 7 records, got %d", s.Len())
	}

	last, _ := s.Last()
	if last.TempIn != 36.0 {
		t.Errorf("Last(): got %f, want 36.0", last.TempIn)
	}

	st := s.Stats(TempIn)
	if st.Min != 30.0 {
		t.Errorf("Min: got %f, want 30.0", st.Min)
	}
	if st.Peak != 36.0 {
		t.Errorf("Peak: got %f, want 36.0", st.Peak)
	}
	if st.Avg() != 33.0 {
		t.Errorf("Avg: got %f, want 33.0", st.Avg())
	}

	if got := len(s.LastN(3)); got != 3 {
		t.Errorf("LastN(3): got %d values, want 3", got)
	}
	if got := len(s.LastN(100)); got != 7 {
		t.Errorf("LastN(100): got %d values, want 7", got)
	}
}

func TestRecentIsNewestFirst(t *testing.T) {
	s := NewSeries()
	base := time.Date(2026, 2, 21, 14, 0, 0, 0, time.Local)
	for i := 0; i < 120; i++ {
		s.Append(record(i, base.Add(time.Duration(i)*time.Second)))
	}

	recent := s.Recent(5)
	if len(recent) != 5 {
		t.Fatalf("Recent(5): got %d, want 5", len(recent))
	}
	for i, r := range recent {
		if r.LuxIn != 119-i {
			t.Errorf("Recent[%d]: got lux %d, want %d", i, r.LuxIn, 119-i)
		}
	}

	last, _ := s.Last()
	if last.LuxIn != 119 {
		t.Errorf("Recent must not reorder the series, last lux %d", last.LuxIn)
	}
}

func TestPoints(t *testing.T) {
	base := time.Date(2026, 2, 21, 14, 0, 0, 0, time.Local)
	recs := []sensor.LogRecord{record(1, base), record(2, base.Add(time.Second))}

	pts := Points(recs, LuxIn)
	if len(pts) != 2 || pts[1].Value != 2 {
		t.Fatalf("Points: got %+v", pts)
	}
	if !pts[1].Time.Equal(base.Add(time.Second)) {
		t.Errorf("point time: got %v", pts[1].Time)
	}
	if got := Points(recs, TempOut); got[0].Value != 25 {
		t.Errorf("TempOut point: got %f, want 25", got[0].Value)
	}
}
