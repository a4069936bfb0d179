// Package dashboard computes what the operator sees from the session
// series: headline metrics, the high-temperature alert, chart windows and
// the recent-records preview. Frames are plain values shared by the
// terminal view and the HTTP surface.
package dashboard

import (
	"time"

	"github.com/luki/classmon/internal/history"
	"github.com/luki/classmon/internal/sensor"
)

const (
	ChartWindow = 50
	PreviewSize = 5
)

// Metric is one headline number.
type Metric struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// ChartPoint is one x/y sample of a chart.
type ChartPoint struct {
	Timestamp string    `json:"timestamp"`
	Time      time.Time `json:"time"`
	Value     float64   `json:"value"`
}

// Chart is a named time series built from the last ChartWindow records.
type Chart struct {
	Title  string                  `json:"title"`
	Series map[string][]ChartPoint `json:"series"`
}

// Row is one line of the preview table.
type Row struct {
	Timestamp  string  `json:"Timestamp"`
	TempIn     float64 `json:"Temp_In"`
	HumIn      float64 `json:"Hum_In"`
	LuxIn      int     `json:"Lux_In"`
	TempOut    float64 `json:"Temp_Out"`
	Prediction string  `json:"Prediction"`
}

// Frame is one rendered state of the dashboard.
type Frame struct {
	Waiting   bool      `json:"waiting"`
	Topic     string    `json:"topic"`
	Records   int       `json:"records"`
	Latest    Row       `json:"latest"`
	DeltaOut  float64   `json:"delta_out"`
	Status    string    `json:"status"`
	Hint      string    `json:"hint"`
	Alert     string    `json:"alert,omitempty"`
	Metrics   []Metric  `json:"metrics,omitempty"`
	TempChart Chart     `json:"temp_chart"`
	HumChart  Chart     `json:"hum_chart"`
	LuxChart  Chart     `json:"lux_chart"`
	Preview   []Row     `json:"preview,omitempty"`
	Built     time.Time `json:"built"`
}

func toRow(r sensor.LogRecord) Row {
	return Row{
		Timestamp:  r.Timestamp,
		TempIn:     r.TempIn,
		HumIn:      r.HumIn,
		LuxIn:      r.LuxIn,
		TempOut:    r.TempOut,
		Prediction: r.Prediction,
	}
}

func chartPoints(recs []sensor.LogRecord, c history.Column) []ChartPoint {
	out := make([]ChartPoint, len(recs))
	for i, r := range recs {
		out[i] = ChartPoint{Timestamp: r.Timestamp, Time: r.Time, Value: c.Value(r)}
	}
	return out
}

// Build computes the frame for the current series. An empty series gives
// a waiting frame.
func Build(s *history.Series, topic string, now time.Time) Frame {
	f := Frame{Topic: topic, Built: now}

	last, ok := s.Last()
	if !ok {
		f.Waiting = true
		return f
	}

	status := sensor.StatusOf(last.Prediction)

	f.Records = s.Len()
	f.Latest = toRow(last)
	f.DeltaOut = last.TempIn - last.TempOut
	f.Status = last.Prediction
	f.Hint = status.Hint()
	if status == sensor.StatusHot {
		f.Alert = HotAlert(last.TempIn)
	}

	f.Metrics = []Metric{
		{Label: "Suhu Kelas", Value: last.TempIn, Unit: "°C"},
		{Label: "Kelembaban", Value: last.HumIn, Unit: "%"},
		{Label: "Cahaya", Value: float64(last.LuxIn), Unit: "lux"},
		{Label: "Suhu Luar", Value: last.TempOut, Unit: "°C"},
	}

	window := s.LastN(ChartWindow)
	f.TempChart = Chart{
		Title: "Suhu Kelas vs Suhu Luar (°C)",
		Series: map[string][]ChartPoint{
			"Temp_In":  chartPoints(window, history.TempIn),
			"Temp_Out": chartPoints(window, history.TempOut),
		},
	}
	f.HumChart = Chart{
		Title:  "Kelembaban Udara (%)",
		Series: map[string][]ChartPoint{"Hum_In": chartPoints(window, history.HumIn)},
	}
	f.LuxChart = Chart{
		Title:  "Intensitas Cahaya (Lux)",
		Series: map[string][]ChartPoint{"Lux_In": chartPoints(window, history.LuxIn)},
	}

	for _, r := range s.Recent(PreviewSize) {
		f.Preview = append(f.Preview, toRow(r))
	}

	return f
}
