// Package sensor defines the classroom telemetry model: the Reading decoded
// from the feed and the LogRecord produced once a reading has been stamped
// and classified.
package sensor

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the wall-clock layout written to the log.
const TimestampLayout = "15:04:05"

// Reading represents a single normalized sample from the classroom node.
type Reading struct {
	Temperature float64 // indoor temperature in Celsius
	Humidity    float64 // relative humidity in percent
	Light       int     // illuminance in lux, 0 when the node has no light sensor
}

// Features returns the classifier input vector [temperature, humidity].
func (r Reading) Features() []float64 {
	return []float64{r.Temperature, r.Humidity}
}

// LogRecord is one timestamped, classified observation. Values are never
// mutated after NewLogRecord returns.
type LogRecord struct {
	Time       time.Time // arrival time, not persisted
	Timestamp  string    // arrival wall clock, e.g. "14:03:59"
	TempIn     float64
	HumIn      float64
	LuxIn      int
	TempOut    float64
	Prediction string
}

// Header is the column order of the persisted log.
var Header = []string{"Timestamp", "Temp_In", "Hum_In", "Lux_In", "Temp_Out", "Prediction"}

// NewLogRecord stamps a reading with its arrival time, the outdoor
// temperature and the predicted comfort label.
func NewLogRecord(r Reading, t time.Time, tempOut float64, prediction string) LogRecord {
	return LogRecord{
		Time:       t,
		Timestamp:  t.Format(TimestampLayout),
		TempIn:     r.Temperature,
		HumIn:      r.Humidity,
		LuxIn:      r.Light,
		TempOut:    tempOut,
		Prediction: prediction,
	}
}

// Row returns the record as a log row in Header order.
func (r LogRecord) Row() []string {
	return []string{
		r.Timestamp,
		FormatFloat(r.TempIn),
		FormatFloat(r.HumIn),
		strconv.Itoa(r.LuxIn),
		FormatFloat(r.TempOut),
		r.Prediction,
	}
}

// FormatFloat renders v with the shortest exact representation, keeping at
// least one decimal so 31 is written as "31.0".
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if strings.ContainsAny(s, ".NI") {
		return s
	}
	return s + ".0"
}
