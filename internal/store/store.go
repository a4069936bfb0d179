// Package store handles the append-only CSV log of classified readings.
// The file is opened and closed on every append so no handle is held
// between render ticks.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/luki/classmon/internal/sensor"
)

// Log appends LogRecords to a CSV file with the format:
//
//	Timestamp,Temp_In,Hum_In,Lux_In,Temp_Out,Prediction
type Log struct {
	path string
}

// NewLog returns a log backed by path. The file is created lazily on the
// first append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file path.
func (l *Log) Path() string {
	return l.path
}

// Exists reports whether the backing file has been created.
func (l *Log) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Append writes one record, adding the header row when the file is new.
func (l *Log) Append(rec sensor.LogRecord) (err error) {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close log: %w", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		w.Write(sensor.Header)
	}
	w.Write(rec.Row())
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Open returns a reader over the current log file.
func (l *Log) Open() (*os.File, error) {
	return os.Open(l.path)
}

// ReadAll returns every persisted record in file order.
func (l *Log) ReadAll() ([]sensor.LogRecord, error) {
	return LoadFile(l.path)
}

// LoadFile reads all records from a log file. Rows that cannot be parsed
// are skipped. The Time field is rebuilt from the file's modification day
// and the row's wall clock.
func LoadFile(path string) ([]sensor.LogRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	day := time.Now()
	if info, err := f.Stat(); err == nil {
		day = info.ModTime()
	}
	return Parse(f, day)
}

// Parse reads log rows from r, dating them on day.
func Parse(r io.Reader, day time.Time) ([]sensor.LogRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var records []sensor.LogRecord
	for i := 0; ; i++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, err
		}
		if i == 0 && len(row) > 0 && row[0] == sensor.Header[0] {
			continue
		}
		if len(row) < len(sensor.Header) {
			continue
		}

		clock, err := time.ParseInLocation(sensor.TimestampLayout, row[0], time.Local)
		if err != nil {
			continue
		}
		tempIn, _ := strconv.ParseFloat(row[1], 64)
		humIn, _ := strconv.ParseFloat(row[2], 64)
		luxIn, _ := strconv.ParseFloat(row[3], 64)
		tempOut, _ := strconv.ParseFloat(row[4], 64)

		records = append(records, sensor.LogRecord{
			Time: time.Date(day.Year(), day.Month(), day.Day(),
				clock.Hour(), clock.Minute(), clock.Second(), 0, time.Local),
			Timestamp:  row[0],
			TempIn:     tempIn,
			HumIn:      humIn,
			LuxIn:      int(luxIn),
			TempOut:    tempOut,
			Prediction: strings.Join(row[5:], ","),
		})
	}

	return records, nil
}
