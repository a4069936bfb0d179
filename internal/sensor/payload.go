package sensor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrMalformed is returned for payloads that cannot be decoded into a Reading.
var ErrMalformed = errors.New("malformed payload")

// number accepts a JSON number or a numeric string.
type number struct {
	value float64
	set   bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		n.value, n.set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.value, n.set = v, true
	return nil
}

type payload struct {
	Temp number `json:"temp"`
	Hum  number `json:"hum"`
	Lux  number `json:"lux"`
}

// DecodePayload parses one feed message shaped like
//
//	{"temp": 24.5, "hum": 61.0, "lux": 310}
//
// Missing keys default to 0 and unknown keys are ignored. Light is truncated
// to an integer.
func DecodePayload(b []byte) (Reading, error) {
	if !utf8.Valid(b) {
		return Reading{}, fmt.Errorf("%w: not utf-8 text", ErrMalformed)
	}

	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Reading{}, fmt.Errorf("%w: empty record", ErrMalformed)
	}

	var p payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return Reading{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return Reading{
		Temperature: p.Temp.value,
		Humidity:    p.Hum.value,
		Light:       int(p.Lux.value),
	}, nil
}
