package reading

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// PayloadFields is the number of comma-separated fields in a wire message.
const PayloadFields = 5

// ParseError describes why a wire payload could not be decoded.
type ParseError struct {
	// Field is the name of the offending field, empty for shape errors.
	Field string

	// Value is the raw text of the offending field.
	Value string

	// Message is a human-readable description.
	Message string

	// Err is the underlying conversion error, if any.
	Err error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse payload: %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("parse payload: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError returns true if err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

var payloadFieldNames = [PayloadFields]string{"temperature", "humidity", "lux", "level", "ir"}

// ParsePayload decodes a `temp,humidity,lux,level,ir` message.
//
// Only the first line is considered. Whitespace around fields is ignored.
// The ir field is an integer where any non-zero value means motion was
// detected. ParsePayload does not reject NaN or infinities; call Validate.
func ParsePayload(data []byte) (Reading, error) {
	s := string(data)
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRight(s, "\x00")
	s = strings.TrimSpace(s)
	if s == "" {
		return Reading{}, &ParseError{Message: "empty payload"}
	}

	parts := strings.Split(s, ",")
	if len(parts) != PayloadFields {
		return Reading{}, &ParseError{
			Message: fmt.Sprintf("expected %d fields, got %d", PayloadFields, len(parts)),
		}
	}

	var values [PayloadFields - 1]float64
	for i := 0; i < PayloadFields-1; i++ {
		raw := strings.TrimSpace(parts[i])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Reading{}, &ParseError{
				Field:   payloadFieldNames[i],
				Value:   raw,
				Message: "not a decimal number",
				Err:     err,
			}
		}
		values[i] = v
	}

	rawIR := strings.TrimSpace(parts[PayloadFields-1])
	ir, err := strconv.ParseInt(rawIR, 10, 64)
	if err != nil {
		return Reading{}, &ParseError{
			Field:   payloadFieldNames[PayloadFields-1],
			Value:   rawIR,
			Message: "not an integer",
			Err:     err,
		}
	}

	return Reading{
		Temperature: values[0],
		Humidity:    values[1],
		Lux:         values[2],
		Level:       values[3],
		Motion:      ir != 0,
	}, nil
}

// FormatPayload encodes r in the wire format accepted by ParsePayload.
func FormatPayload(r Reading) string {
	ir := "0"
	if r.Motion {
		ir = "1"
	}
	return strings.Join([]string{
		strconv.FormatFloat(r.Temperature, 'f', -1, 64),
		strconv.FormatFloat(r.Humidity, 'f', -1, 64),
		strconv.FormatFloat(r.Lux, 'f', -1, 64),
		strconv.FormatFloat(r.Level, 'f', -1, 64),
		ir,
	}, ",")
}
