package reading

import (
	"fmt"
	"math"
	"time"
)

// Reading is one sample pushed by a sensor client: four analogue values and
// the motion (IR) flag.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Lux         float64 `json:"lux"`
	Level       float64 `json:"level"`
	Motion      bool    `json:"motion"`
}

// Record is a persisted Reading with its store-assigned identity.
type Record struct {
	ID int64 `json:"id"`
	Reading
	CreatedAt time.Time `json:"created_at"`
}

// Validate reports whether every numeric field is a finite number.
// NaN and infinities parse cleanly but have no meaning on the display.
func (r Reading) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"temperature", r.Temperature},
		{"humidity", r.Humidity},
		{"lux", r.Lux},
		{"level", r.Level},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Value: f.value}
		}
	}
	return nil
}

// ValidationError reports a reading field that is not a finite number.
type ValidationError struct {
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s is not finite (%v)", e.Field, e.Value)
}

// Direction is a step intent produced by the input device.
type Direction int

const (
	// Forward steps to the next record id.
	Forward Direction = iota + 1
	// Backward steps to the previous record id.
	Backward
)

// Delta returns the index change for the direction: +1, -1, or 0 for an
// unknown value.
func (d Direction) Delta() int64 {
	switch d {
	case Forward:
		return 1
	case Backward:
		return -1
	default:
		return 0
	}
}

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}
