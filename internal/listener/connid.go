package listener

import "github.com/google/uuid"

// ConnIDGenerator produces identifiers for accepted connections. They are
// only used to correlate log lines.
type ConnIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 connection IDs, so log
// lines for consecutive connections sort by arrival.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
