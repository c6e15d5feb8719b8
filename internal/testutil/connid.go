package testutil

import (
	"fmt"
	"sync"
)

// SequentialConnIDs generates "conn-1", "conn-2", ... for deterministic
// log assertions.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialConnIDs struct {
	mu sync.Mutex
	n  int
}

// Generate returns the next connection ID.
//
// Implements listener.ConnIDGenerator.
func (g *SequentialConnIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("conn-%d", g.n)
}
