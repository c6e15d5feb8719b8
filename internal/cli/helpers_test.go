package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sensord/internal/reading"
	"github.com/roach88/sensord/internal/store"
)

// syncBuffer is a bytes.Buffer safe for the concurrent writes a running
// serve command makes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// seedDatabase creates a store at a temp path holding rs, in order.
func seedDatabase(t *testing.T, rs ...reading.Reading) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sensor_data.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	for _, r := range rs {
		_, err := st.Insert(context.Background(), r)
		require.NoError(t, err)
	}
	return path
}
