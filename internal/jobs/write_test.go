// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWriterReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	w := AtomicWriter{}

	require.NoError(t, w.WriteAtomic(context.Background(), path, []byte("first")))
	require.NoError(t, w.WriteAtomic(context.Background(), path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteJSONIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, writeJSON(context.Background(), AtomicWriter{}, path, map[string]int{"a": 1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(data))
}
