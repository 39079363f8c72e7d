// SPDX-License-Identifier: MIT

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndQuickCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.sqlite")

	cfg := DefaultConfig()
	cfg.ReadOnly = false
	db, err := Open(path, cfg)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO t (v) VALUES ('a'), ('b')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	ro, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	defer ro.Close()

	issues, err := QuickCheck(context.Background(), ro, false)
	require.NoError(t, err)
	assert.Nil(t, issues)

	_, err = ro.Exec(`INSERT INTO t (v) VALUES ('c')`)
	assert.Error(t, err, "read-only handle must reject writes")
}

func TestDSN(t *testing.T) {
	assert.Contains(t, DSN("/tmp/x.db", DefaultConfig()), "mode=ro")
	rw := DefaultConfig()
	rw.ReadOnly = false
	assert.Contains(t, DSN("/tmp/x.db", rw), "journal_mode(WAL)")
}
