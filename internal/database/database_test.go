package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaseline/lightcycle/internal/model"
)

func newTestManager() *Manager {
	return NewManager(zerolog.Nop())
}

func TestOpenSqlite_InMemorySetup(t *testing.T) {
	m := newTestManager()
	db, err := m.OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, m.Setup(db))

	for _, table := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(table), "%T", table)
	}
}

func TestOpenSqlite_InMemoryDatabasesAreIsolated(t *testing.T) {
	m := newTestManager()
	a, err := m.OpenSqlite("")
	require.NoError(t, err)
	b, err := m.OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, m.Setup(a))
	require.NoError(t, m.Setup(b))

	require.NoError(t, a.Create(&model.Match{Name: "only in a"}).Error)

	var count int64
	require.NoError(t, b.Model(&model.Match{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	m := newTestManager()
	db, err := m.OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, m.Setup(db))
	require.NoError(t, db.Create(&model.Match{Name: "Arena", TickRate: 60}).Error)

	path := filepath.Join(t.TempDir(), "match.db")
	// An existing dump is replaced.
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	elapsed, err := TimedDump(db, path)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))

	disk, err := m.OpenSqlite(path)
	require.NoError(t, err)
	var got model.Match
	require.NoError(t, disk.First(&got).Error)
	assert.Equal(t, "Arena", got.Name)
	assert.Equal(t, 60, got.TickRate)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := newTestManager().OpenSqlite("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}
