package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plannersync/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestLoadMissingFileYieldsEmptyAggregate(t *testing.T) {
	st := newTestStore(t)
	agg, err := st.Load()
	require.NoError(t, err)
	assert.NotNil(t, agg.WeekNotes)
	assert.Empty(t, agg.Events)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)

	agg := model.NewAggregate(time.Now())
	agg.Settings.Theme = "dark"
	require.NoError(t, st.Save(agg))

	// Force a re-read from disk by expiring the cache.
	st.cached = nil

	back, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "dark", back.Settings.Theme)
	assert.Equal(t, agg.LastModified, back.LastModified)
}

func TestReadCacheServesWithinTTL(t *testing.T) {
	st := newTestStore(t)
	agg := model.NewAggregate(time.Now())
	require.NoError(t, st.Save(agg))

	// Corrupt the file behind the store's back; a cached read must not see it.
	require.NoError(t, os.WriteFile(st.path, []byte("{broken"), 0o600))

	back, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, agg.LastModified, back.LastModified)
}

func TestCorruptSnapshotStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte("{broken"), 0o600))

	st, err := New(dir)
	require.NoError(t, err)
	agg, err := st.Load()
	require.NoError(t, err)
	assert.NotNil(t, agg.WeekNotes)
}

func TestRecentlySaved(t *testing.T) {
	st := newTestStore(t)
	assert.False(t, st.RecentlySaved(15*time.Second))

	require.NoError(t, st.Save(model.NewAggregate(time.Now())))
	assert.True(t, st.RecentlySaved(15*time.Second))

	// Pretend the save happened long ago.
	st.now = func() time.Time { return time.Now().Add(time.Minute) }
	assert.False(t, st.RecentlySaved(15*time.Second))
}

func TestSaveIsAtomic(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Save(model.NewAggregate(time.Now())))

	entries, err := os.ReadDir(filepath.Dir(st.path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, dataFileName, entries[0].Name())
}
