package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "beacon.json")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func TestSetSyncAndGet(t *testing.T) {
	s, _ := tempStore(t)

	require.NoError(t, s.SetSync(KeyDeviceID, "dev-123"))

	var id string
	require.True(t, s.Get(KeyDeviceID, &id))
	assert.Equal(t, "dev-123", id)
}

func TestGetMissingKey(t *testing.T) {
	s, _ := tempStore(t)

	var id string
	assert.False(t, s.Get(KeyDeviceID, &id))
}

func TestReopenRestoresState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.json")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSync(KeyTimedEvents, map[string]int64{"load": 1700000000}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	var timed map[string]int64
	require.True(t, reopened.Get(KeyTimedEvents, &timed))
	assert.Equal(t, int64(1700000000), timed["load"])
}

func TestCorruptFileLoadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	var id string
	assert.False(t, s.Get(KeyDeviceID, &id))

	// The store must stay usable after discarding the corrupt blob.
	require.NoError(t, s.SetSync(KeyDeviceID, "fresh"))
	require.True(t, s.Get(KeyDeviceID, &id))
	assert.Equal(t, "fresh", id)
}

func TestDelete(t *testing.T) {
	s, _ := tempStore(t)

	require.NoError(t, s.SetSync(KeyOptOut, true))
	s.Delete(KeyOptOut)

	var optOut bool
	assert.False(t, s.Get(KeyOptOut, &optOut))
}

func TestFlushWritesFile(t *testing.T) {
	s, path := tempStore(t)

	s.Set(KeyDeviceID, "dev-1")
	require.NoError(t, s.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cly_id")
}

func TestCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.json")
	s, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
