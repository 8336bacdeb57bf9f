package kvstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/pkg/models"
	"stockwatch/pkg/utils"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func backends(t *testing.T) map[string]Store {
	return map[string]Store{
		"sqlite": openTestSQLite(t),
		"memory": NewMemory(),
	}
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "previousAvailability.chain1", SnapshotKey(models.Chain1))
	assert.Equal(t, "previousAvailability.chain2", SnapshotKey(models.Chain2))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var missing models.Snapshot
			found, err := s.Get(ctx, SnapshotKey(models.Chain1), &missing)
			require.NoError(t, err)
			assert.False(t, found)

			snap := models.Snapshot{
				"A": {ProductID: "A", Name: "Milk", AvailableAnywhere: true},
			}
			require.NoError(t, s.Put(ctx, SnapshotKey(models.Chain1), snap))

			var got models.Snapshot
			found, err = s.Get(ctx, SnapshotKey(models.Chain1), &got)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "Milk", got["A"].Name)
			assert.True(t, got["A"].AvailableAnywhere)
		})
	}
}

func TestStorePutReplacesWholeDocument(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			key := SnapshotKey(models.Chain2)
			require.NoError(t, s.Put(ctx, key, models.Snapshot{"A": {ProductID: "A"}, "B": {ProductID: "B"}}))
			require.NoError(t, s.Put(ctx, key, models.Snapshot{"C": {ProductID: "C"}}))

			var got models.Snapshot
			_, err := s.Get(ctx, key, &got)
			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.Contains(t, got, "C")
		})
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, KeySelectedChain, "chain1"))
			require.NoError(t, s.Delete(ctx, KeySelectedChain))

			var v string
			found, err := s.Get(ctx, KeySelectedChain, &v)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, KeyTrackedProductIDs, models.TrackedProducts{models.Chain1: {"1", "2"}}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	var tracked models.TrackedProducts
	found, err := s.Get(ctx, KeyTrackedProductIDs, &tracked)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"1", "2"}, tracked[models.Chain1])
}

func TestDecodeErrorIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Put(ctx, KeySelectedChain, "chain1"))

	var wrong map[string]int
	_, err := s.Get(ctx, KeySelectedChain, &wrong)
	var perr *models.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "decode", perr.Op)
	assert.Equal(t, KeySelectedChain, perr.Key)
}

func TestOpenBackends(t *testing.T) {
	s, err := Open(utils.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(utils.StoreConfig{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(utils.StoreConfig{Backend: "etcd"})
	assert.Error(t, err)
}
