package guardianset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

func TestSetKey(t *testing.T) {
	assert.Equal(t, []byte("guardianset/\x00\x00\x01\x02"), SetKey(258))
}

func TestRegistryInitialize(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewRegistry()
	keys := testKeys(3)

	err := store.View(ctx, func(txn db.Txn) error {
		_, err := r.CurrentIndex(txn)
		return err
	})
	assert.True(t, errors.Is(err, vaa.ErrNotInitialized))

	require.NoError(t, store.Update(ctx, func(txn db.Txn) error {
		gs, err := r.Initialize(txn, keys, 1000)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), gs.Index)
		return nil
	}))

	err = store.Update(ctx, func(txn db.Txn) error {
		_, err := r.Initialize(txn, keys, 1000)
		return err
	})
	assert.True(t, errors.Is(err, vaa.ErrAlreadyInitialized))

	require.NoError(t, store.View(ctx, func(txn db.Txn) error {
		gs, err := r.Current(txn)
		require.NoError(t, err)
		assert.Equal(t, keys, gs.Keys)
		assert.Equal(t, uint32(1000), gs.CreationTime)
		assert.Equal(t, uint32(0), gs.ExpirationTime)
		return nil
	}))
}

func TestRegistryInitializeRejectsInvalidKeys(t *testing.T) {
	store := db.NewMemoryStore()
	r := NewRegistry()
	keys := testKeys(2)

	err := store.Update(context.Background(), func(txn db.Txn) error {
		_, err := r.Initialize(txn, append(keys, keys[0]), 1)
		return err
	})
	assert.True(t, errors.Is(err, vaa.ErrInvalidGuardianSet))
}

func TestRegistryRotate(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewRegistry(WithTTL(100))
	first := testKeys(3)
	second := testKeys(5)[2:]

	require.NoError(t, store.Update(ctx, func(txn db.Txn) error {
		_, err := r.Initialize(txn, first, 1000)
		return err
	}))

	require.NoError(t, store.Update(ctx, func(txn db.Txn) error {
		gs, err := r.Rotate(txn, second, 2000)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), gs.Index)
		return nil
	}))

	require.NoError(t, store.View(ctx, func(txn db.Txn) error {
		index, err := r.CurrentIndex(txn)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), index)

		old, err := r.Get(txn, 0)
		require.NoError(t, err)
		assert.Equal(t, uint32(2100), old.ExpirationTime)

		_, err = r.Active(txn, 0, 2100)
		assert.NoError(t, err)
		_, err = r.Active(txn, 0, 2101)
		assert.True(t, errors.Is(err, vaa.ErrGuardianSetExpired))

		current, err := r.Active(txn, 1, 1<<31)
		require.NoError(t, err)
		assert.Equal(t, second, current.Keys)

		_, err = r.Get(txn, 2)
		assert.True(t, errors.Is(err, vaa.ErrUnknownGuardianSet))
		return nil
	}))
}

func TestRegistryRotateFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewRegistry()
	keys := testKeys(3)

	require.NoError(t, store.Update(ctx, func(txn db.Txn) error {
		_, err := r.Initialize(txn, keys, 1000)
		return err
	}))

	err := store.Update(ctx, func(txn db.Txn) error {
		_, err := r.Rotate(txn, nil, 2000)
		return err
	})
	assert.True(t, errors.Is(err, vaa.ErrInvalidGuardianSet))

	require.NoError(t, store.View(ctx, func(txn db.Txn) error {
		gs, err := r.Current(txn)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), gs.Index)
		assert.Equal(t, uint32(0), gs.ExpirationTime)
		return nil
	}))
}

func TestRegistryCachesRetiredSetsOnly(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	r := NewRegistry()

	require.NoError(t, store.Update(ctx, func(txn db.Txn) error {
		if _, err := r.Initialize(txn, testKeys(1), 1); err != nil {
			return err
		}
		_, err := r.Rotate(txn, testKeys(2), 2)
		return err
	}))

	require.NoError(t, store.View(ctx, func(txn db.Txn) error {
		_, err := r.Get(txn, 0)
		require.NoError(t, err)
		_, err = r.Get(txn, 1)
		return err
	}))

	assert.True(t, r.cache.Contains(uint32(0)))
	assert.False(t, r.cache.Contains(uint32(1)))

	// Cached copies are not shared with callers.
	require.NoError(t, store.View(ctx, func(txn db.Txn) error {
		gs, err := r.Get(txn, 0)
		require.NoError(t, err)
		gs.Keys[0][0] = 0xff
		again, err := r.Get(txn, 0)
		require.NoError(t, err)
		assert.NotEqual(t, byte(0xff), again.Keys[0][0])
		return nil
	}))
}

func TestExpiryClamps(t *testing.T) {
	assert.Equal(t, uint32(150), expiry(100, 50))
	assert.Equal(t, uint32(4294967295), expiry(4294967000, 1000))
}
