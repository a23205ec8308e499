package db

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		err := store.View(ctx, func(txn Txn) error {
			_, err := txn.Get([]byte("missing"))
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, store.Update(ctx, func(txn Txn) error {
			return txn.Set([]byte("k1"), []byte("v1"))
		}))
		require.NoError(t, store.Update(ctx, func(txn Txn) error {
			return txn.Set([]byte("k1"), []byte("v2"))
		}))

		var value []byte
		require.NoError(t, store.View(ctx, func(txn Txn) error {
			var err error
			value, err = txn.Get([]byte("k1"))
			return err
		}))
		assert.Equal(t, []byte("v2"), value)
	})

	t.Run("CreateIfAbsent", func(t *testing.T) {
		create := func() error {
			return store.Update(ctx, func(txn Txn) error {
				return txn.CreateIfAbsent([]byte("once"), []byte{1})
			})
		}
		assert.NoError(t, create())
		assert.ErrorIs(t, create(), ErrExists)
		assert.ErrorIs(t, create(), ErrExists)
	})

	t.Run("CreateIfAbsentSeesOwnWrites", func(t *testing.T) {
		err := store.Update(ctx, func(txn Txn) error {
			if err := txn.CreateIfAbsent([]byte("own"), []byte{1}); err != nil {
				return err
			}
			return txn.CreateIfAbsent([]byte("own"), []byte{2})
		})
		assert.ErrorIs(t, err, ErrExists)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Update(ctx, func(txn Txn) error {
			require.NoError(t, txn.CreateIfAbsent([]byte("rolled-back"), []byte{1}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		err = store.View(ctx, func(txn Txn) error {
			_, err := txn.Get([]byte("rolled-back"))
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ViewIsReadOnly", func(t *testing.T) {
		err := store.View(ctx, func(txn Txn) error {
			assert.False(t, txn.Writable())
			return txn.Set([]byte("k"), []byte("v"))
		})
		assert.Error(t, err)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := store.Update(cctx, func(txn Txn) error {
			return txn.Set([]byte("cancelled"), []byte{1})
		})
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	testStore(t, store)
}

func TestBadgerStore(t *testing.T) {
	store, err := OpenBadgerInMemory()
	require.NoError(t, err)
	defer store.Close()
	testStore(t, store)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("WORMCORE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("WORMCORE_TEST_POSTGRES_URL not set")
	}

	store, err := OpenPostgres(context.Background(), url, WithConnectRetries(1))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec("TRUNCATE " + kvTable)
	require.NoError(t, err)

	testStore(t, store)
}

func TestMemoryStoreConcurrentCreateIfAbsent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Update(ctx, func(txn Txn) error {
				return txn.CreateIfAbsent([]byte("contended"), []byte{1})
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestPostgresQueries(t *testing.T) {
	q, args, err := selectValueQuery([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT value FROM wormcore_kv WHERE key = $1", q)
	assert.Equal(t, []interface{}{[]byte("k")}, args)

	q, args, err = upsertQuery([]byte("k"), []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO wormcore_kv (key,value) VALUES ($1,$2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value", q)
	assert.Len(t, args, 2)

	q, _, err = insertIfAbsentQuery([]byte("k"), []byte("v"))
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO wormcore_kv (key,value) VALUES ($1,$2) ON CONFLICT (key) DO NOTHING", q)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx://u:p@localhost:5432/db", migrateURL("postgres://u:p@localhost:5432/db"))
	assert.Equal(t, "pgx://u:p@localhost/db", migrateURL("postgresql://u:p@localhost/db"))
	assert.Equal(t, "pgx://already", migrateURL("pgx://already"))
}

func TestBadgerStoreRetriesConflicts(t *testing.T) {
	store, err := OpenBadgerInMemory()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	key := []byte("counter")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Update(ctx, func(txn Txn) error {
				var n byte
				v, err := txn.Get(key)
				switch {
				case err == nil:
					n = v[0]
				case !errors.Is(err, ErrNotFound):
					return err
				}
				return txn.Set(key, []byte{n + 1})
			}))
		}()
	}
	wg.Wait()

	var v []byte
	require.NoError(t, store.View(ctx, func(txn Txn) error {
		var err error
		v, err = txn.Get(key)
		return err
	}))
	assert.Equal(t, []byte{40}, v)
}

func TestRetryConflicts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retryConflicts(ctx, "test", func() error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	failed := errors.New("failed")
	calls = 0
	err = retryConflicts(ctx, "test", func() error {
		calls++
		return failed
	})
	assert.ErrorIs(t, err, failed)
	assert.Equal(t, 1, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = retryConflicts(cancelled, "test", func() error {
		return ErrConflict
	})
	assert.Error(t, err)
}
