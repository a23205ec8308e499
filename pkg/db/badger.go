package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore is a Store backed by BadgerDB. Badger transactions are optimistic: conflicting
// writers fail to commit, none of their writes are applied and Update reruns them.
type BadgerStore struct {
	db *badger.DB
}

func OpenBadger(path string) (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions(path).WithLogger(nil))
}

// OpenBadgerInMemory opens a BadgerDB instance that is discarded on Close.
func OpenBadgerInMemory() (*BadgerStore, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

type badgerTxn struct {
	txn      *badger.Txn
	writable bool
}

func (t *badgerTxn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *badgerTxn) Set(key, value []byte) error {
	if !t.writable {
		return ErrReadOnly
	}
	return t.txn.Set(key, value)
}

func (t *badgerTxn) CreateIfAbsent(key, value []byte) error {
	_, err := t.Get(key)
	if err == nil {
		return ErrExists
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return t.Set(key, value)
}

func (t *badgerTxn) Writable() bool {
	return t.writable
}

func (s *BadgerStore) View(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observeDuration("badger", "view")()

	return s.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

func (s *BadgerStore) Update(ctx context.Context, fn func(txn Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observeDuration("badger", "update")()

	return retryConflicts(ctx, "badger", func() error {
		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(&badgerTxn{txn: txn, writable: true})
		})
		if errors.Is(err, badger.ErrConflict) {
			return ErrConflict
		}
		return err
	})
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
