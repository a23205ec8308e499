// Package db is the host adapter the bridge core runs on: an atomic key-value store with
// create-once semantics. Every state change of a single VAA submission happens inside one
// Update call, so a failure anywhere rolls back the claim together with the effect.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrNotFound = errors.New("requested key not found in store")
	ErrExists   = errors.New("key already exists in store")
	ErrReadOnly = errors.New("write in read-only transaction")
	ErrConflict = errors.New("transaction conflict, please retry")
)

var operationDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "wormcore",
	Subsystem: "db",
	Name:      "operation_duration_seconds",
	Help:      "Duration of store transactions",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.02, 0.05, 0.1, 0.5, 1, 5},
}, []string{"backend", "operation"})

var conflictRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wormcore",
	Subsystem: "db",
	Name:      "conflict_retries_total",
	Help:      "Update transactions rerun after a write conflict",
}, []string{"backend"})

// conflictBackOff bounds how long an Update keeps rerunning after write conflicts.
func conflictBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = 15 * time.Second
	return b
}

// retryConflicts runs attempt until it returns something other than ErrConflict. If conflicts
// persist past conflictBackOff, ErrConflict is returned.
func retryConflicts(ctx context.Context, backend string, attempt func() error) error {
	first := true
	op := func() error {
		if !first {
			conflictRetries.WithLabelValues(backend).Inc()
		}
		first = false

		err := attempt()
		if err == nil || errors.Is(err, ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(conflictBackOff(), ctx))
}

func observeDuration(backend, operation string) func() time.Duration {
	return prometheus.NewTimer(operationDurations.WithLabelValues(backend, operation)).ObserveDuration
}

// Txn is a single store transaction.
type Txn interface {
	// Get returns ErrNotFound if the key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// CreateIfAbsent writes value only if key does not exist yet and returns ErrExists otherwise.
	CreateIfAbsent(key, value []byte) error
	Writable() bool
}

// Store runs transactions. If fn returns an error from Update nothing it wrote is persisted.
// Update may call fn more than once when concurrent writers conflict, so fn must not keep
// state across calls.
type Store interface {
	View(ctx context.Context, fn func(txn Txn) error) error
	Update(ctx context.Context, fn func(txn Txn) error) error
	Close() error
}
