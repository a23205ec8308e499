package guardianset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// DefaultTTL is how long a superseded guardian set keeps signing authority, in seconds.
const DefaultTTL = 24 * 60 * 60

var (
	setKeyPrefix = []byte("guardianset/")
	currentKey   = []byte("guardianset/current")
)

// SetKey is the store key holding the guardian set with the given index.
func SetKey(index uint32) []byte {
	key := make([]byte, len(setKeyPrefix)+4)
	copy(key, setKeyPrefix)
	binary.BigEndian.PutUint32(key[len(setKeyPrefix):], index)
	return key
}

// Registry stores versioned guardian sets. It holds no state of its own besides a cache of
// retired sets, which can never change again.
type Registry struct {
	ttl    uint32
	logger *zap.Logger
	cache  *lru.Cache
}

type Option func(*Registry)

func WithTTL(ttl uint32) Option {
	return func(r *Registry) {
		r.ttl = ttl
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(opts ...Option) *Registry {
	cache, err := lru.New(64)
	if err != nil {
		panic(err)
	}
	r := &Registry{ttl: DefaultTTL, logger: zap.NewNop(), cache: cache}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) TTL() uint32 {
	return r.ttl
}

// Get returns the guardian set with the given index or vaa.ErrUnknownGuardianSet.
func (r *Registry) Get(txn db.Txn, index uint32) (*GuardianSet, error) {
	if cached, ok := r.cache.Get(index); ok {
		return cached.(*GuardianSet).copy(), nil
	}

	data, err := txn.Get(SetKey(index))
	if errors.Is(err, db.ErrNotFound) {
		return nil, errorsmod.Wrapf(vaa.ErrUnknownGuardianSet, "guardian set %d", index)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read guardian set %d: %w", index, err)
	}

	gs, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode guardian set %d: %w", index, err)
	}

	// Only committed state is visible to read-only transactions.
	if !txn.Writable() && gs.ExpirationTime != 0 {
		r.cache.Add(index, gs.copy())
	}
	return gs, nil
}

// CurrentIndex returns the index of the newest guardian set or vaa.ErrNotInitialized.
func (r *Registry) CurrentIndex(txn db.Txn) (uint32, error) {
	data, err := txn.Get(currentKey)
	if errors.Is(err, db.ErrNotFound) {
		return 0, vaa.ErrNotInitialized
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read current guardian set index: %w", err)
	}
	if len(data) != 4 {
		return 0, fmt.Errorf("invalid current guardian set index of length %d", len(data))
	}
	return binary.BigEndian.Uint32(data), nil
}

func (r *Registry) Current(txn db.Txn) (*GuardianSet, error) {
	index, err := r.CurrentIndex(txn)
	if err != nil {
		return nil, err
	}
	return r.Get(txn, index)
}

// Active returns the set with the given index if it may still sign at now.
func (r *Registry) Active(txn db.Txn, index uint32, now uint32) (*GuardianSet, error) {
	gs, err := r.Get(txn, index)
	if err != nil {
		return nil, err
	}
	if !gs.IsActive(now) {
		return nil, errorsmod.Wrapf(vaa.ErrGuardianSetExpired, "guardian set %d expired at %d, now %d", index, gs.ExpirationTime, now)
	}
	return gs, nil
}

// Initialize creates guardian set 0. It fails once any guardian set exists.
func (r *Registry) Initialize(txn db.Txn, keys []common.Address, now uint32) (*GuardianSet, error) {
	if _, err := r.CurrentIndex(txn); err == nil {
		return nil, vaa.ErrAlreadyInitialized
	} else if !errors.Is(err, vaa.ErrNotInitialized) {
		return nil, err
	}

	return r.create(txn, 0, keys, now)
}

// Rotate installs keys as guardian set current+1 and starts the TTL of the current set.
func (r *Registry) Rotate(txn db.Txn, keys []common.Address, now uint32) (*GuardianSet, error) {
	old, err := r.Current(txn)
	if err != nil {
		return nil, err
	}

	old.ExpirationTime = expiry(now, r.ttl)
	if err := txn.Set(SetKey(old.Index), old.Marshal()); err != nil {
		return nil, fmt.Errorf("failed to expire guardian set %d: %w", old.Index, err)
	}

	gs, err := r.create(txn, old.Index+1, keys, now)
	if err != nil {
		return nil, err
	}

	r.logger.Info("guardian set rotated",
		zap.Uint32("old_index", old.Index),
		zap.Uint32("old_expiration", old.ExpirationTime),
		zap.Uint32("new_index", gs.Index),
		zap.Int("new_size", len(gs.Keys)),
	)
	return gs, nil
}

func (r *Registry) create(txn db.Txn, index uint32, keys []common.Address, now uint32) (*GuardianSet, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}

	gs := &GuardianSet{
		Index:        index,
		Keys:         append([]common.Address(nil), keys...),
		CreationTime: now,
	}

	if err := txn.CreateIfAbsent(SetKey(index), gs.Marshal()); err != nil {
		if errors.Is(err, db.ErrExists) {
			return nil, errorsmod.Wrapf(vaa.ErrGuardianSetNotSequential, "guardian set %d already exists", index)
		}
		return nil, fmt.Errorf("failed to store guardian set %d: %w", index, err)
	}

	current := make([]byte, 4)
	binary.BigEndian.PutUint32(current, index)
	if err := txn.Set(currentKey, current); err != nil {
		return nil, fmt.Errorf("failed to update current guardian set index: %w", err)
	}
	return gs, nil
}

func expiry(now, ttl uint32) uint32 {
	if uint64(now)+uint64(ttl) > math.MaxUint32 {
		return math.MaxUint32
	}
	return now + ttl
}
