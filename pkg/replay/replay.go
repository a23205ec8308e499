// Package replay records which VAAs have been consumed. A claim is created at most once and
// is never updated or removed.
package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var claimAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "wormcore_claim_attempts_total",
		Help: "Total number of replay claims by result. Claims of rolled back transactions are included.",
	}, []string{"result"})

var (
	claimKeyPrefix = []byte("claim/")
	claimMarker    = []byte{1}
)

// Key uniquely identifies a message across all emitters.
type Key struct {
	EmitterAddress vaa.Address
	EmitterChain   vaa.ChainID
	Sequence       uint64
}

func KeyFromVAA(v *vaa.VAA) Key {
	return Key{
		EmitterAddress: v.EmitterAddress,
		EmitterChain:   v.EmitterChain,
		Sequence:       v.Sequence,
	}
}

// KeyFromString parses a <chain>/<address>/<sequence> message id.
func KeyFromString(s string) (Key, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, errors.New("invalid message id")
	}

	emitterChain, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return Key{}, fmt.Errorf("invalid emitter chain: %w", err)
	}

	emitterAddress, err := vaa.StringToAddress(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("invalid emitter address: %w", err)
	}

	sequence, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("invalid sequence: %w", err)
	}

	return Key{
		EmitterAddress: emitterAddress,
		EmitterChain:   vaa.ChainID(emitterChain),
		Sequence:       sequence,
	}, nil
}

// Bytes is the store key: prefix | address(32) | chain u16 | sequence u64.
func (k Key) Bytes() []byte {
	b := make([]byte, 0, len(claimKeyPrefix)+32+2+8)
	b = append(b, claimKeyPrefix...)
	b = append(b, k.EmitterAddress[:]...)
	b = binary.BigEndian.AppendUint16(b, uint16(k.EmitterChain))
	b = binary.BigEndian.AppendUint64(b, k.Sequence)
	return b
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%d", k.EmitterChain, k.EmitterAddress, k.Sequence)
}

// Claim marks key as consumed. Every call after the first fails with vaa.ErrAlreadyClaimed.
// The claim becomes durable only if the surrounding transaction commits.
func Claim(txn db.Txn, key Key) error {
	err := txn.CreateIfAbsent(key.Bytes(), claimMarker)
	if errors.Is(err, db.ErrExists) {
		claimAttempts.WithLabelValues("replayed").Inc()
		return errorsmod.Wrapf(vaa.ErrAlreadyClaimed, "message %s", key)
	}
	if err != nil {
		return fmt.Errorf("failed to claim message %s: %w", key, err)
	}
	claimAttempts.WithLabelValues("claimed").Inc()
	return nil
}

func IsClaimed(txn db.Txn, key Key) (bool, error) {
	_, err := txn.Get(key.Bytes())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	return false, err
}
