package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/holiman/uint256"

	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var (
	stateKey          = []byte("core/state")
	sequenceKeyPrefix = []byte("core/sequence/")
)

// State is the mutable configuration of the core bridge.
type State struct {
	ChainID        vaa.ChainID
	MessageFee     uint64
	CollectedFees  *uint256.Int
	PendingUpgrade *vaa.Address
}

func (s *State) Marshal() []byte {
	buf := new(bytes.Buffer)
	vaa.MustWrite(buf, binary.BigEndian, s.ChainID)
	vaa.MustWrite(buf, binary.BigEndian, s.MessageFee)
	bank := s.CollectedFees
	if bank == nil {
		bank = new(uint256.Int)
	}
	buf.Write(bank.PaddedBytes(32))
	if s.PendingUpgrade != nil {
		buf.WriteByte(1)
		buf.Write(s.PendingUpgrade[:])
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func UnmarshalState(data []byte) (*State, error) {
	reader := bytes.NewReader(data)
	s := &State{}
	if err := binary.Read(reader, binary.BigEndian, &s.ChainID); err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &s.MessageFee); err != nil {
		return nil, fmt.Errorf("failed to read message fee: %w", err)
	}
	bank := make([]byte, 32)
	if _, err := io.ReadFull(reader, bank); err != nil {
		return nil, fmt.Errorf("failed to read collected fees: %w", err)
	}
	s.CollectedFees = new(uint256.Int).SetBytes32(bank)

	flag, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read upgrade flag: %w", err)
	}
	if flag == 1 {
		var upgrade vaa.Address
		if _, err := io.ReadFull(reader, upgrade[:]); err != nil {
			return nil, fmt.Errorf("failed to read pending upgrade: %w", err)
		}
		s.PendingUpgrade = &upgrade
	}
	return s, nil
}

func loadState(txn db.Txn) (*State, error) {
	data, err := txn.Get(stateKey)
	if errors.Is(err, db.ErrNotFound) {
		return nil, vaa.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bridge state: %w", err)
	}
	return UnmarshalState(data)
}

func saveState(txn db.Txn, s *State) error {
	if err := txn.Set(stateKey, s.Marshal()); err != nil {
		return fmt.Errorf("failed to write bridge state: %w", err)
	}
	return nil
}

func sequenceKey(emitter vaa.Address) []byte {
	return append(append([]byte(nil), sequenceKeyPrefix...), emitter[:]...)
}

// nextSequence returns the sequence for the next message of emitter and advances the counter.
func nextSequence(txn db.Txn, emitter vaa.Address) (uint64, error) {
	key := sequenceKey(emitter)
	var seq uint64
	data, err := txn.Get(key)
	switch {
	case err == nil:
		if len(data) != 8 {
			return 0, fmt.Errorf("invalid sequence of length %d for emitter %s", len(data), emitter)
		}
		seq = binary.BigEndian.Uint64(data)
	case errors.Is(err, db.ErrNotFound):
	default:
		return 0, fmt.Errorf("failed to read sequence of emitter %s: %w", emitter, err)
	}

	if err := txn.Set(key, binary.BigEndian.AppendUint64(nil, seq+1)); err != nil {
		return 0, fmt.Errorf("failed to write sequence of emitter %s: %w", emitter, err)
	}
	return seq, nil
}
