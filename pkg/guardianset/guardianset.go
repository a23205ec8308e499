package guardianset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// LegacyInactiveCreationTime marks the guardian set 0 of a mainnet deployment that was
// initialized with placeholder keys. That set is never active regardless of its expiration.
const LegacyInactiveCreationTime = 1628099186

// MaxGuardians is bounded by the one-byte guardian index in VAA signatures.
const MaxGuardians = 255

// GuardianSet is one generation of guardian keys. The position of a key is its guardian index.
type GuardianSet struct {
	Index          uint32
	Keys           []common.Address
	CreationTime   uint32
	ExpirationTime uint32
}

// IsActive reports whether signatures of this set are accepted at now (unix seconds).
func (gs *GuardianSet) IsActive(now uint32) bool {
	if gs.Index == 0 && gs.CreationTime == LegacyInactiveCreationTime {
		return false
	}
	return gs.ExpirationTime == 0 || gs.ExpirationTime >= now
}

// Quorum is the minimum number of signatures a VAA needs from this set.
func (gs *GuardianSet) Quorum() int {
	return vaa.CalculateQuorum(len(gs.Keys))
}

// KeyIndex returns the guardian index of addr.
func (gs *GuardianSet) KeyIndex(addr common.Address) (int, bool) {
	for i, k := range gs.Keys {
		if k == addr {
			return i, true
		}
	}
	return -1, false
}

func (gs *GuardianSet) copy() *GuardianSet {
	c := *gs
	c.Keys = append([]common.Address(nil), gs.Keys...)
	return &c
}

// ValidateKeys checks the rules every stored guardian set must follow.
func ValidateKeys(keys []common.Address) error {
	if len(keys) == 0 {
		return errorsmod.Wrap(vaa.ErrInvalidGuardianSet, "guardian set must not be empty")
	}
	if len(keys) > MaxGuardians {
		return errorsmod.Wrapf(vaa.ErrInvalidGuardianSet, "guardian set length must be <= %d, is %d", MaxGuardians, len(keys))
	}

	seen := make(map[common.Address]struct{}, len(keys))
	for i, k := range keys {
		if k == (common.Address{}) {
			return errorsmod.Wrapf(vaa.ErrInvalidGuardianSet, "key [%d] is the zero address", i)
		}
		if _, dup := seen[k]; dup {
			return errorsmod.Wrapf(vaa.ErrInvalidGuardianSet, "key [%d] %s is a duplicate", i, k.Hex())
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Marshal encodes the set as index | n | n*20 keys | creation | expiration, big-endian.
func (gs *GuardianSet) Marshal() []byte {
	buf := new(bytes.Buffer)
	vaa.MustWrite(buf, binary.BigEndian, gs.Index)
	vaa.MustWrite(buf, binary.BigEndian, uint8(len(gs.Keys))) // #nosec G115 -- bounded by ValidateKeys
	for _, k := range gs.Keys {
		buf.Write(k[:])
	}
	vaa.MustWrite(buf, binary.BigEndian, gs.CreationTime)
	vaa.MustWrite(buf, binary.BigEndian, gs.ExpirationTime)
	return buf.Bytes()
}

func Unmarshal(data []byte) (*GuardianSet, error) {
	reader := bytes.NewReader(data)
	gs := &GuardianSet{}

	if err := binary.Read(reader, binary.BigEndian, &gs.Index); err != nil {
		return nil, fmt.Errorf("failed to read guardian set index: %w", err)
	}
	n, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read key count: %w", err)
	}
	gs.Keys = make([]common.Address, n)
	for i := range gs.Keys {
		if _, err := io.ReadFull(reader, gs.Keys[i][:]); err != nil {
			return nil, fmt.Errorf("failed to read key [%d]: %w", i, err)
		}
	}
	if err := binary.Read(reader, binary.BigEndian, &gs.CreationTime); err != nil {
		return nil, fmt.Errorf("failed to read creation time: %w", err)
	}
	if err := binary.Read(reader, binary.BigEndian, &gs.ExpirationTime); err != nil {
		return nil, fmt.Errorf("failed to read expiration time: %w", err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after guardian set", reader.Len())
	}
	return gs, nil
}
