package guardianset

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

func testKeys(n int) []common.Address {
	keys := make([]common.Address, n)
	for i := range keys {
		keys[i] = common.BigToAddress(common.Big1)
		keys[i][0] = byte(i + 1)
	}
	return keys
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		label  string
		set    GuardianSet
		now    uint32
		active bool
	}{
		{label: "NoExpiration", set: GuardianSet{Index: 3}, now: 1_000_000, active: true},
		{label: "BeforeExpiration", set: GuardianSet{Index: 3, ExpirationTime: 200}, now: 100, active: true},
		{label: "AtExpiration", set: GuardianSet{Index: 3, ExpirationTime: 200}, now: 200, active: true},
		{label: "AfterExpiration", set: GuardianSet{Index: 3, ExpirationTime: 200}, now: 201, active: false},
		{label: "IndexZero", set: GuardianSet{Index: 0, CreationTime: 5}, now: 100, active: true},
		{label: "LegacyCreationTimeOnOtherIndex", set: GuardianSet{Index: 1, CreationTime: LegacyInactiveCreationTime}, now: 100, active: true},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			assert.Equal(t, tc.active, tc.set.IsActive(tc.now))
		})
	}
}

func TestLegacyIndexZeroNeverActive(t *testing.T) {
	gs := GuardianSet{Index: 0, Keys: testKeys(1), CreationTime: LegacyInactiveCreationTime}
	for _, now := range []uint32{0, 1, LegacyInactiveCreationTime - 1, LegacyInactiveCreationTime, LegacyInactiveCreationTime + 1, 1 << 31, math.MaxUint32} {
		assert.False(t, gs.IsActive(now), "now=%d", now)
	}

	gs.ExpirationTime = math.MaxUint32
	assert.False(t, gs.IsActive(0))
}

func TestQuorum(t *testing.T) {
	gs := GuardianSet{Keys: testKeys(19)}
	assert.Equal(t, 13, gs.Quorum())
}

func TestKeyIndex(t *testing.T) {
	gs := GuardianSet{Keys: testKeys(3)}
	i, ok := gs.KeyIndex(gs.Keys[2])
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	_, ok = gs.KeyIndex(common.HexToAddress("0x1234"))
	assert.False(t, ok)
}

func TestValidateKeys(t *testing.T) {
	keys := testKeys(3)

	tests := []struct {
		label string
		keys  []common.Address
		valid bool
	}{
		{label: "Valid", keys: keys, valid: true},
		{label: "Empty", keys: nil},
		{label: "ZeroAddress", keys: []common.Address{keys[0], {}}},
		{label: "Duplicate", keys: []common.Address{keys[0], keys[1], keys[0]}},
		{label: "TooMany", keys: testKeys(256)},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			err := ValidateKeys(tc.keys)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, vaa.ErrInvalidGuardianSet), "unexpected error: %v", err)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	gs := &GuardianSet{Index: 7, Keys: testKeys(4), CreationTime: 10, ExpirationTime: 20}
	data := gs.Marshal()
	assert.Len(t, data, 4+1+4*20+4+4)

	decoded, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, gs, decoded)

	_, err = Unmarshal(data[:len(data)-1])
	assert.Error(t, err)

	_, err = Unmarshal(append(data, 0))
	assert.Error(t, err)
}
