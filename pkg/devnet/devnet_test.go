package devnet

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole/core/pkg/governance"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

func TestInsecureDeterministicGuardianKey(t *testing.T) {
	a := InsecureDeterministicGuardianKey(0)
	b := InsecureDeterministicGuardianKey(0)
	c := InsecureDeterministicGuardianKey(1)

	assert.Equal(t, crypto.FromECDSA(a), crypto.FromECDSA(b))
	assert.NotEqual(t, crypto.FromECDSA(a), crypto.FromECDSA(c))
}

func TestAddressesAreUnique(t *testing.T) {
	addrs := Addresses(InsecureGuardianKeys(19))
	seen := map[string]bool{}
	for _, a := range addrs {
		assert.False(t, seen[a.Hex()])
		seen[a.Hex()] = true
	}
}

func TestSignedVAAsVerify(t *testing.T) {
	keys := InsecureGuardianKeys(4)
	addrs := Addresses(keys)

	msg := MessageVAA(vaa.DigestDoubleKeccak, keys, 0, vaa.ChainIDEthereum, vaa.Address{31: 1}, 3, []byte("hello"))
	assert.NoError(t, msg.Verify(vaa.DigestDoubleKeccak, addrs))

	upgrade := GuardianSetUpgradeVAA(vaa.DigestDoubleKeccak, keys, 0, 1, InsecureGuardianKeys(7))
	require.NoError(t, upgrade.Verify(vaa.DigestDoubleKeccak, addrs))

	action, err := governance.DefaultGate().ParseCoreAction(upgrade, vaa.ChainIDEthereum)
	require.NoError(t, err)
	update, ok := action.(governance.GuardianSetUpdate)
	require.True(t, ok)
	assert.Equal(t, uint32(1), update.NewIndex)
	assert.Len(t, update.Keys, 7)

	partial := SignIndexes(MessageVAA(vaa.DigestDoubleKeccak, nil, 0, 1, vaa.Address{}, 1, nil), vaa.DigestDoubleKeccak, keys, 0, 2, 3)
	assert.NoError(t, partial.Verify(vaa.DigestDoubleKeccak, addrs))
	assert.Len(t, MustMarshal(partial), 57+3*66)
}
