package genesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole/core/pkg/devnet"
	"github.com/wormhole-foundation/wormhole/core/pkg/guardianset"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

func TestParseDefaults(t *testing.T) {
	g, err := Parse([]byte(`{"chainId": "ethereum", "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`))
	require.NoError(t, err)

	assert.Equal(t, vaa.ChainIDEthereum, g.ChainID)
	assert.Equal(t, uint32(guardianset.DefaultTTL), g.GuardianSetTTL)
	assert.Equal(t, []common.Address{common.HexToAddress("0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe")}, g.Guardians)
	assert.Equal(t, vaa.GovernanceChain, g.GovernanceChain)
	assert.Equal(t, vaa.GovernanceEmitter, g.GovernanceEmitter)

	cfg := g.Config(vaa.DigestSingleKeccak)
	assert.Equal(t, vaa.ChainIDEthereum, cfg.ChainID)
	assert.Equal(t, vaa.DigestSingleKeccak, cfg.DigestScheme)
	assert.Equal(t, vaa.GovernanceEmitter, cfg.Gate.EmitterAddress)
}

func TestParseOverrides(t *testing.T) {
	g, err := Parse([]byte(`{
		"chainId": 2,
		"guardianSetTTL": 60,
		"guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"],
		"governanceChain": 3,
		"governanceEmitter": "0x0000000000000000000000000000000000000000000000000000000000000005"
	}`))
	require.NoError(t, err)

	assert.Equal(t, uint32(60), g.GuardianSetTTL)
	assert.Equal(t, vaa.ChainID(3), g.GovernanceChain)
	assert.Equal(t, vaa.Address{31: 5}, g.GovernanceEmitter)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		label string
		doc   string
	}{
		{label: "NotJSON", doc: `{`},
		{label: "MissingChain", doc: `{"guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`},
		{label: "ZeroChain", doc: `{"chainId": 0, "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`},
		{label: "UnknownChainName", doc: `{"chainId": "atlantis", "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`},
		{label: "ChainOutOfRange", doc: `{"chainId": 70000, "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`},
		{label: "NoGuardians", doc: `{"chainId": 2, "guardians": []}`},
		{label: "GuardiansNotArray", doc: `{"chainId": 2, "guardians": "0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"}`},
		{label: "BadAddress", doc: `{"chainId": 2, "guardians": ["0x1234"]}`},
		{label: "DuplicateGuardian", doc: `{"chainId": 2, "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe", "0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`},
		{label: "NonNumericTTL", doc: `{"chainId": 2, "guardianSetTTL": "soon", "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"]}`},
		{label: "BadEmitter", doc: `{"chainId": 2, "guardians": ["0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"], "governanceEmitter": "xyz"}`},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestMarshalLoadRoundTrip(t *testing.T) {
	g := &Genesis{
		ChainID:           vaa.ChainIDSolana,
		GuardianSetTTL:    120,
		Guardians:         devnet.Addresses(devnet.InsecureGuardianKeys(4)),
		GovernanceChain:   vaa.GovernanceChain,
		GovernanceEmitter: vaa.GovernanceEmitter,
	}
	data, err := g.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, data, 0600))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, g, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
