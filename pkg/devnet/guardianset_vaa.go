package devnet

import (
	"crypto/ecdsa"
	"time"

	"github.com/wormhole-foundation/wormhole/core/pkg/governance"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// GovernanceVAA builds a signed Core governance VAA for action.
func GovernanceVAA(scheme vaa.DigestScheme, keys []*ecdsa.PrivateKey, guardianSetIndex uint32, sequence uint64, target vaa.ChainID, action governance.CoreAction) *vaa.VAA {
	v := vaa.CreateGovernanceVAA(time.Unix(int64(sequence)+1_600_000_000, 0), uint32(sequence), sequence, guardianSetIndex, governance.SerializeCoreAction(action, target)) // #nosec G115 -- test sequences are small
	return Sign(v, scheme, keys)
}

// TokenBridgeGovernanceVAA builds a signed TokenBridge governance VAA for action.
func TokenBridgeGovernanceVAA(scheme vaa.DigestScheme, keys []*ecdsa.PrivateKey, guardianSetIndex uint32, sequence uint64, target vaa.ChainID, action governance.TokenBridgeAction) *vaa.VAA {
	v := vaa.CreateGovernanceVAA(time.Unix(int64(sequence)+1_600_000_000, 0), uint32(sequence), sequence, guardianSetIndex, governance.SerializeTokenBridgeAction(action, target)) // #nosec G115 -- test sequences are small
	return Sign(v, scheme, keys)
}

// GuardianSetUpgradeVAA rotates from the set signed by oldKeys to newKeys.
func GuardianSetUpgradeVAA(scheme vaa.DigestScheme, oldKeys []*ecdsa.PrivateKey, oldIndex uint32, sequence uint64, newKeys []*ecdsa.PrivateKey) *vaa.VAA {
	action := governance.GuardianSetUpdate{NewIndex: oldIndex + 1, Keys: Addresses(newKeys)}
	return GovernanceVAA(scheme, oldKeys, oldIndex, sequence, vaa.ChainIDUnset, action)
}

// MessageVAA builds a signed VAA for an ordinary message.
func MessageVAA(scheme vaa.DigestScheme, keys []*ecdsa.PrivateKey, guardianSetIndex uint32, chain vaa.ChainID, emitter vaa.Address, sequence uint64, payload []byte) *vaa.VAA {
	v := &vaa.VAA{
		Version:          vaa.SupportedVAAVersion,
		GuardianSetIndex: guardianSetIndex,
		Timestamp:        time.Unix(1_600_000_000, 0),
		Nonce:            1,
		Sequence:         sequence,
		ConsistencyLevel: 1,
		EmitterChain:     chain,
		EmitterAddress:   emitter,
		Payload:          payload,
	}
	return Sign(v, scheme, keys)
}
