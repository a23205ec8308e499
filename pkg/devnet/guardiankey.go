// Package devnet contains insecure deterministic guardian keys and VAA signing helpers for
// local networks and tests. Never use these keys for anything of value.
package devnet

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// InsecureDeterministicGuardianKey derives guardian key idx from a public seed.
func InsecureDeterministicGuardianKey(idx uint64) *ecdsa.PrivateKey {
	seed := crypto.Keccak256([]byte(fmt.Sprintf("wormcore devnet guardian %d", idx)))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		panic(err)
	}
	return key
}

// InsecureGuardianKeys returns the first n deterministic guardian keys.
func InsecureGuardianKeys(n int) []*ecdsa.PrivateKey {
	keys := make([]*ecdsa.PrivateKey, n)
	for i := range keys {
		keys[i] = InsecureDeterministicGuardianKey(uint64(i))
	}
	return keys
}

// Addresses returns the guardian addresses in the order of keys.
func Addresses(keys []*ecdsa.PrivateKey) []common.Address {
	addrs := make([]common.Address, len(keys))
	for i, k := range keys {
		addrs[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	return addrs
}

// Sign appends a signature of every key to v, using the position of the key as guardian index.
func Sign(v *vaa.VAA, scheme vaa.DigestScheme, keys []*ecdsa.PrivateKey) *vaa.VAA {
	for i, k := range keys {
		v.AddSignature(scheme, k, uint8(i)) // #nosec G115 -- devnet guardian sets are small
	}
	return v
}

// SignIndexes signs v with the keys at the given guardian indexes, in the given order.
func SignIndexes(v *vaa.VAA, scheme vaa.DigestScheme, keys []*ecdsa.PrivateKey, indexes ...uint8) *vaa.VAA {
	for _, i := range indexes {
		v.AddSignature(scheme, keys[i], i)
	}
	return v
}

// MustMarshal encodes v and panics on failure.
func MustMarshal(v *vaa.VAA) []byte {
	b, err := v.Marshal()
	if err != nil {
		panic(err)
	}
	return b
}
