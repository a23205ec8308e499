package vaa

import (
	"crypto/ecdsa"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// recoverSigner returns the address that produced signature over digest.
func recoverSigner(digest []byte, signature *Signature) (common.Address, error) {
	pubKey, err := crypto.Ecrecover(digest, signature.Signature[:])
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(crypto.Keccak256(pubKey[1:])[12:]), nil
}

// verifySignatures checks every signature against the guardian at its index.
// Indexes must be strictly ascending, which also rules out the same guardian signing twice.
func verifySignatures(digest []byte, signatures []*Signature, addresses []common.Address) error {
	lastIndex := -1

	for i, sig := range signatures {
		if int(sig.Index) <= lastIndex {
			return errorsmod.Wrapf(ErrSignatureOrderInvalid, "signature %d has guardian index %d after %d", i, sig.Index, lastIndex)
		}
		lastIndex = int(sig.Index)

		if int(sig.Index) >= len(addresses) {
			return errorsmod.Wrapf(ErrInvalidSignature, "guardian index %d out of bounds for guardian set of size %d", sig.Index, len(addresses))
		}

		signer, err := recoverSigner(digest, sig)
		if err != nil {
			return errorsmod.Wrapf(ErrInvalidSignature, "failed to recover signer of signature %d: %v", i, err)
		}

		if signer != addresses[sig.Index] {
			return errorsmod.Wrapf(ErrInvalidSignature, "signature %d recovered %s, expected guardian %d %s", i, signer.Hex(), sig.Index, addresses[sig.Index].Hex())
		}
	}

	return nil
}

// VerifySignatures reports whether all signatures of the VAA are valid for the given guardian keys.
// It does not check quorum.
func (v *VAA) VerifySignatures(scheme DigestScheme, addresses []common.Address) bool {
	if len(v.Signatures) > len(addresses) {
		return false
	}
	return verifySignatures(v.SigningDigest(scheme).Bytes(), v.Signatures, addresses) == nil
}

// Verify checks that the VAA carries a quorum of valid signatures from the complete guardian set
// described by addresses. The checks run in this order:
//   - more signatures than guardians is malformed
//   - fewer signatures than quorum fails before any recovery is attempted
//   - each signature must have a strictly greater guardian index than its predecessor
//   - each signature must recover to the guardian at its index
//
// Verify will not work correctly if a subset of the guardian set keys is passed in.
func (v *VAA) Verify(scheme DigestScheme, addresses []common.Address) error {
	if len(v.Signatures) > len(addresses) {
		return errorsmod.Wrapf(ErrMalformedVAA, "VAA has %d signatures but the guardian set only has %d keys", len(v.Signatures), len(addresses))
	}

	if !HasQuorum(len(v.Signatures), len(addresses)) {
		return errorsmod.Wrapf(ErrQuorumNotMet, "have %d signatures, need %d", len(v.Signatures), CalculateQuorum(len(addresses)))
	}

	return verifySignatures(v.SigningDigest(scheme).Bytes(), v.Signatures, addresses)
}

// AddSignature signs the VAA digest with key and appends the signature for the given guardian index.
func (v *VAA) AddSignature(scheme DigestScheme, key *ecdsa.PrivateKey, index uint8) {
	sig, err := crypto.Sign(v.SigningDigest(scheme).Bytes(), key)
	if err != nil {
		panic(err)
	}
	sigData := SignatureData{}
	copy(sigData[:], sig)

	v.Signatures = append(v.Signatures, &Signature{
		Index:     index,
		Signature: sigData,
	})
}
