package vaa

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// DigestScheme selects what guardians sign for a VAA. It is fixed per deployment.
type DigestScheme uint8

const (
	// DigestDoubleKeccak signs keccak256(keccak256(body)). Guardians produce signatures over this digest.
	DigestDoubleKeccak DigestScheme = iota
	// DigestSingleKeccak signs keccak256(body).
	DigestSingleKeccak
)

func (s DigestScheme) String() string {
	switch s {
	case DigestDoubleKeccak:
		return "double-keccak"
	case DigestSingleKeccak:
		return "single-keccak"
	default:
		return fmt.Sprintf("unknown digest scheme: %d", uint8(s))
	}
}

func ParseDigestScheme(s string) (DigestScheme, error) {
	switch strings.ToLower(s) {
	case "double-keccak", "double", "":
		return DigestDoubleKeccak, nil
	case "single-keccak", "single":
		return DigestSingleKeccak, nil
	default:
		return 0, fmt.Errorf("unknown digest scheme: %s", s)
	}
}

func keccak256(chunks ...[]byte) common.Hash {
	var h common.Hash
	keccak := sha3.NewLegacyKeccak256()
	for _, c := range chunks {
		keccak.Write(c)
	}
	keccak.Sum(h[:0])
	return h
}

// MessageHash returns keccak256 of the VAA body.
func (v *VAA) MessageHash() common.Hash {
	return keccak256(v.serializeBody())
}

// SigningDigest returns the digest guardians sign under the given scheme.
func (v *VAA) SigningDigest(scheme DigestScheme) common.Hash {
	h := v.MessageHash()
	if scheme == DigestDoubleKeccak {
		// In order to save space in the solana signature verification instruction, we hash twice so we only need to pass in
		// the first hash (32 bytes) vs the full body data.
		return keccak256(h.Bytes())
	}
	return h
}

// HexDigest returns the hex-encoded signing digest.
func (v *VAA) HexDigest(scheme DigestScheme) string {
	return hex.EncodeToString(v.SigningDigest(scheme).Bytes())
}
