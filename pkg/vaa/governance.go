package vaa

import (
	"fmt"
	"time"
)

// GovernanceEmitter is the emitter address of governance VAAs on the governance chain.
var GovernanceEmitter = Address{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4}
var GovernanceChain = ChainIDSolana

// Module identifies the consumer of a governance decree. It is the module name as ASCII, left padded with zeroes.
type Module [32]byte

var (
	// CoreModule is the identifier of the Core module
	CoreModule = MustModule("Core")
	// TokenBridgeModule is the identifier of the Token Bridge module
	TokenBridgeModule = MustModule("TokenBridge")
)

// ModuleFromString left pads name with zeroes to 32 bytes.
func ModuleFromString(name string) (Module, error) {
	var m Module
	if len(name) > len(m) {
		return m, fmt.Errorf("module name longer than %d bytes: %q", len(m), name)
	}
	copy(m[len(m)-len(name):], name)
	return m, nil
}

func MustModule(name string) Module {
	m, err := ModuleFromString(name)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Module) String() string {
	i := 0
	for i < len(m) && m[i] == 0 {
		i++
	}
	return string(m[i:])
}

// CreateGovernanceVAA builds an unsigned governance VAA from the canonical governance emitter.
func CreateGovernanceVAA(timestamp time.Time, nonce uint32, sequence uint64, guardianSetIndex uint32, payload []byte) *VAA {
	return &VAA{
		Version:          SupportedVAAVersion,
		GuardianSetIndex: guardianSetIndex,
		Signatures:       nil,
		Timestamp:        timestamp,
		Nonce:            nonce,
		Sequence:         sequence,
		ConsistencyLevel: 32,
		EmitterChain:     GovernanceChain,
		EmitterAddress:   GovernanceEmitter,
		Payload:          payload,
	}
}
