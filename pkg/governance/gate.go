// Package governance authorises privileged decrees carried in VAA payloads. A decree starts with
// module(32) | action u8 | target chain u16 and is accepted only from the governance emitter.
package governance

import (
	"bytes"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// HeaderLength is the size of the governance header in bytes.
const HeaderLength = 32 + 1 + 2

// Header prefixes every governance payload.
type Header struct {
	Module      vaa.Module
	Action      uint8
	TargetChain vaa.ChainID
}

// Serialize writes the header followed by decree.
func (h Header) Serialize(decree []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write(h.Module[:])
	vaa.MustWrite(buf, binary.BigEndian, h.Action)
	vaa.MustWrite(buf, binary.BigEndian, h.TargetChain)
	buf.Write(decree)
	return buf.Bytes()
}

// ParseHeader splits a governance payload into its header and decree.
func ParseHeader(payload []byte) (Header, []byte, error) {
	var h Header
	if len(payload) < HeaderLength {
		return h, nil, errorsmod.Wrapf(vaa.ErrInvalidGovernanceHeader, "payload of %d bytes is shorter than the %d byte header", len(payload), HeaderLength)
	}
	copy(h.Module[:], payload[:32])
	h.Action = payload[32]
	h.TargetChain = vaa.ChainID(binary.BigEndian.Uint16(payload[33:35]))
	return h, payload[HeaderLength:], nil
}

// Gate names the only emitter allowed to issue governance decrees.
type Gate struct {
	EmitterChain   vaa.ChainID
	EmitterAddress vaa.Address
}

// DefaultGate accepts decrees from the mainnet governance emitter.
func DefaultGate() Gate {
	return Gate{EmitterChain: vaa.GovernanceChain, EmitterAddress: vaa.GovernanceEmitter}
}

// IsGovernanceVAA reports whether v was emitted by the governance emitter.
func (g Gate) IsGovernanceVAA(v *vaa.VAA) bool {
	return v.EmitterChain == g.EmitterChain && v.EmitterAddress == g.EmitterAddress
}

// header checks the emitter and the module, returning the parsed header and decree.
func (g Gate) header(v *vaa.VAA, module vaa.Module) (Header, []byte, error) {
	if !g.IsGovernanceVAA(v) {
		return Header{}, nil, errorsmod.Wrapf(vaa.ErrInvalidGovernanceHeader, "emitter %d/%s is not the governance emitter", v.EmitterChain, v.EmitterAddress)
	}

	h, decree, err := ParseHeader(v.Payload)
	if err != nil {
		return Header{}, nil, err
	}

	if h.Module != module {
		return Header{}, nil, errorsmod.Wrapf(vaa.ErrInvalidGovernanceHeader, "module %q, expected %q", h.Module, module)
	}
	return h, decree, nil
}

func checkTarget(h Header, thisChain vaa.ChainID, allowGlobal bool) error {
	if h.TargetChain == thisChain || (allowGlobal && h.TargetChain == vaa.ChainIDUnset) {
		return nil
	}
	return errorsmod.Wrapf(vaa.ErrInvalidGovernanceHeader, "target chain %d does not match chain %d", h.TargetChain, thisChain)
}

// Validate returns the decree of v if it is a governance VAA for module and action that targets
// all chains or thisChain.
func (g Gate) Validate(v *vaa.VAA, module vaa.Module, action uint8, thisChain vaa.ChainID) ([]byte, error) {
	h, decree, err := g.header(v, module)
	if err != nil {
		return nil, err
	}
	if h.Action != action {
		return nil, errorsmod.Wrapf(vaa.ErrInvalidGovernanceHeader, "action %d, expected %d", h.Action, action)
	}
	if err := checkTarget(h, thisChain, true); err != nil {
		return nil, err
	}
	return decree, nil
}
