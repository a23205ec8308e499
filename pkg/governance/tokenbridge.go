package governance

import (
	"bytes"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// Token bridge governance actions
const (
	ActionRegisterChain   uint8 = 1
	ActionUpgradeContract uint8 = 2
)

// TokenBridgeAction is one of RegisterChain or UpgradeContract.
type TokenBridgeAction interface {
	Action() uint8
	Decree() []byte
	tokenBridgeAction()
}

type (
	// RegisterChain trusts Emitter as the token bridge of Chain. Target chain 0 applies everywhere.
	RegisterChain struct {
		Chain   vaa.ChainID
		Emitter vaa.Address
	}

	// UpgradeContract points the token bridge at new contract code. It must target this chain.
	UpgradeContract struct {
		NewContract vaa.Address
	}
)

func (RegisterChain) tokenBridgeAction()   {}
func (UpgradeContract) tokenBridgeAction() {}

func (RegisterChain) Action() uint8   { return ActionRegisterChain }
func (UpgradeContract) Action() uint8 { return ActionUpgradeContract }

func (a RegisterChain) Decree() []byte {
	buf := new(bytes.Buffer)
	vaa.MustWrite(buf, binary.BigEndian, a.Chain)
	buf.Write(a.Emitter[:])
	return buf.Bytes()
}

func (a UpgradeContract) Decree() []byte {
	return append([]byte(nil), a.NewContract[:]...)
}

// SerializeTokenBridgeAction builds a complete TokenBridge governance payload for targetChain.
func SerializeTokenBridgeAction(a TokenBridgeAction, targetChain vaa.ChainID) []byte {
	return Header{Module: vaa.TokenBridgeModule, Action: a.Action(), TargetChain: targetChain}.Serialize(a.Decree())
}

// ParseTokenBridgeAction authorises v as a TokenBridge governance VAA for thisChain and decodes its decree.
func (g Gate) ParseTokenBridgeAction(v *vaa.VAA, thisChain vaa.ChainID) (TokenBridgeAction, error) {
	h, decree, err := g.header(v, vaa.TokenBridgeModule)
	if err != nil {
		return nil, err
	}

	switch h.Action {
	case ActionRegisterChain:
		if err := checkTarget(h, thisChain, true); err != nil {
			return nil, err
		}
		if len(decree) != 34 {
			return nil, invalidLength("register chain", len(decree), 34)
		}
		a := RegisterChain{Chain: vaa.ChainID(binary.BigEndian.Uint16(decree[:2]))}
		copy(a.Emitter[:], decree[2:])
		return a, nil

	case ActionUpgradeContract:
		if err := checkTarget(h, thisChain, false); err != nil {
			return nil, err
		}
		if len(decree) != 32 {
			return nil, invalidLength("upgrade contract", len(decree), 32)
		}
		var a UpgradeContract
		copy(a.NewContract[:], decree)
		return a, nil

	default:
		return nil, errorsmod.Wrapf(vaa.ErrUnknownGovernanceAction, "token bridge action %d", h.Action)
	}
}
