package governance

import (
	"bytes"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// Core bridge governance actions
const (
	ActionContractUpgrade   uint8 = 1
	ActionGuardianSetUpdate uint8 = 2
	ActionSetMessageFee     uint8 = 3
	ActionTransferFees      uint8 = 4
)

// CoreAction is one of ContractUpgrade, GuardianSetUpdate, SetMessageFee or TransferFees.
type CoreAction interface {
	Action() uint8
	// Decree is the payload following the governance header.
	Decree() []byte
	coreAction()
}

type (
	// ContractUpgrade points the core bridge at new contract code. It must target this chain.
	ContractUpgrade struct {
		NewContract vaa.Address
	}

	// GuardianSetUpdate replaces the guardian set. NewIndex must be the current index plus one.
	GuardianSetUpdate struct {
		NewIndex uint32
		Keys     []common.Address
	}

	// SetMessageFee sets the fee charged for posting a message.
	SetMessageFee struct {
		Fee uint64
	}

	// TransferFees pays collected fees out to Recipient.
	TransferFees struct {
		Amount    *uint256.Int
		Recipient vaa.Address
	}
)

func (ContractUpgrade) coreAction()   {}
func (GuardianSetUpdate) coreAction() {}
func (SetMessageFee) coreAction()     {}
func (TransferFees) coreAction()      {}

func (ContractUpgrade) Action() uint8   { return ActionContractUpgrade }
func (GuardianSetUpdate) Action() uint8 { return ActionGuardianSetUpdate }
func (SetMessageFee) Action() uint8     { return ActionSetMessageFee }
func (TransferFees) Action() uint8      { return ActionTransferFees }

func (a ContractUpgrade) Decree() []byte {
	return append([]byte(nil), a.NewContract[:]...)
}

func (a GuardianSetUpdate) Decree() []byte {
	buf := new(bytes.Buffer)
	vaa.MustWrite(buf, binary.BigEndian, a.NewIndex)
	vaa.MustWrite(buf, binary.BigEndian, uint8(len(a.Keys))) // #nosec G115 -- There will never be 256 guardians
	for _, k := range a.Keys {
		buf.Write(k[:])
	}
	return buf.Bytes()
}

func (a SetMessageFee) Decree() []byte {
	return uint256.NewInt(a.Fee).PaddedBytes(32)
}

func (a TransferFees) Decree() []byte {
	amount := a.Amount
	if amount == nil {
		amount = new(uint256.Int)
	}
	buf := new(bytes.Buffer)
	buf.Write(amount.PaddedBytes(32))
	buf.Write(a.Recipient[:])
	return buf.Bytes()
}

// SerializeCoreAction builds a complete Core governance payload for targetChain.
func SerializeCoreAction(a CoreAction, targetChain vaa.ChainID) []byte {
	return Header{Module: vaa.CoreModule, Action: a.Action(), TargetChain: targetChain}.Serialize(a.Decree())
}

func invalidLength(name string, got, want int) error {
	return errorsmod.Wrapf(vaa.ErrInvalidGovernancePayload, "%s decree is %d bytes, expected %d", name, got, want)
}

// ParseCoreAction authorises v as a Core governance VAA for thisChain and decodes its decree.
func (g Gate) ParseCoreAction(v *vaa.VAA, thisChain vaa.ChainID) (CoreAction, error) {
	h, decree, err := g.header(v, vaa.CoreModule)
	if err != nil {
		return nil, err
	}

	switch h.Action {
	case ActionContractUpgrade:
		if err := checkTarget(h, thisChain, false); err != nil {
			return nil, err
		}
		if len(decree) != 32 {
			return nil, invalidLength("contract upgrade", len(decree), 32)
		}
		var a ContractUpgrade
		copy(a.NewContract[:], decree)
		return a, nil

	case ActionGuardianSetUpdate:
		if err := checkTarget(h, thisChain, true); err != nil {
			return nil, err
		}
		return parseGuardianSetUpdate(decree)

	case ActionSetMessageFee:
		if err := checkTarget(h, thisChain, true); err != nil {
			return nil, err
		}
		if len(decree) != 32 {
			return nil, invalidLength("set message fee", len(decree), 32)
		}
		fee := new(uint256.Int).SetBytes32(decree)
		if !fee.IsUint64() {
			return nil, errorsmod.Wrap(vaa.ErrInvalidGovernancePayload, "message fee does not fit into 64 bits")
		}
		return SetMessageFee{Fee: fee.Uint64()}, nil

	case ActionTransferFees:
		if err := checkTarget(h, thisChain, true); err != nil {
			return nil, err
		}
		if len(decree) != 64 {
			return nil, invalidLength("transfer fees", len(decree), 64)
		}
		a := TransferFees{Amount: new(uint256.Int).SetBytes32(decree[:32])}
		copy(a.Recipient[:], decree[32:])
		return a, nil

	default:
		return nil, errorsmod.Wrapf(vaa.ErrUnknownGovernanceAction, "core action %d", h.Action)
	}
}

func parseGuardianSetUpdate(decree []byte) (GuardianSetUpdate, error) {
	if len(decree) < 5 {
		return GuardianSetUpdate{}, invalidLength("guardian set update", len(decree), 5)
	}
	a := GuardianSetUpdate{NewIndex: binary.BigEndian.Uint32(decree[:4])}
	n := int(decree[4])
	if len(decree) != 5+20*n {
		return GuardianSetUpdate{}, invalidLength("guardian set update", len(decree), 5+20*n)
	}
	a.Keys = make([]common.Address, n)
	for i := range a.Keys {
		copy(a.Keys[i][:], decree[5+20*i:5+20*(i+1)])
	}
	return a, nil
}
