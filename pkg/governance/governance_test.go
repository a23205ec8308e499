package governance

import (
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

func governanceVAA(payload []byte) *vaa.VAA {
	return vaa.CreateGovernanceVAA(time.Unix(1000, 0), 1, 1, 0, payload)
}

func TestHeaderSerialize(t *testing.T) {
	payload := Header{Module: vaa.CoreModule, Action: 3, TargetChain: 0}.Serialize([]byte{0xaa})
	assert.Equal(t, "00000000000000000000000000000000000000000000000000000000436f7265"+"03"+"0000"+"aa", hex.EncodeToString(payload))

	h, decree, err := ParseHeader(payload)
	require.NoError(t, err)
	assert.Equal(t, Header{Module: vaa.CoreModule, Action: 3}, h)
	assert.Equal(t, []byte{0xaa}, decree)
}

func TestParseHeaderTooShort(t *testing.T) {
	_, _, err := ParseHeader(make([]byte, HeaderLength-1))
	assert.True(t, errors.Is(err, vaa.ErrInvalidGovernanceHeader))

	_, decree, err := ParseHeader(make([]byte, HeaderLength))
	require.NoError(t, err)
	assert.Empty(t, decree)
}

func TestValidate(t *testing.T) {
	gate := DefaultGate()
	setFee := func(target vaa.ChainID) []byte {
		return SerializeCoreAction(SetMessageFee{Fee: 100}, target)
	}

	tests := []struct {
		label     string
		v         *vaa.VAA
		module    vaa.Module
		action    uint8
		thisChain vaa.ChainID
		ok        bool
	}{
		{label: "GlobalTargetOnEthereum", v: governanceVAA(setFee(0)), module: vaa.CoreModule, action: ActionSetMessageFee, thisChain: vaa.ChainIDEthereum, ok: true},
		{label: "GlobalTargetOnSolana", v: governanceVAA(setFee(0)), module: vaa.CoreModule, action: ActionSetMessageFee, thisChain: vaa.ChainIDSolana, ok: true},
		{label: "MatchingTarget", v: governanceVAA(setFee(5)), module: vaa.CoreModule, action: ActionSetMessageFee, thisChain: 5, ok: true},
		{label: "OtherTarget", v: governanceVAA(setFee(5)), module: vaa.CoreModule, action: ActionSetMessageFee, thisChain: vaa.ChainIDEthereum},
		{label: "WrongModule", v: governanceVAA(setFee(0)), module: vaa.TokenBridgeModule, action: ActionSetMessageFee, thisChain: vaa.ChainIDEthereum},
		{label: "WrongAction", v: governanceVAA(setFee(0)), module: vaa.CoreModule, action: ActionTransferFees, thisChain: vaa.ChainIDEthereum},
		{label: "ShortPayload", v: governanceVAA(make([]byte, 34)), module: vaa.CoreModule, action: ActionSetMessageFee, thisChain: vaa.ChainIDEthereum},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			decree, err := gate.Validate(tc.v, tc.module, tc.action, tc.thisChain)
			if tc.ok {
				require.NoError(t, err)
				assert.Len(t, decree, 32)
			} else {
				assert.True(t, errors.Is(err, vaa.ErrInvalidGovernanceHeader), "unexpected error: %v", err)
			}
		})
	}
}

func TestValidateRejectsForeignEmitter(t *testing.T) {
	gate := DefaultGate()

	wrongChain := governanceVAA(SerializeCoreAction(SetMessageFee{Fee: 1}, 0))
	wrongChain.EmitterChain = vaa.ChainIDEthereum
	_, err := gate.Validate(wrongChain, vaa.CoreModule, ActionSetMessageFee, vaa.ChainIDEthereum)
	assert.True(t, errors.Is(err, vaa.ErrInvalidGovernanceHeader))

	wrongAddress := governanceVAA(SerializeCoreAction(SetMessageFee{Fee: 1}, 0))
	wrongAddress.EmitterAddress[31] = 5
	_, err = gate.Validate(wrongAddress, vaa.CoreModule, ActionSetMessageFee, vaa.ChainIDEthereum)
	assert.True(t, errors.Is(err, vaa.ErrInvalidGovernanceHeader))
	assert.False(t, gate.IsGovernanceVAA(wrongAddress))

	devnet := Gate{EmitterChain: vaa.ChainIDEthereum, EmitterAddress: wrongAddress.EmitterAddress}
	wrongAddress.EmitterChain = vaa.ChainIDEthereum
	_, err = devnet.Validate(wrongAddress, vaa.CoreModule, ActionSetMessageFee, vaa.ChainIDEthereum)
	assert.NoError(t, err)
}

func TestParseCoreAction(t *testing.T) {
	gate := DefaultGate()
	keys := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}
	recipient := vaa.Address{31: 9}
	newContract := vaa.Address{0: 1, 31: 2}

	tests := []struct {
		label  string
		action CoreAction
		target vaa.ChainID
	}{
		{label: "ContractUpgrade", action: ContractUpgrade{NewContract: newContract}, target: vaa.ChainIDEthereum},
		{label: "GuardianSetUpdate", action: GuardianSetUpdate{NewIndex: 1, Keys: keys}},
		{label: "SetMessageFee", action: SetMessageFee{Fee: 12345}},
		{label: "TransferFees", action: TransferFees{Amount: uint256.NewInt(77), Recipient: recipient}, target: vaa.ChainIDEthereum},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			v := governanceVAA(SerializeCoreAction(tc.action, tc.target))
			parsed, err := gate.ParseCoreAction(v, vaa.ChainIDEthereum)
			require.NoError(t, err)
			assert.Equal(t, tc.action, parsed)
		})
	}
}

func TestParseCoreActionExhaustive(t *testing.T) {
	gate := DefaultGate()
	v := governanceVAA(SerializeCoreAction(SetMessageFee{Fee: 5}, 0))
	action, err := gate.ParseCoreAction(v, vaa.ChainIDEthereum)
	require.NoError(t, err)

	var fee uint64
	switch a := action.(type) {
	case ContractUpgrade, GuardianSetUpdate, TransferFees:
		t.Fatalf("unexpected action %T", a)
	case SetMessageFee:
		fee = a.Fee
	}
	assert.Equal(t, uint64(5), fee)
}

func TestParseCoreActionErrors(t *testing.T) {
	gate := DefaultGate()
	hdr := func(action uint8, target vaa.ChainID, decree []byte) *vaa.VAA {
		return governanceVAA(Header{Module: vaa.CoreModule, Action: action, TargetChain: target}.Serialize(decree))
	}
	bigFee := make([]byte, 32)
	bigFee[7] = 1

	tests := []struct {
		label string
		v     *vaa.VAA
		err   error
	}{
		{label: "UpgradeWithGlobalTarget", v: hdr(ActionContractUpgrade, 0, make([]byte, 32)), err: vaa.ErrInvalidGovernanceHeader},
		{label: "UpgradeShortDecree", v: hdr(ActionContractUpgrade, vaa.ChainIDEthereum, make([]byte, 31)), err: vaa.ErrInvalidGovernancePayload},
		{label: "GuardianSetUpdateEmpty", v: hdr(ActionGuardianSetUpdate, 0, []byte{0, 0, 0}), err: vaa.ErrInvalidGovernancePayload},
		{label: "GuardianSetUpdateKeyCountMismatch", v: hdr(ActionGuardianSetUpdate, 0, []byte{0, 0, 0, 1, 2, 1}), err: vaa.ErrInvalidGovernancePayload},
		{label: "GuardianSetUpdateOtherChain", v: hdr(ActionGuardianSetUpdate, vaa.ChainIDSolana, []byte{0, 0, 0, 1, 0}), err: vaa.ErrInvalidGovernanceHeader},
		{label: "SetFeeTooLarge", v: hdr(ActionSetMessageFee, 0, bigFee), err: vaa.ErrInvalidGovernancePayload},
		{label: "SetFeeTrailingBytes", v: hdr(ActionSetMessageFee, 0, make([]byte, 33)), err: vaa.ErrInvalidGovernancePayload},
		{label: "TransferFeesShort", v: hdr(ActionTransferFees, 0, make([]byte, 63)), err: vaa.ErrInvalidGovernancePayload},
		{label: "UnknownAction", v: hdr(9, 0, nil), err: vaa.ErrUnknownGovernanceAction},
		{label: "TokenBridgeModule", v: governanceVAA(SerializeTokenBridgeAction(UpgradeContract{}, vaa.ChainIDEthereum)), err: vaa.ErrInvalidGovernanceHeader},
	}

	for _, tc := range tests {
		t.Run(tc.label, func(t *testing.T) {
			_, err := gate.ParseCoreAction(tc.v, vaa.ChainIDEthereum)
			assert.True(t, errors.Is(err, tc.err), "expected %v, got %v", tc.err, err)
		})
	}
}

func TestParseTokenBridgeAction(t *testing.T) {
	gate := DefaultGate()

	register := RegisterChain{Chain: vaa.ChainIDSolana, Emitter: vaa.Address{31: 0xee}}
	parsed, err := gate.ParseTokenBridgeAction(governanceVAA(SerializeTokenBridgeAction(register, 0)), vaa.ChainIDEthereum)
	require.NoError(t, err)
	assert.Equal(t, register, parsed)

	upgrade := UpgradeContract{NewContract: vaa.Address{1}}
	parsed, err = gate.ParseTokenBridgeAction(governanceVAA(SerializeTokenBridgeAction(upgrade, vaa.ChainIDEthereum)), vaa.ChainIDEthereum)
	require.NoError(t, err)
	assert.Equal(t, upgrade, parsed)

	_, err = gate.ParseTokenBridgeAction(governanceVAA(SerializeTokenBridgeAction(upgrade, 0)), vaa.ChainIDEthereum)
	assert.True(t, errors.Is(err, vaa.ErrInvalidGovernanceHeader))

	_, err = gate.ParseTokenBridgeAction(governanceVAA(SerializeCoreAction(SetMessageFee{}, 0)), vaa.ChainIDEthereum)
	assert.True(t, errors.Is(err, vaa.ErrInvalidGovernanceHeader))

	short := Header{Module: vaa.TokenBridgeModule, Action: ActionRegisterChain}.Serialize(make([]byte, 33))
	_, err = gate.ParseTokenBridgeAction(governanceVAA(short), vaa.ChainIDEthereum)
	assert.True(t, errors.Is(err, vaa.ErrInvalidGovernancePayload))
}

func TestSetMessageFeeDecree(t *testing.T) {
	decree := SetMessageFee{Fee: 0x0102}.Decree()
	require.Len(t, decree, 32)
	assert.Equal(t, make([]byte, 30), decree[:30])
	assert.Equal(t, []byte{1, 2}, decree[30:])
}
