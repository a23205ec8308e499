package vaa

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace under which all wormcore errors are registered.
const Codespace = "wormhole"

// Verification, replay and governance sentinel errors. Callers add context with
// errorsmod.Wrap and test with errors.Is.
var (
	ErrMalformedVAA            = errorsmod.Register(Codespace, 1101, "malformed VAA")
	ErrUnknownGuardianSet      = errorsmod.Register(Codespace, 1102, "unknown guardian set")
	ErrGuardianSetExpired      = errorsmod.Register(Codespace, 1103, "guardian set expired")
	ErrSignatureOrderInvalid   = errorsmod.Register(Codespace, 1104, "signatures are not in strictly ascending guardian index order")
	ErrInvalidSignature        = errorsmod.Register(Codespace, 1105, "invalid signature on VAA")
	ErrQuorumNotMet            = errorsmod.Register(Codespace, 1106, "no quorum on VAA")
	ErrAlreadyClaimed          = errorsmod.Register(Codespace, 1107, "VAA was already executed")
	ErrInvalidGovernanceHeader = errorsmod.Register(Codespace, 1108, "invalid governance header")

	ErrInvalidGovernancePayload = errorsmod.Register(Codespace, 1120, "governance payload has incorrect length")
	ErrUnknownGovernanceAction  = errorsmod.Register(Codespace, 1121, "unknown governance action")
	ErrGovernanceSetNotCurrent  = errorsmod.Register(Codespace, 1122, "governance VAA must be signed by the current guardian set")
	ErrInvalidGuardianSet       = errorsmod.Register(Codespace, 1123, "invalid guardian set")
	ErrGuardianSetNotSequential = errorsmod.Register(Codespace, 1124, "guardian set updates must be submitted sequentially")
	ErrAlreadyInitialized       = errorsmod.Register(Codespace, 1125, "bridge already initialized")
	ErrNotInitialized           = errorsmod.Register(Codespace, 1126, "bridge not initialized")
	ErrFeeTooLow                = errorsmod.Register(Codespace, 1127, "message fee too low")
	ErrInsufficientFees         = errorsmod.Register(Codespace, 1128, "insufficient fees collected")
	ErrChainAlreadyRegistered   = errorsmod.Register(Codespace, 1129, "chain already registered")
)

// Code returns the code err is registered under in Codespace. It looks through any wrapping.
func Code(err error) (uint32, bool) {
	var e *errorsmod.Error
	if errors.As(err, &e) && e.Codespace() == Codespace {
		return e.ABCICode(), true
	}
	return 0, false
}
