// Package notify delivers bridge state changes to the outside world once they are committed.
package notify

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

// Event is a committed state change.
type Event interface {
	Type() string
}

type (
	GuardianSetUpdated struct {
		OldIndex      uint32           `json:"oldIndex"`
		NewIndex      uint32           `json:"newIndex"`
		Keys          []common.Address `json:"keys"`
		OldExpiration uint32           `json:"oldExpiration"`
	}

	MessageFeeChanged struct {
		Fee uint64 `json:"fee"`
	}

	FeesTransferred struct {
		Amount    *uint256.Int `json:"amount"`
		Recipient vaa.Address  `json:"recipient"`
	}

	ContractUpgradeScheduled struct {
		Module      string      `json:"module"`
		NewContract vaa.Address `json:"newContract"`
	}

	MessagePublished struct {
		EmitterChain     vaa.ChainID `json:"emitterChain"`
		EmitterAddress   vaa.Address `json:"emitterAddress"`
		Sequence         uint64      `json:"sequence"`
		Nonce            uint32      `json:"nonce"`
		ConsistencyLevel uint8       `json:"consistencyLevel"`
		Payload          []byte      `json:"payload"`
		Timestamp        uint32      `json:"timestamp"`
	}

	ChainRegistered struct {
		Chain   vaa.ChainID `json:"chain"`
		Emitter vaa.Address `json:"emitter"`
	}
)

func (GuardianSetUpdated) Type() string       { return "guardian_set_updated" }
func (MessageFeeChanged) Type() string        { return "message_fee_changed" }
func (FeesTransferred) Type() string          { return "fees_transferred" }
func (ContractUpgradeScheduled) Type() string { return "contract_upgrade_scheduled" }
func (MessagePublished) Type() string         { return "message_published" }
func (ChainRegistered) Type() string          { return "chain_registered" }

// Notifier receives committed events. Notify must not block for long.
type Notifier interface {
	Notify(ctx context.Context, events ...Event) error
}

// Multi fans events out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, events ...Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, ...Event) error {
	return nil
}
