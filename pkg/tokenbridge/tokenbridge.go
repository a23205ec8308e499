// Package tokenbridge consumes TokenBridge governance decrees. Transfer payloads are out of scope;
// only the registry of trusted foreign token bridge emitters and contract upgrades live here.
package tokenbridge

import (
	"context"
	"errors"
	"fmt"

	errorsmod "cosmossdk.io/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/wormhole/core/pkg/core"
	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/governance"
	"github.com/wormhole-foundation/wormhole/core/pkg/notify"
	"github.com/wormhole-foundation/wormhole/core/pkg/replay"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var registeredChains = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "wormcore_tokenbridge_registered_chains_total",
		Help: "Total number of foreign token bridges registered",
	})

var (
	emitterKeyPrefix = []byte("tokenbridge/emitter/")
	upgradeKey       = []byte("tokenbridge/upgrade")
)

func emitterKey(chain vaa.ChainID) []byte {
	return append(append([]byte(nil), emitterKeyPrefix...), byte(chain>>8), byte(chain))
}

// Bridge shares the store, verifier and governance gate of the core bridge.
type Bridge struct {
	core     *core.Bridge
	logger   *zap.Logger
	notifier notify.Notifier
}

func NewBridge(c *core.Bridge, logger *zap.Logger, notifier notify.Notifier) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Bridge{core: c, logger: logger, notifier: notifier}
}

// SubmitGovernanceVAA verifies and executes a TokenBridge governance VAA.
func (b *Bridge) SubmitGovernanceVAA(ctx context.Context, data []byte) (*core.Receipt, error) {
	v, err := vaa.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	cfg := b.core.Config()

	var (
		action governance.TokenBridgeAction
		event  notify.Event
	)
	err = b.core.Store().Update(ctx, func(txn db.Txn) error {
		if err := b.core.VerifyGovernance(txn, v); err != nil {
			return err
		}

		var err error
		action, err = cfg.Gate.ParseTokenBridgeAction(v, cfg.ChainID)
		if err != nil {
			return err
		}

		if err := replay.Claim(txn, replay.KeyFromVAA(v)); err != nil {
			return err
		}

		switch a := action.(type) {
		case governance.RegisterChain:
			if a.Chain == cfg.ChainID {
				return errorsmod.Wrapf(vaa.ErrInvalidGovernancePayload, "cannot register the token bridge of this chain (%d)", a.Chain)
			}
			if err := txn.CreateIfAbsent(emitterKey(a.Chain), a.Emitter[:]); err != nil {
				if errors.Is(err, db.ErrExists) {
					return errorsmod.Wrapf(vaa.ErrChainAlreadyRegistered, "chain %d", a.Chain)
				}
				return err
			}
			event = notify.ChainRegistered{Chain: a.Chain, Emitter: a.Emitter}
		case governance.UpgradeContract:
			if err := txn.Set(upgradeKey, a.NewContract[:]); err != nil {
				return err
			}
			event = notify.ContractUpgradeScheduled{Module: vaa.TokenBridgeModule.String(), NewContract: a.NewContract}
		default:
			return fmt.Errorf("unhandled token bridge action %T", action)
		}
		return nil
	})
	if err != nil {
		b.logger.Info("rejected token bridge governance VAA", zap.String("message_id", v.MessageID()), zap.Error(err))
		return nil, err
	}

	r := &core.Receipt{
		MessageID:        v.MessageID(),
		Digest:           v.HexDigest(cfg.DigestScheme),
		GuardianSetIndex: v.GuardianSetIndex,
		Module:           vaa.TokenBridgeModule.String(),
		Action:           action.Action(),
	}
	switch action.(type) {
	case governance.RegisterChain:
		r.ActionName = "RegisterChain"
		registeredChains.Inc()
	case governance.UpgradeContract:
		r.ActionName = "UpgradeContract"
	}

	b.logger.Info("applied token bridge governance VAA", zap.String("message_id", r.MessageID), zap.String("action", r.ActionName))
	if err := b.notifier.Notify(ctx, event); err != nil {
		b.logger.Error("failed to deliver token bridge event", zap.Error(err))
	}
	return r, nil
}

// RegisteredEmitter returns the token bridge emitter trusted for chain, or db.ErrNotFound.
func (b *Bridge) RegisteredEmitter(ctx context.Context, chain vaa.ChainID) (vaa.Address, error) {
	var emitter vaa.Address
	err := b.core.Store().View(ctx, func(txn db.Txn) error {
		data, err := txn.Get(emitterKey(chain))
		if err != nil {
			return err
		}
		emitter, err = vaa.BytesToAddress(data)
		return err
	})
	return emitter, err
}

// PendingUpgrade returns the contract the token bridge should be upgraded to, or db.ErrNotFound.
func (b *Bridge) PendingUpgrade(ctx context.Context) (vaa.Address, error) {
	var contract vaa.Address
	err := b.core.Store().View(ctx, func(txn db.Txn) error {
		data, err := txn.Get(upgradeKey)
		if err != nil {
			return err
		}
		contract, err = vaa.BytesToAddress(data)
		return err
	})
	return contract, err
}
