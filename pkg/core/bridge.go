// Package core is the core bridge state machine: guardian set bootstrap, VAA verification,
// governance execution with replay protection, and message publication with fees.
package core

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/wormhole-foundation/wormhole/core/pkg/db"
	"github.com/wormhole-foundation/wormhole/core/pkg/governance"
	"github.com/wormhole-foundation/wormhole/core/pkg/guardianset"
	"github.com/wormhole-foundation/wormhole/core/pkg/notify"
	"github.com/wormhole-foundation/wormhole/core/pkg/replay"
	"github.com/wormhole-foundation/wormhole/core/pkg/vaa"
)

var (
	vaaVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wormcore_vaa_verifications_total",
			Help: "Total number of VAA verifications by result code",
		}, []string{"code"})
	governanceActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wormcore_governance_actions_total",
			Help: "Total number of applied governance actions",
		}, []string{"module", "action"})
	messagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wormcore_messages_published_total",
			Help: "Total number of messages posted to the core bridge",
		})
)

// Clock is the source of the current time.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config is fixed for the lifetime of a deployment.
type Config struct {
	// ChainID of the chain this bridge runs on
	ChainID vaa.ChainID
	// Gate names the governance emitter
	Gate governance.Gate
	// GuardianSetTTL is how long a superseded guardian set stays valid, in seconds
	GuardianSetTTL uint32
	// DigestScheme guardians sign
	DigestScheme vaa.DigestScheme
}

func DefaultConfig(chainID vaa.ChainID) Config {
	return Config{
		ChainID:        chainID,
		Gate:           governance.DefaultGate(),
		GuardianSetTTL: guardianset.DefaultTTL,
		DigestScheme:   vaa.DigestDoubleKeccak,
	}
}

// Bridge runs core bridge operations against a Store.
type Bridge struct {
	store    db.Store
	cfg      Config
	registry *guardianset.Registry
	clock    Clock
	logger   *zap.Logger
	notifier notify.Notifier
}

type Option func(*Bridge)

func WithClock(c Clock) Option {
	return func(b *Bridge) {
		b.clock = c
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(b *Bridge) {
		b.notifier = n
	}
}

func NewBridge(store db.Store, cfg Config, opts ...Option) *Bridge {
	b := &Bridge{
		store:    store,
		cfg:      cfg,
		clock:    systemClock{},
		logger:   zap.NewNop(),
		notifier: notify.Discard{},
	}
	for _, o := range opts {
		o(b)
	}
	b.registry = guardianset.NewRegistry(guardianset.WithTTL(cfg.GuardianSetTTL), guardianset.WithLogger(b.logger))
	return b
}

func (b *Bridge) Config() Config {
	return b.cfg
}

func (b *Bridge) Store() db.Store {
	return b.store
}

func (b *Bridge) now() uint32 {
	return uint32(b.clock.Now().Unix()) // #nosec G115 -- This conversion is safe until year 2106
}

// Receipt describes an applied governance VAA.
type Receipt struct {
	MessageID        string `json:"messageId"`
	Digest           string `json:"digest"`
	GuardianSetIndex uint32 `json:"guardianSetIndex"`
	Module           string `json:"module"`
	Action           uint8  `json:"action"`
	ActionName       string `json:"actionName"`
}

// Initialize bootstraps the bridge with guardian set 0.
func (b *Bridge) Initialize(ctx context.Context, keys []common.Address) (*guardianset.GuardianSet, error) {
	var gs *guardianset.GuardianSet
	err := b.store.Update(ctx, func(txn db.Txn) error {
		if _, err := loadState(txn); err == nil {
			return vaa.ErrAlreadyInitialized
		} else if !errors.Is(err, vaa.ErrNotInitialized) {
			return err
		}

		var err error
		gs, err = b.registry.Initialize(txn, keys, b.now())
		if err != nil {
			return err
		}
		return saveState(txn, &State{ChainID: b.cfg.ChainID, CollectedFees: new(uint256.Int)})
	})
	if err != nil {
		return nil, err
	}

	b.logger.Info("bridge initialized",
		zap.Stringer("chain", b.cfg.ChainID),
		zap.Int("guardians", len(gs.Keys)),
		zap.Stringer("digest_scheme", b.cfg.DigestScheme),
	)
	return gs, nil
}

// Verify checks v against the guardian set it names, inside txn.
func (b *Bridge) Verify(txn db.Txn, v *vaa.VAA) (*guardianset.GuardianSet, error) {
	gs, err := b.registry.Active(txn, v.GuardianSetIndex, b.now())
	if err == nil {
		err = v.Verify(b.cfg.DigestScheme, gs.Keys)
	}

	_, code, _ := errorsmod.ABCIInfo(err, false)
	vaaVerifications.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()

	if err != nil {
		return nil, err
	}
	return gs, nil
}

// VerifyGovernance verifies v and additionally requires it to come from the governance emitter
// and to be signed by the current guardian set.
func (b *Bridge) VerifyGovernance(txn db.Txn, v *vaa.VAA) error {
	if !b.cfg.Gate.IsGovernanceVAA(v) {
		return errorsmod.Wrapf(vaa.ErrInvalidGovernanceHeader, "emitter %d/%s is not the governance emitter", v.EmitterChain, v.EmitterAddress)
	}

	if _, err := b.Verify(txn, v); err != nil {
		return err
	}

	current, err := b.registry.CurrentIndex(txn)
	if err != nil {
		return err
	}
	if v.GuardianSetIndex != current {
		return errorsmod.Wrapf(vaa.ErrGovernanceSetNotCurrent, "signed by guardian set %d, current is %d", v.GuardianSetIndex, current)
	}
	return nil
}

// ParseAndVerifyVAA decodes data and verifies its signatures. It does not consume the VAA.
func (b *Bridge) ParseAndVerifyVAA(ctx context.Context, data []byte) (*vaa.VAA, error) {
	v, err := vaa.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	err = b.store.View(ctx, func(txn db.Txn) error {
		_, err := b.Verify(txn, v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SubmitVAA verifies and executes a Core governance VAA. Verification, the replay claim and the
// effect of the action commit together or not at all.
func (b *Bridge) SubmitVAA(ctx context.Context, data []byte) (*Receipt, error) {
	v, err := vaa.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	var (
		action governance.CoreAction
		events []notify.Event
	)
	err = b.store.Update(ctx, func(txn db.Txn) error {
		if err := b.VerifyGovernance(txn, v); err != nil {
			return err
		}

		action, err = b.cfg.Gate.ParseCoreAction(v, b.cfg.ChainID)
		if err != nil {
			return err
		}

		if err := replay.Claim(txn, replay.KeyFromVAA(v)); err != nil {
			return err
		}

		events, err = b.apply(txn, action)
		return err
	})
	if err != nil {
		b.logger.Info("rejected governance VAA", zap.String("message_id", v.MessageID()), zap.Error(err))
		return nil, err
	}

	governanceActions.WithLabelValues(vaa.CoreModule.String(), actionName(action)).Inc()
	b.logger.Info("applied governance VAA",
		zap.String("message_id", v.MessageID()),
		zap.String("action", actionName(action)),
	)
	b.publish(ctx, events)

	return &Receipt{
		MessageID:        v.MessageID(),
		Digest:           v.HexDigest(b.cfg.DigestScheme),
		GuardianSetIndex: v.GuardianSetIndex,
		Module:           vaa.CoreModule.String(),
		Action:           action.Action(),
		ActionName:       actionName(action),
	}, nil
}

func actionName(a governance.CoreAction) string {
	switch a.(type) {
	case governance.ContractUpgrade:
		return "ContractUpgrade"
	case governance.GuardianSetUpdate:
		return "GuardianSetUpdate"
	case governance.SetMessageFee:
		return "SetMessageFee"
	case governance.TransferFees:
		return "TransferFees"
	default:
		return "Unknown"
	}
}

func (b *Bridge) apply(txn db.Txn, action governance.CoreAction) ([]notify.Event, error) {
	state, err := loadState(txn)
	if err != nil {
		return nil, err
	}

	switch a := action.(type) {
	case governance.ContractUpgrade:
		upgrade := a.NewContract
		state.PendingUpgrade = &upgrade
		if err := saveState(txn, state); err != nil {
			return nil, err
		}
		return []notify.Event{notify.ContractUpgradeScheduled{Module: vaa.CoreModule.String(), NewContract: a.NewContract}}, nil

	case governance.GuardianSetUpdate:
		current, err := b.registry.Current(txn)
		if err != nil {
			return nil, err
		}
		if a.NewIndex != current.Index+1 {
			return nil, errorsmod.Wrapf(vaa.ErrGuardianSetNotSequential, "new index %d, current %d", a.NewIndex, current.Index)
		}
		gs, err := b.registry.Rotate(txn, a.Keys, b.now())
		if err != nil {
			return nil, err
		}
		old, err := b.registry.Get(txn, current.Index)
		if err != nil {
			return nil, err
		}
		return []notify.Event{notify.GuardianSetUpdated{OldIndex: old.Index, NewIndex: gs.Index, Keys: gs.Keys, OldExpiration: old.ExpirationTime}}, nil

	case governance.SetMessageFee:
		state.MessageFee = a.Fee
		if err := saveState(txn, state); err != nil {
			return nil, err
		}
		return []notify.Event{notify.MessageFeeChanged{Fee: a.Fee}}, nil

	case governance.TransferFees:
		if a.Amount.Gt(state.CollectedFees) {
			return nil, errorsmod.Wrapf(vaa.ErrInsufficientFees, "requested %s, collected %s", a.Amount, state.CollectedFees)
		}
		state.CollectedFees = new(uint256.Int).Sub(state.CollectedFees, a.Amount)
		if err := saveState(txn, state); err != nil {
			return nil, err
		}
		return []notify.Event{notify.FeesTransferred{Amount: a.Amount, Recipient: a.Recipient}}, nil

	default:
		return nil, fmt.Errorf("unhandled core action %T", action)
	}
}

// Message is posted by an emitter on this chain.
type Message struct {
	Emitter          vaa.Address
	Nonce            uint32
	ConsistencyLevel uint8
	Payload          []byte
}

// PostMessage records a message for the guardians to observe and returns its sequence.
// paid must cover the current message fee and is added to the collected fees.
func (b *Bridge) PostMessage(ctx context.Context, msg Message, paid uint64) (uint64, error) {
	var (
		seq uint64
		now = b.now()
	)
	err := b.store.Update(ctx, func(txn db.Txn) error {
		state, err := loadState(txn)
		if err != nil {
			return err
		}
		if paid < state.MessageFee {
			return errorsmod.Wrapf(vaa.ErrFeeTooLow, "paid %d, fee is %d", paid, state.MessageFee)
		}

		seq, err = nextSequence(txn, msg.Emitter)
		if err != nil {
			return err
		}

		state.CollectedFees = new(uint256.Int).Add(state.CollectedFees, uint256.NewInt(paid))
		return saveState(txn, state)
	})
	if err != nil {
		return 0, err
	}

	messagesPublished.Inc()
	b.publish(ctx, []notify.Event{notify.MessagePublished{
		EmitterChain:     b.cfg.ChainID,
		EmitterAddress:   msg.Emitter,
		Sequence:         seq,
		Nonce:            msg.Nonce,
		ConsistencyLevel: msg.ConsistencyLevel,
		Payload:          msg.Payload,
		Timestamp:        now,
	}})
	return seq, nil
}

// publish hands committed events to the notifier. State is already durable, so failures are only logged.
func (b *Bridge) publish(ctx context.Context, events []notify.Event) {
	if len(events) == 0 {
		return
	}
	if err := b.notifier.Notify(ctx, events...); err != nil {
		b.logger.Error("failed to deliver bridge events", zap.Int("count", len(events)), zap.Error(err))
	}
}

func (b *Bridge) State(ctx context.Context) (*State, error) {
	var s *State
	err := b.store.View(ctx, func(txn db.Txn) error {
		var err error
		s, err = loadState(txn)
		return err
	})
	return s, err
}

func (b *Bridge) GuardianSet(ctx context.Context, index uint32) (*guardianset.GuardianSet, error) {
	var gs *guardianset.GuardianSet
	err := b.store.View(ctx, func(txn db.Txn) error {
		var err error
		gs, err = b.registry.Get(txn, index)
		return err
	})
	return gs, err
}

func (b *Bridge) CurrentGuardianSet(ctx context.Context) (*guardianset.GuardianSet, error) {
	var gs *guardianset.GuardianSet
	err := b.store.View(ctx, func(txn db.Txn) error {
		var err error
		gs, err = b.registry.Current(txn)
		return err
	})
	return gs, err
}

func (b *Bridge) IsClaimed(ctx context.Context, key replay.Key) (bool, error) {
	var claimed bool
	err := b.store.View(ctx, func(txn db.Txn) error {
		var err error
		claimed, err = replay.IsClaimed(txn, key)
		return err
	})
	return claimed, err
}

// Sequence returns the sequence the next message of emitter will get.
func (b *Bridge) Sequence(ctx context.Context, emitter vaa.Address) (uint64, error) {
	var seq uint64
	err := b.store.View(ctx, func(txn db.Txn) error {
		data, err := txn.Get(sequenceKey(emitter))
		if errors.Is(err, db.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(data) != 8 {
			return fmt.Errorf("invalid sequence of length %d", len(data))
		}
		seq = binary.BigEndian.Uint64(data)
		return nil
	})
	return seq, err
}
