package rewards

import (
	"log/slog"
	"math/big"

	"mintvault/core/events"
	"mintvault/core/types"
	"mintvault/crypto"
)

const (
	EventTypeRewardPaid    = "reward.paid"
	EventTypeRewardSkipped = "reward.skipped"
)

type hookState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

type rewardEvent struct {
	evt *types.Event
}

func (e rewardEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rewardEvent) Event() *types.Event { return e.evt }

// Hook pays GMV rewards from a pre-funded treasury. The payout is strictly
// best-effort: an underfunded treasury or a storage failure is logged and
// swallowed so the enclosing borrow or bid never rolls back over a missed
// reward. A zero reward is a silent no-op.
type Hook struct {
	state    hookState
	treasury crypto.Address
	logger   *slog.Logger
	emitter  events.Emitter
}

// NewHook constructs a reward hook draining the given treasury address.
func NewHook(treasury crypto.Address, state hookState, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		state:    state,
		treasury: treasury,
		logger:   logger,
		emitter:  events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (h *Hook) SetEmitter(emitter events.Emitter) {
	if h == nil {
		return
	}
	if emitter == nil {
		h.emitter = events.NoopEmitter{}
		return
	}
	h.emitter = emitter
}

// Pay transfers amount GMV from the treasury to the recipient.
func (h *Hook) Pay(to crypto.Address, amount *big.Int) {
	if h == nil || h.state == nil {
		return
	}
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	treasuryAcc, err := h.state.GetAccount(h.treasury)
	if err != nil {
		h.logger.Warn("reward payout aborted", "error", err)
		return
	}
	treasuryAcc = treasuryAcc.EnsureBalances()
	if treasuryAcc.BalanceGMV.Cmp(amount) < 0 {
		h.logger.Warn("reward treasury underfunded",
			"recipient", to.String(), "amount", amount.String(),
			"treasuryBalance", treasuryAcc.BalanceGMV.String())
		h.emit(&types.Event{
			Type: EventTypeRewardSkipped,
			Attributes: map[string]string{
				"recipient": to.String(),
				"amount":    amount.String(),
			},
		})
		return
	}
	recipientAcc, err := h.state.GetAccount(to)
	if err != nil {
		h.logger.Warn("reward payout aborted", "error", err)
		return
	}
	recipientAcc = recipientAcc.EnsureBalances()
	treasuryAcc.BalanceGMV = new(big.Int).Sub(treasuryAcc.BalanceGMV, amount)
	recipientAcc.BalanceGMV = new(big.Int).Add(recipientAcc.BalanceGMV, amount)
	if err := h.state.PutAccount(h.treasury, treasuryAcc); err != nil {
		h.logger.Warn("reward payout aborted", "error", err)
		return
	}
	if err := h.state.PutAccount(to, recipientAcc); err != nil {
		h.logger.Warn("reward payout partially applied", "error", err)
		return
	}
	h.emit(&types.Event{
		Type: EventTypeRewardPaid,
		Attributes: map[string]string{
			"recipient": to.String(),
			"amount":    amount.String(),
		},
	})
}

func (h *Hook) emit(evt *types.Event) {
	if h == nil || h.emitter == nil || evt == nil {
		return
	}
	h.emitter.Emit(rewardEvent{evt: evt})
}
