package auction

import (
	"errors"
	"math/big"
	"time"

	"mintvault/core/events"
	"mintvault/core/types"
	"mintvault/crypto"
	nativecommon "mintvault/native/common"
)

var (
	ErrAuctionNotActive = errors.New("auction engine: auction not active")
	// ErrAuctionEnded belongs to the hard-cutoff bidding variant. This engine
	// implements the clamped-floor rule instead: after EndTime the price holds
	// at EndPrice and the auction stays biddable until filled, so the error is
	// declared for API compatibility but never returned.
	ErrAuctionEnded   = errors.New("auction engine: auction ended")
	ErrBidTooLow      = errors.New("auction engine: bid below current price")
	ErrTransferFailed = errors.New("auction engine: asset transfer failed")

	errNilState          = errors.New("auction engine: state not configured")
	errInvalidCollateral = errors.New("auction engine: collateral must be positive")
)

const moduleName = "auction"

// Default auction parameters: a one hour decay window and a 2% clearing
// reward.
const (
	DefaultWindowSeconds    int64  = 3600
	DefaultBidRewardDivisor uint64 = 50
)

type engineState interface {
	AuctionGet(id uint64) (*Auction, bool, error)
	AuctionPut(*Auction) error
	NextAuctionID() (uint64, error)
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// RewardSink receives best-effort governance reward payouts.
type RewardSink interface {
	Pay(to crypto.Address, amount *big.Int)
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine owns the set of liquidation auctions. Pricing decays against the
// wall clock, unlike interest accrual: timestamp skew is an accepted
// manipulation surface here and documented as such.
type Engine struct {
	state            engineState
	vaultAddress     crypto.Address
	proceedsAddress  crypto.Address
	windowSeconds    int64
	bidRewardDivisor uint64
	rewards          RewardSink
	emitter          events.Emitter
	pauses           nativecommon.PauseView
	nowFn            func() int64
}

// NewEngine constructs an auction engine escrowing seized collateral at
// vaultAddr and retaining clearing payments at proceedsAddr.
func NewEngine(vaultAddr, proceedsAddr crypto.Address) *Engine {
	return &Engine{
		vaultAddress:     vaultAddr,
		proceedsAddress:  proceedsAddr,
		windowSeconds:    DefaultWindowSeconds,
		bidRewardDivisor: DefaultBidRewardDivisor,
		emitter:          events.NoopEmitter{},
		nowFn:            func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetWindow overrides the decay window. Non-positive values reset the
// default.
func (e *Engine) SetWindow(seconds int64) {
	if e == nil {
		return
	}
	if seconds <= 0 {
		e.windowSeconds = DefaultWindowSeconds
		return
	}
	e.windowSeconds = seconds
}

// SetBidRewardDivisor overrides the clearing reward divisor. Zero disables
// the hook.
func (e *Engine) SetBidRewardDivisor(divisor uint64) {
	if e == nil {
		return
	}
	e.bidRewardDivisor = divisor
}

// SetRewards wires the best-effort governance reward sink.
func (e *Engine) SetRewards(sink RewardSink) {
	if e == nil {
		return
	}
	e.rewards = sink
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// VaultAddress returns the address escrowing seized collateral. The position
// engine transfers collateral here before calling Start.
func (e *Engine) VaultAddress() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.vaultAddress
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

// Start opens a new auction over the seized collateral. Pricing is derived
// purely from the collateral amount: double it at the start, half of it at
// the floor. The figures deliberately ignore the debt that triggered the
// liquidation; keep the formula as published.
func (e *Engine) Start(borrower crypto.Address, collateralAmount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return 0, errInvalidCollateral
	}
	id, err := e.state.NextAuctionID()
	if err != nil {
		return 0, err
	}
	now := e.now()
	a := &Auction{
		ID:               id,
		Borrower:         borrower,
		CollateralAmount: new(big.Int).Set(collateralAmount),
		StartPrice:       new(big.Int).Lsh(collateralAmount, 1),
		EndPrice:         new(big.Int).Rsh(collateralAmount, 1),
		StartTime:        now,
		EndTime:          now + e.windowSeconds,
		Active:           true,
	}
	if err := e.state.AuctionPut(a); err != nil {
		return 0, err
	}
	e.emit(NewStartedEvent(a))
	return id, nil
}

// CurrentPrice returns the price a bid must meet right now. Inactive or
// unknown auctions fail with ErrAuctionNotActive.
func (e *Engine) CurrentPrice(id uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.loadActive(id)
	if err != nil {
		return nil, err
	}
	return priceAt(a, e.now()), nil
}

// Bid attempts to clear the auction with the attached payment. Exactly one
// bid ever succeeds: the record is deactivated and persisted before any asset
// moves, so a re-entrant call observes a dead auction. The winning bidder
// receives the full collateral plus any payment above the clearing price; the
// price itself is retained by the proceeds treasury.
func (e *Engine) Bid(id uint64, bidder crypto.Address, payment *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	a, err := e.loadActive(id)
	if err != nil {
		return err
	}
	price := priceAt(a, e.now())
	if payment == nil || payment.Sign() <= 0 || payment.Cmp(price) < 0 {
		return ErrBidTooLow
	}

	// Funding and escrow checks happen before the deactivate commit so a
	// failed bid leaves the auction live.
	bidderAcc, err := e.loadAccount(bidder)
	if err != nil {
		return err
	}
	if bidderAcc.BalanceVLT.Cmp(payment) < 0 {
		return ErrTransferFailed
	}
	vaultAcc, err := e.loadAccount(e.vaultAddress)
	if err != nil {
		return err
	}
	if vaultAcc.BalanceVLT.Cmp(a.CollateralAmount) < 0 {
		return ErrTransferFailed
	}

	a.Active = false
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}

	if err := e.transferVLT(bidder, e.proceedsAddress, payment); err != nil {
		return err
	}
	if err := e.transferVLT(e.vaultAddress, bidder, a.CollateralAmount); err != nil {
		return err
	}
	refund := new(big.Int).Sub(payment, price)
	if refund.Sign() > 0 {
		if err := e.transferVLT(e.proceedsAddress, bidder, refund); err != nil {
			return err
		}
	}

	e.emit(NewSettledEvent(a, bidder, price, refund))
	e.payReward(bidder, price)
	return nil
}

// GetAuction returns a snapshot of the auction record, reporting whether it
// exists.
func (e *Engine) GetAuction(id uint64) (*Auction, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	a, ok, err := e.state.AuctionGet(id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return a.EnsureDefaults().Clone(), true, nil
}

func (e *Engine) loadActive(id uint64) (*Auction, error) {
	a, ok, err := e.state.AuctionGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || a == nil || !a.Active {
		return nil, ErrAuctionNotActive
	}
	return a.EnsureDefaults(), nil
}

// priceAt interpolates the descending price with floor division. The price is
// exact at both endpoints, monotonically non-increasing in between and clamps
// at the floor forever after EndTime.
func priceAt(a *Auction, now int64) *big.Int {
	if now >= a.EndTime {
		return new(big.Int).Set(a.EndPrice)
	}
	if now <= a.StartTime {
		return new(big.Int).Set(a.StartPrice)
	}
	span := a.EndTime - a.StartTime
	elapsed := now - a.StartTime
	drop := new(big.Int).Sub(a.StartPrice, a.EndPrice)
	drop.Mul(drop, big.NewInt(elapsed))
	drop.Quo(drop, big.NewInt(span))
	return new(big.Int).Sub(a.StartPrice, drop)
}

func (e *Engine) payReward(account crypto.Address, price *big.Int) {
	if e == nil || e.rewards == nil || e.bidRewardDivisor == 0 || price == nil || price.Sign() <= 0 {
		return
	}
	reward := new(big.Int).Quo(price, new(big.Int).SetUint64(e.bidRewardDivisor))
	e.rewards.Pay(account, reward)
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.EnsureBalances(), nil
}

func (e *Engine) transferVLT(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceVLT.Cmp(amount) < 0 {
		return ErrTransferFailed
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.BalanceVLT = new(big.Int).Sub(fromAcc.BalanceVLT, amount)
	toAcc.BalanceVLT = new(big.Int).Add(toAcc.BalanceVLT, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}
