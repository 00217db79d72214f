package position

import (
	"errors"
	"math/big"
	"sync/atomic"

	"mintvault/core/events"
	"mintvault/core/types"
	"mintvault/crypto"
	nativecommon "mintvault/native/common"
)

var (
	ErrAlreadyInitialized     = errors.New("position engine: position already initialized")
	ErrPositionNotInitialized = errors.New("position engine: position not initialized")
	ErrInvalidCollateral      = errors.New("position engine: collateral must be positive")
	ErrInvalidBorrowAmount    = errors.New("position engine: borrow amount must be positive")
	ErrInsufficientCollateral = errors.New("position engine: insufficient collateral")
	ErrNoActiveLoan           = errors.New("position engine: no outstanding debt to repay")
	ErrInvalidRepayAmount     = errors.New("position engine: invalid repay amount")
	ErrNotLiquidatable        = errors.New("position engine: borrower not eligible for liquidation")
	ErrTransferFailed         = errors.New("position engine: asset transfer failed")

	errNilState      = errors.New("position engine: state not configured")
	errNilAuctioneer = errors.New("position engine: auctioneer not configured")
)

const moduleName = "position"

type engineState interface {
	GetPosition(addr crypto.Address) (*Position, error)
	PutPosition(addr crypto.Address, pos *Position) error
	DeletePosition(addr crypto.Address) error
	GetSupply() (*Supply, error)
	PutSupply(*Supply) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Auctioneer is the liquidation handoff consumed by the engine. A failed
// health check moves the position's collateral into the auctioneer's vault and
// opens a descending-price auction owned entirely by the auction engine.
type Auctioneer interface {
	VaultAddress() crypto.Address
	Start(borrower crypto.Address, collateralAmount *big.Int) (uint64, error)
}

// RewardSink receives best-effort governance reward payouts. Implementations
// must never fail the enclosing operation; errors are logged and swallowed on
// the sink side.
type RewardSink interface {
	Pay(to crypto.Address, amount *big.Int)
}

type positionEvent struct {
	evt *types.Event
}

func (e positionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e positionEvent) Event() *types.Event { return e.evt }

// Engine owns the per-account position records and the borrow/repay/liquidate
// state transitions. Interest accrues against a monotonic block height fed in
// by the block ticker; the engine itself never consults the wall clock.
type Engine struct {
	state        engineState
	vaultAddress crypto.Address
	params       RiskParameters
	auctioneer   Auctioneer
	rewards      RewardSink
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	blockHeight  atomic.Uint64
}

// NewEngine constructs a position engine holding escrowed collateral at the
// provided vault address.
func NewEngine(vaultAddr crypto.Address, params RiskParameters) *Engine {
	params.EnsureDefaults()
	return &Engine{
		vaultAddress: vaultAddr,
		params:       params,
		emitter:      events.NoopEmitter{},
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAuctioneer wires the liquidation handoff target.
func (e *Engine) SetAuctioneer(a Auctioneer) {
	if e == nil {
		return
	}
	e.auctioneer = a
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

// SetBlockHeight records the monotonic height used for interest accrual. The
// block ticker updates it concurrently with RPC calls, hence the atomic.
func (e *Engine) SetBlockHeight(height uint64) {
	if e == nil {
		return
	}
	e.blockHeight.Store(height)
}

// BlockHeight returns the engine's current accrual height.
func (e *Engine) BlockHeight() uint64 {
	if e == nil {
		return 0
	}
	return e.blockHeight.Load()
}

// Params returns the engine's risk parameters.
func (e *Engine) Params() RiskParameters {
	if e == nil {
		return RiskParameters{}
	}
	return e.params
}

// VaultAddress returns the address holding escrowed collateral and retired
// stable balances.
func (e *Engine) VaultAddress() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.vaultAddress
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(positionEvent{evt: event})
}

// Initialize opens a position with the caller-declared reference price. The
// price is accepted as-is: trusting the caller is the venue's documented
// weakness, not an omission.
func (e *Engine) Initialize(account crypto.Address, referencePrice *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if pos.Initialized() {
		return ErrAlreadyInitialized
	}
	pos.ReferencePrice = cloneBigInt(referencePrice)
	if err := e.state.PutPosition(account, pos); err != nil {
		return err
	}
	e.emit(NewInitializedEvent(account, pos.ReferencePrice))
	return nil
}

// Borrow locks collateralIn VLT from the account, mints amount USDM to it and
// records the debt. Collateral must cover amount * ratio / 100.
func (e *Engine) Borrow(account crypto.Address, collateralIn, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if collateralIn == nil || collateralIn.Sign() <= 0 {
		return ErrInvalidCollateral
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidBorrowAmount
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if !pos.Initialized() {
		return ErrPositionNotInitialized
	}

	required := e.RequiredCollateral(amount)
	if collateralIn.Cmp(required) < 0 {
		return ErrInsufficientCollateral
	}

	supply, err := e.loadSupply()
	if err != nil {
		return err
	}
	e.settleInterest(pos, supply)

	if err := e.transferVLT(account, e.vaultAddress, collateralIn); err != nil {
		return err
	}
	if err := e.mintStable(account, amount, supply); err != nil {
		return err
	}

	pos.Collateral = new(big.Int).Add(pos.Collateral, collateralIn)
	pos.Borrowed = new(big.Int).Add(pos.Borrowed, amount)
	pos.LastAccrualMark = e.blockHeight.Load()
	supply.TotalCollateral = new(big.Int).Add(supply.TotalCollateral, collateralIn)
	supply.TotalDebt = new(big.Int).Add(supply.TotalDebt, amount)

	if err := e.state.PutPosition(account, pos); err != nil {
		return err
	}
	if err := e.state.PutSupply(supply); err != nil {
		return err
	}

	e.emit(NewBorrowedEvent(account, collateralIn, amount, pos))
	e.payReward(account, amount, e.params.BorrowRewardDivisor)
	return nil
}

// Repay pulls amount USDM from the account and reduces the debt, interest
// first settled into the principal. Full repayment releases the entire
// collateral and destroys the position; partial repayment never releases any.
func (e *Engine) Repay(account crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return err
	}
	if pos.Borrowed.Sign() == 0 {
		return ErrNoActiveLoan
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidRepayAmount
	}

	supply, err := e.loadSupply()
	if err != nil {
		return err
	}
	e.settleInterest(pos, supply)
	totalDue := pos.Borrowed
	if amount.Cmp(totalDue) > 0 {
		return ErrInvalidRepayAmount
	}

	if err := e.transferUSDM(account, e.vaultAddress, amount); err != nil {
		return err
	}

	pos.Borrowed = new(big.Int).Sub(totalDue, amount)
	pos.LastAccrualMark = e.blockHeight.Load()
	supply.TotalDebt = new(big.Int).Sub(supply.TotalDebt, amount)
	supply.StableRetired = new(big.Int).Add(supply.StableRetired, amount)

	if pos.Borrowed.Sign() > 0 {
		if err := e.state.PutPosition(account, pos); err != nil {
			return err
		}
		if err := e.state.PutSupply(supply); err != nil {
			return err
		}
		e.emit(NewRepaidEvent(account, amount, pos.Borrowed))
		return nil
	}

	// Full repayment: destroy the record and commit before the collateral
	// leaves the vault so a transfer hook cannot observe a live position.
	collateral := cloneBigInt(pos.Collateral)
	supply.TotalCollateral = new(big.Int).Sub(supply.TotalCollateral, collateral)
	if err := e.state.DeletePosition(account); err != nil {
		return err
	}
	if err := e.state.PutSupply(supply); err != nil {
		return err
	}
	if err := e.transferVLT(e.vaultAddress, account, collateral); err != nil {
		return err
	}
	e.emit(NewClosedEvent(account, collateral))
	return nil
}

// HealthCheck reports the interest-inclusive amount owed, the collateral that
// amount requires and whether the position currently covers it. The check is
// read-only; accrued interest is not persisted.
func (e *Engine) HealthCheck(account crypto.Address) (*big.Int, *big.Int, bool, error) {
	if e == nil || e.state == nil {
		return nil, nil, false, errNilState
	}
	pos, err := e.loadPosition(account)
	if err != nil {
		return nil, nil, false, err
	}
	totalDue, required, healthy := e.evaluate(pos)
	return totalDue, required, healthy, nil
}

// Liquidate force-closes an undercollateralized position, handing its entire
// collateral to the auction engine. Callable by anyone; the liquidator address
// is recorded for attribution only.
func (e *Engine) Liquidate(liquidator, borrower crypto.Address) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if e.auctioneer == nil {
		return 0, errNilAuctioneer
	}
	pos, err := e.loadPosition(borrower)
	if err != nil {
		return 0, err
	}
	_, _, healthy := e.evaluate(pos)
	if healthy {
		return 0, ErrNotLiquidatable
	}

	supply, err := e.loadSupply()
	if err != nil {
		return 0, err
	}
	collateral := cloneBigInt(pos.Collateral)
	supply.TotalCollateral = new(big.Int).Sub(supply.TotalCollateral, collateral)
	supply.TotalDebt = new(big.Int).Sub(supply.TotalDebt, pos.Borrowed)
	if supply.TotalDebt.Sign() < 0 {
		supply.TotalDebt = big.NewInt(0)
	}

	// Ownership transfer point: the position record dies and the auction
	// record is born in the same logical step. Delete and commit before the
	// collateral moves.
	if err := e.state.DeletePosition(borrower); err != nil {
		return 0, err
	}
	if err := e.state.PutSupply(supply); err != nil {
		return 0, err
	}
	if err := e.transferVLT(e.vaultAddress, e.auctioneer.VaultAddress(), collateral); err != nil {
		return 0, err
	}
	auctionID, err := e.auctioneer.Start(borrower, collateral)
	if err != nil {
		return 0, err
	}
	e.emit(NewLiquidatedEvent(borrower, liquidator, collateral, auctionID))
	return auctionID, nil
}

// RequiredCollateral returns amount * ratio / 100 with floor division. A
// non-positive amount requires no collateral.
func (e *Engine) RequiredCollateral(amount *big.Int) *big.Int {
	if e == nil || amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	required := new(big.Int).Mul(amount, new(big.Int).SetUint64(e.params.CollateralRatioPercent))
	return required.Quo(required, big.NewInt(100))
}

// GetPosition returns a snapshot of the stored position, nil when no position
// exists. Interest accrued since the last settlement is not reflected.
func (e *Engine) GetPosition(account crypto.Address) (*Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pos, err := e.state.GetPosition(account)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, nil
	}
	return pos.EnsureDefaults().Clone(), nil
}

// GetSupply returns a snapshot of the venue-wide supply accounting.
func (e *Engine) GetSupply() (*Supply, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadSupply()
}

// evaluate computes the interest-inclusive total due, the required collateral
// and the health verdict without mutating the position.
func (e *Engine) evaluate(pos *Position) (*big.Int, *big.Int, bool) {
	if pos == nil || pos.Borrowed == nil || pos.Borrowed.Sign() == 0 {
		return big.NewInt(0), big.NewInt(0), true
	}
	totalDue := new(big.Int).Add(pos.Borrowed, e.pendingInterest(pos))
	required := new(big.Int).Mul(totalDue, new(big.Int).SetUint64(e.params.CollateralRatioPercent))
	required.Quo(required, big.NewInt(100))
	return totalDue, required, pos.Collateral.Cmp(required) >= 0
}

func (e *Engine) pendingInterest(pos *Position) *big.Int {
	height := e.blockHeight.Load()
	if pos == nil || height <= pos.LastAccrualMark {
		return big.NewInt(0)
	}
	elapsed := height - pos.LastAccrualMark
	return AccruedInterest(pos.Borrowed, e.params.InterestRatePercent, elapsed, e.params.BlocksPerYear)
}

// settleInterest folds accrued interest into the position's principal and the
// global debt figure, then resets the accrual mark.
func (e *Engine) settleInterest(pos *Position, supply *Supply) {
	interest := e.pendingInterest(pos)
	if interest.Sign() > 0 {
		pos.Borrowed = new(big.Int).Add(pos.Borrowed, interest)
		supply.TotalDebt = new(big.Int).Add(supply.TotalDebt, interest)
	}
	pos.LastAccrualMark = e.blockHeight.Load()
}

func (e *Engine) payReward(account crypto.Address, amount *big.Int, divisor uint64) {
	if e == nil || e.rewards == nil || divisor == 0 || amount == nil || amount.Sign() <= 0 {
		return
	}
	reward := new(big.Int).Quo(amount, new(big.Int).SetUint64(divisor))
	e.rewards.Pay(account, reward)
}

func (e *Engine) loadPosition(account crypto.Address) (*Position, error) {
	pos, err := e.state.GetPosition(account)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &Position{}
	}
	return pos.EnsureDefaults(), nil
}

func (e *Engine) loadSupply() (*Supply, error) {
	supply, err := e.state.GetSupply()
	if err != nil {
		return nil, err
	}
	return supply.EnsureDefaults(), nil
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

func (e *Engine) transferUSDM(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := e.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceUSDM.Cmp(amount) < 0 {
		return ErrTransferFailed
	}
	toAcc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.BalanceUSDM = new(big.Int).Sub(fromAcc.BalanceUSDM, amount)
	toAcc.BalanceUSDM = new(big.Int).Add(toAcc.BalanceUSDM, amount)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

// mintStable issues freshly minted USDM to the recipient and records it in
// the supply accounting.
func (e *Engine) mintStable(to crypto.Address, amount *big.Int, supply *Supply) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	acc, err := e.loadAccount(to)
	if err != nil {
		return err
	}
	acc.BalanceUSDM = new(big.Int).Add(acc.BalanceUSDM, amount)
	if err := e.state.PutAccount(to, acc); err != nil {
		return err
	}
	supply.StableMinted = new(big.Int).Add(supply.StableMinted, amount)
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
