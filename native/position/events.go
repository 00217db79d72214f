package position

import (
	"math/big"
	"strconv"

	"mintvault/core/types"
	"mintvault/crypto"
)

const (
	EventTypeInitialized = "position.initialized"
	EventTypeBorrowed    = "position.borrowed"
	EventTypeRepaid      = "position.repaid"
	EventTypeClosed      = "position.closed"
	EventTypeLiquidated  = "position.liquidated"
)

// NewInitializedEvent returns the canonical payload emitted when a position is
// opened with its reference price.
func NewInitializedEvent(account crypto.Address, referencePrice *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeInitialized,
		Attributes: map[string]string{
			"account":        account.String(),
			"referencePrice": formatAmount(referencePrice),
		},
	}
}

// NewBorrowedEvent returns the canonical payload emitted after a successful
// borrow.
func NewBorrowedEvent(account crypto.Address, collateralIn, amount *big.Int, pos *Position) *types.Event {
	evt := &types.Event{
		Type: EventTypeBorrowed,
		Attributes: map[string]string{
			"account":      account.String(),
			"collateralIn": formatAmount(collateralIn),
			"amount":       formatAmount(amount),
		},
	}
	if pos != nil {
		evt.Attributes["collateral"] = formatAmount(pos.Collateral)
		evt.Attributes["borrowed"] = formatAmount(pos.Borrowed)
	}
	return evt
}

// NewRepaidEvent returns the canonical payload emitted after a partial
// repayment.
func NewRepaidEvent(account crypto.Address, amount, remaining *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRepaid,
		Attributes: map[string]string{
			"account":   account.String(),
			"amount":    formatAmount(amount),
			"remaining": formatAmount(remaining),
		},
	}
}

// NewClosedEvent returns the canonical payload emitted when full repayment
// releases the collateral and destroys the position.
func NewClosedEvent(account crypto.Address, collateralReturned *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeClosed,
		Attributes: map[string]string{
			"account":            account.String(),
			"collateralReturned": formatAmount(collateralReturned),
		},
	}
}

// NewLiquidatedEvent returns the canonical payload emitted when a position is
// force-closed into a liquidation auction.
func NewLiquidatedEvent(account, liquidator crypto.Address, collateral *big.Int, auctionID uint64) *types.Event {
	return &types.Event{
		Type: EventTypeLiquidated,
		Attributes: map[string]string{
			"account":    account.String(),
			"liquidator": liquidator.String(),
			"collateral": formatAmount(collateral),
			"auctionId":  strconv.FormatUint(auctionID, 10),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
