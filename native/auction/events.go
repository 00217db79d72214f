package auction

import (
	"math/big"
	"strconv"

	"mintvault/core/types"
	"mintvault/crypto"
)

const (
	EventTypeStarted = "auction.started"
	EventTypeSettled = "auction.settled"
)

// NewStartedEvent returns the canonical payload emitted when a liquidation
// opens a new auction.
func NewStartedEvent(a *Auction) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeStarted,
		Attributes: map[string]string{
			"auctionId":  strconv.FormatUint(a.ID, 10),
			"borrower":   a.Borrower.String(),
			"collateral": formatAmount(a.CollateralAmount),
			"startPrice": formatAmount(a.StartPrice),
			"endPrice":   formatAmount(a.EndPrice),
			"startTime":  strconv.FormatInt(a.StartTime, 10),
			"endTime":    strconv.FormatInt(a.EndTime, 10),
		},
	}
}

// NewSettledEvent returns the canonical payload emitted when the single
// winning bid clears an auction.
func NewSettledEvent(a *Auction, bidder crypto.Address, price, refund *big.Int) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeSettled,
		Attributes: map[string]string{
			"auctionId":  strconv.FormatUint(a.ID, 10),
			"bidder":     bidder.String(),
			"price":      formatAmount(price),
			"refund":     formatAmount(refund),
			"collateral": formatAmount(a.CollateralAmount),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
