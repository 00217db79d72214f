package auction

import (
	"math/big"

	"mintvault/crypto"
)

// Auction is one liquidation sale: the seized collateral offered at a price
// that decays linearly from StartPrice to EndPrice over the auction window.
// Records are append-only and indexed by an incrementing id; once Active flips
// false it never reverts.
type Auction struct {
	ID               uint64         `json:"id"`
	Borrower         crypto.Address `json:"borrower"`
	CollateralAmount *big.Int       `json:"collateralAmount"`
	StartPrice       *big.Int       `json:"startPrice"`
	EndPrice         *big.Int       `json:"endPrice"`
	StartTime        int64          `json:"startTime"`
	EndTime          int64          `json:"endTime"`
	Active           bool           `json:"active"`
}

// EnsureDefaults populates nil amount fields so arithmetic is safe.
func (a *Auction) EnsureDefaults() *Auction {
	if a == nil {
		return nil
	}
	if a.CollateralAmount == nil {
		a.CollateralAmount = big.NewInt(0)
	}
	if a.StartPrice == nil {
		a.StartPrice = big.NewInt(0)
	}
	if a.EndPrice == nil {
		a.EndPrice = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the auction record.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := &Auction{
		ID:        a.ID,
		Borrower:  a.Borrower,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Active:    a.Active,
	}
	if a.CollateralAmount != nil {
		clone.CollateralAmount = new(big.Int).Set(a.CollateralAmount)
	}
	if a.StartPrice != nil {
		clone.StartPrice = new(big.Int).Set(a.StartPrice)
	}
	if a.EndPrice != nil {
		clone.EndPrice = new(big.Int).Set(a.EndPrice)
	}
	return clone
}
