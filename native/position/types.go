package position

import "math/big"

// Position records a single account's collateral and synthetic debt. Amounts
// are expressed in base units as big integers. A record whose collateral and
// borrowed principal are both zero is considered non-existent; the reference
// price must be positive for the record to count as initialized.
type Position struct {
	// Collateral is the VLT amount locked against the debt.
	Collateral *big.Int `json:"collateral"`
	// Borrowed is the outstanding USDM principal, exclusive of interest
	// accrued since the last settlement.
	Borrowed *big.Int `json:"borrowed"`
	// LastAccrualMark is the monotonic block height at the last interest
	// settlement.
	LastAccrualMark uint64 `json:"lastAccrualMark"`
	// ReferencePrice is the caller-declared collateral price fixed at
	// initialization. The engine performs no validation on it; sourcing it
	// from a certified oracle is a hardening task tracked outside this
	// module.
	ReferencePrice *big.Int `json:"referencePrice"`
}

// Initialized reports whether the position has been opened with a reference
// price.
func (p *Position) Initialized() bool {
	return p != nil && p.ReferencePrice != nil && p.ReferencePrice.Sign() > 0
}

// EnsureDefaults populates nil amount fields so arithmetic is safe.
func (p *Position) EnsureDefaults() *Position {
	if p == nil {
		return nil
	}
	if p.Collateral == nil {
		p.Collateral = big.NewInt(0)
	}
	if p.Borrowed == nil {
		p.Borrowed = big.NewInt(0)
	}
	if p.ReferencePrice == nil {
		p.ReferencePrice = big.NewInt(0)
	}
	return p
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := &Position{LastAccrualMark: p.LastAccrualMark}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.Borrowed != nil {
		clone.Borrowed = new(big.Int).Set(p.Borrowed)
	}
	if p.ReferencePrice != nil {
		clone.ReferencePrice = new(big.Int).Set(p.ReferencePrice)
	}
	return clone
}

// Supply captures the global accounting state for the venue: how much
// collateral is locked and how much stable asset has been issued and retired.
type Supply struct {
	// TotalCollateral is the aggregate VLT held by the collateral vault.
	TotalCollateral *big.Int `json:"totalCollateral"`
	// TotalDebt tracks the outstanding USDM principal across all positions.
	TotalDebt *big.Int `json:"totalDebt"`
	// StableMinted is the cumulative USDM issued by borrow operations.
	StableMinted *big.Int `json:"stableMinted"`
	// StableRetired is the cumulative USDM pulled back by repayments.
	StableRetired *big.Int `json:"stableRetired"`
}

// EnsureDefaults populates nil fields so arithmetic is safe.
func (s *Supply) EnsureDefaults() *Supply {
	if s == nil {
		return &Supply{
			TotalCollateral: big.NewInt(0),
			TotalDebt:       big.NewInt(0),
			StableMinted:    big.NewInt(0),
			StableRetired:   big.NewInt(0),
		}
	}
	if s.TotalCollateral == nil {
		s.TotalCollateral = big.NewInt(0)
	}
	if s.TotalDebt == nil {
		s.TotalDebt = big.NewInt(0)
	}
	if s.StableMinted == nil {
		s.StableMinted = big.NewInt(0)
	}
	if s.StableRetired == nil {
		s.StableRetired = big.NewInt(0)
	}
	return s
}
