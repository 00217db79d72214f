package position

// Default risk parameters. The collateral ratio and reward divisor mirror the
// venue's published terms; the interest rate is a flat annual percentage
// charged per elapsed block.
const (
	DefaultCollateralRatioPercent uint64 = 150
	DefaultInterestRatePercent    uint64 = 5
	DefaultBlocksPerYear          uint64 = 31_536_000
	DefaultBorrowRewardDivisor    uint64 = 100
)

// RiskParameters groups the safety limits governing borrowing activity.
type RiskParameters struct {
	// CollateralRatioPercent is the minimum collateral-to-debt ratio,
	// expressed as a percentage (150 means 150%).
	CollateralRatioPercent uint64
	// InterestRatePercent is the flat annual interest rate applied to
	// outstanding debt, expressed as a percentage.
	InterestRatePercent uint64
	// BlocksPerYear converts the annual rate into a per-block charge.
	BlocksPerYear uint64
	// BorrowRewardDivisor sizes the GMV reward fired on borrow as
	// amount / divisor. Zero disables the hook.
	BorrowRewardDivisor uint64
}

// EnsureDefaults fills zero-valued parameters with the published defaults.
func (p *RiskParameters) EnsureDefaults() {
	if p == nil {
		return
	}
	if p.CollateralRatioPercent == 0 {
		p.CollateralRatioPercent = DefaultCollateralRatioPercent
	}
	if p.InterestRatePercent == 0 {
		p.InterestRatePercent = DefaultInterestRatePercent
	}
	if p.BlocksPerYear == 0 {
		p.BlocksPerYear = DefaultBlocksPerYear
	}
	if p.BorrowRewardDivisor == 0 {
		p.BorrowRewardDivisor = DefaultBorrowRewardDivisor
	}
}
