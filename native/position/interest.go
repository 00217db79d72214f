package position

import "math/big"

// AccruedInterest returns the simple interest charged on the borrowed
// principal over an elapsed block-height delta:
//
//	borrowed * ratePercent * elapsed / (100 * blocksPerYear)
//
// using floor division. Elapsed time is measured in blocks rather than wall
// clock so validators cannot skew interest by nudging timestamps. The
// function has no side effects; the engine folds the result into the
// position's principal before every state-changing operation.
func AccruedInterest(borrowed *big.Int, ratePercent uint64, elapsed uint64, blocksPerYear uint64) *big.Int {
	if borrowed == nil || borrowed.Sign() <= 0 || ratePercent == 0 || elapsed == 0 || blocksPerYear == 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(borrowed, new(big.Int).SetUint64(ratePercent))
	interest.Mul(interest, new(big.Int).SetUint64(elapsed))
	denominator := new(big.Int).Mul(big.NewInt(100), new(big.Int).SetUint64(blocksPerYear))
	return interest.Quo(interest, denominator)
}
