package lending

import "math/big"

var basisPoints = big.NewInt(10_000)

const secondsPerYear = 31_536_000

// interestDue computes the simple interest owed on the principal over the
// elapsed seconds at the configured APR, floored:
//
//	interest = principal * aprBps * elapsed / (10000 * secondsPerYear)
//
// Flooring keeps the ledger conservative; dust below one octa is deferred to
// the next accrual window rather than charged early.
func interestDue(principal *big.Int, aprBps uint64, elapsed uint64) *big.Int {
	if principal == nil || principal.Sign() == 0 || aprBps == 0 || elapsed == 0 {
		return big.NewInt(0)
	}
	numerator := new(big.Int).Mul(principal, new(big.Int).SetUint64(aprBps))
	numerator.Mul(numerator, new(big.Int).SetUint64(elapsed))
	denominator := new(big.Int).Mul(basisPoints, big.NewInt(secondsPerYear))
	return numerator.Quo(numerator, denominator)
}

// feeOn computes floor(amount * feeBps / 10000).
func feeOn(amount *big.Int, feeBps uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeBps))
	return fee.Quo(fee, basisPoints)
}
