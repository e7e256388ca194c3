package amm

import "math/big"

var (
	basisPoints = big.NewInt(10_000)
	priceScale  = big.NewInt(100_000_000) // 1e8, octas per whole token
)

// mulDiv computes floor(a * b / denom). Division by zero yields zero; the
// callers guard reserves before reaching here.
func mulDiv(a, b, denom *big.Int) *big.Int {
	if a == nil || b == nil || denom == nil || denom.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Quo(product, denom)
}

// sqrtProduct returns floor(sqrt(a * b)), used to seed the share supply on the
// first liquidity deposit.
func sqrtProduct(a, b *big.Int) *big.Int {
	if a == nil || b == nil || a.Sign() <= 0 || b.Sign() <= 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	return product.Sqrt(product)
}

// applyFeeBps scales the input amount by (10000 - feeBps). The result keeps
// the basis-point factor so callers can fold it into a single floor division.
func applyFeeBps(amount *big.Int, feeBps uint64) *big.Int {
	factor := new(big.Int).SetUint64(10_000 - feeBps)
	return new(big.Int).Mul(amount, factor)
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
