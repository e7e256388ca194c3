package amm

import (
	"math/big"

	"apexcore/crypto"
)

// Asset identifies one side of the trading pair.
type Asset string

const (
	// AssetAPT is the collateral-side token of the pair.
	AssetAPT Asset = "APT"
	// AssetAPEX is the protocol token minted against the pool.
	AssetAPEX Asset = "APEX"
)

// Valid reports whether the asset names a side of the pool.
func (a Asset) Valid() bool {
	return a == AssetAPT || a == AssetAPEX
}

// Other returns the opposite side of the pair.
func (a Asset) Other() Asset {
	if a == AssetAPT {
		return AssetAPEX
	}
	return AssetAPT
}

// Pool captures the global reserve state for the constant-product market.
// Amounts are denominated in octas (1e8 fixed point) and expressed as big
// integers to keep the invariant arithmetic exact.
type Pool struct {
	// ReserveAPT is the APT balance currently held by the pool.
	ReserveAPT *big.Int
	// ReserveAPEX is the APEX balance currently held by the pool.
	ReserveAPEX *big.Int
	// TotalShares is the outstanding liquidity share supply.
	TotalShares *big.Int
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := &Pool{}
	if p.ReserveAPT != nil {
		clone.ReserveAPT = new(big.Int).Set(p.ReserveAPT)
	}
	if p.ReserveAPEX != nil {
		clone.ReserveAPEX = new(big.Int).Set(p.ReserveAPEX)
	}
	if p.TotalShares != nil {
		clone.TotalShares = new(big.Int).Set(p.TotalShares)
	}
	return clone
}

// K returns the constant-product invariant reserveAPT * reserveAPEX.
func (p *Pool) K() *big.Int {
	if p == nil || p.ReserveAPT == nil || p.ReserveAPEX == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(p.ReserveAPT, p.ReserveAPEX)
}

// Reserve returns the reserve backing the given asset.
func (p *Pool) Reserve(asset Asset) *big.Int {
	if asset == AssetAPT {
		return p.ReserveAPT
	}
	return p.ReserveAPEX
}

// LiquidityPosition records a provider's claim on the pool.
type LiquidityPosition struct {
	// Addr is the provider's account address.
	Addr crypto.Address
	// Shares is the provider's portion of Pool.TotalShares.
	Shares *big.Int
}

// Clone returns a deep copy of the liquidity position.
func (p *LiquidityPosition) Clone() *LiquidityPosition {
	if p == nil {
		return nil
	}
	clone := &LiquidityPosition{Addr: p.Addr}
	if p.Shares != nil {
		clone.Shares = new(big.Int).Set(p.Shares)
	}
	return clone
}
