package amm

import (
	"errors"
	"fmt"
	"math/big"

	"apexcore/crypto"
	nativecommon "apexcore/native/common"
)

var (
	// ErrInvalidAmount flags a non-positive or malformed amount input.
	ErrInvalidAmount = errors.New("amm engine: amount must be positive")
	// ErrInvalidAsset flags an asset identifier outside the APT/APEX pair.
	ErrInvalidAsset = errors.New("amm engine: unknown asset")
	// ErrInsufficientLiquidity is returned when a reserve is empty or a trade
	// would drain the opposite reserve.
	ErrInsufficientLiquidity = errors.New("amm engine: insufficient liquidity")
	// ErrSlippageExceeded is returned when the quoted output falls below the
	// caller's minimum.
	ErrSlippageExceeded = errors.New("amm engine: slippage exceeded")
	// ErrRatioMismatch is returned when a liquidity deposit deviates from the
	// pool ratio beyond the configured tolerance.
	ErrRatioMismatch = errors.New("amm engine: deposit ratio mismatch")
	// ErrInsufficientShares is returned when a withdrawal exceeds the
	// provider's share balance.
	ErrInsufficientShares = errors.New("amm engine: insufficient shares")

	errNilState          = errors.New("amm engine: state not configured")
	errInvariantViolated = errors.New("amm engine: constant-product invariant violated")
)

const moduleName = "amm"

type engineState interface {
	GetPool() (*Pool, error)
	PutPool(pool *Pool) error
	GetLiquidityPosition(addr crypto.Address) (*LiquidityPosition, error)
	PutLiquidityPosition(position *LiquidityPosition) error
	DeleteLiquidityPosition(addr crypto.Address) error
}

// Engine prices trades under the constant-product rule and maintains the pool
// reserves and liquidity share supply.
type Engine struct {
	state        engineState
	swapFeeBps   uint64
	toleranceBps uint64
	pauses       nativecommon.PauseView
}

// NewEngine constructs a swap engine with the given fee and liquidity ratio
// tolerance, both in basis points.
func NewEngine(swapFeeBps, toleranceBps uint64) *Engine {
	return &Engine{swapFeeBps: swapFeeBps, toleranceBps: toleranceBps}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Reserves returns the current pool reserves as (APT, APEX).
func (e *Engine) Reserves() (*big.Int, *big.Int, error) {
	pool, err := e.ensurePool()
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).Set(pool.ReserveAPT), new(big.Int).Set(pool.ReserveAPEX), nil
}

// SpotPrice returns the instantaneous exchange rate of the asset in units of
// the opposite token, scaled by 1e8.
func (e *Engine) SpotPrice(asset Asset) (*big.Int, error) {
	if !asset.Valid() {
		return nil, ErrInvalidAsset
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	reserveAsset := pool.Reserve(asset)
	reserveOther := pool.Reserve(asset.Other())
	if reserveAsset.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	return mulDiv(reserveOther, priceScale, reserveAsset), nil
}

// Quote prices a swap without mutating the pool. The output is computed with
// the trading fee applied to the input and floored so value never leaks to the
// trader:
//
//	out = reserveOut * in * (10000 - fee) / (reserveIn * 10000 + in * (10000 - fee))
func (e *Engine) Quote(assetIn Asset, amountIn *big.Int) (*big.Int, error) {
	if !assetIn.Valid() {
		return nil, ErrInvalidAsset
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}
	return e.quote(pool, assetIn, amountIn)
}

func (e *Engine) quote(pool *Pool, assetIn Asset, amountIn *big.Int) (*big.Int, error) {
	reserveIn := pool.Reserve(assetIn)
	reserveOut := pool.Reserve(assetIn.Other())
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}
	inWithFee := applyFeeBps(amountIn, e.swapFeeBps)
	numerator := new(big.Int).Mul(reserveOut, inWithFee)
	denominator := new(big.Int).Mul(reserveIn, basisPoints)
	denominator.Add(denominator, inWithFee)
	out := numerator.Quo(numerator, denominator)
	if out.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	// The formula's asymptote keeps out below reserveOut; treat anything else
	// as an empty-pool condition rather than emitting a draining trade.
	if out.Cmp(reserveOut) >= 0 {
		return nil, ErrInsufficientLiquidity
	}
	return out, nil
}

// Swap executes a trade, crediting amountIn to the input reserve and debiting
// the quoted output from the opposite reserve. The realized output is returned.
func (e *Engine) Swap(assetIn Asset, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if !assetIn.Valid() {
		return nil, ErrInvalidAsset
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}

	out, err := e.quote(pool, assetIn, amountIn)
	if err != nil {
		return nil, err
	}
	if minAmountOut != nil && out.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf("%w: quoted %s below minimum %s", ErrSlippageExceeded, out, minAmountOut)
	}

	kBefore := pool.K()

	if assetIn == AssetAPT {
		pool.ReserveAPT = new(big.Int).Add(pool.ReserveAPT, amountIn)
		pool.ReserveAPEX = new(big.Int).Sub(pool.ReserveAPEX, out)
	} else {
		pool.ReserveAPEX = new(big.Int).Add(pool.ReserveAPEX, amountIn)
		pool.ReserveAPT = new(big.Int).Sub(pool.ReserveAPT, out)
	}

	if pool.K().Cmp(kBefore) < 0 {
		return nil, errInvariantViolated
	}

	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	return out, nil
}

// AddLiquidity deposits both tokens and mints pool shares. The first deposit
// seeds the share supply at sqrt(amountAPT * amountAPEX); later deposits must
// match the current reserve ratio within the configured tolerance and mint
// proportional shares.
func (e *Engine) AddLiquidity(provider crypto.Address, amountAPT, amountAPEX *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amountAPT == nil || amountAPT.Sign() <= 0 || amountAPEX == nil || amountAPEX.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	pool, err := e.ensurePool()
	if err != nil {
		return nil, err
	}

	var minted *big.Int
	if pool.TotalShares.Sign() == 0 {
		minted = sqrtProduct(amountAPT, amountAPEX)
		if minted.Sign() == 0 {
			return nil, ErrInvalidAmount
		}
	} else {
		if err := e.checkRatio(pool, amountAPT, amountAPEX); err != nil {
			return nil, err
		}
		byAPT := mulDiv(amountAPT, pool.TotalShares, pool.ReserveAPT)
		byAPEX := mulDiv(amountAPEX, pool.TotalShares, pool.ReserveAPEX)
		minted = minBig(byAPT, byAPEX)
		if minted.Sign() == 0 {
			return nil, ErrInvalidAmount
		}
	}

	pool.ReserveAPT = new(big.Int).Add(pool.ReserveAPT, amountAPT)
	pool.ReserveAPEX = new(big.Int).Add(pool.ReserveAPEX, amountAPEX)
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, minted)

	position, err := e.ensurePosition(provider)
	if err != nil {
		return nil, err
	}
	position.Shares = new(big.Int).Add(position.Shares, minted)

	if err := e.state.PutLiquidityPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, err
	}
	return minted, nil
}

// RemoveLiquidity burns the provider's shares and returns the proportional
// slice of both reserves. Positions are deleted once the share balance hits
// zero.
func (e *Engine) RemoveLiquidity(provider crypto.Address, shares *big.Int) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	pool, err := e.ensurePool()
	if err != nil {
		return nil, nil, err
	}
	if pool.TotalShares.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	position, err := e.ensurePosition(provider)
	if err != nil {
		return nil, nil, err
	}
	if position.Shares.Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientShares
	}

	outAPT := mulDiv(shares, pool.ReserveAPT, pool.TotalShares)
	outAPEX := mulDiv(shares, pool.ReserveAPEX, pool.TotalShares)

	pool.ReserveAPT = new(big.Int).Sub(pool.ReserveAPT, outAPT)
	pool.ReserveAPEX = new(big.Int).Sub(pool.ReserveAPEX, outAPEX)
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, shares)
	position.Shares = new(big.Int).Sub(position.Shares, shares)

	if position.Shares.Sign() == 0 {
		if err := e.state.DeleteLiquidityPosition(provider); err != nil {
			return nil, nil, err
		}
	} else {
		if err := e.state.PutLiquidityPosition(position); err != nil {
			return nil, nil, err
		}
	}
	if err := e.state.PutPool(pool); err != nil {
		return nil, nil, err
	}
	return outAPT, outAPEX, nil
}

// checkRatio verifies |amountAPT/amountAPEX - reserveAPT/reserveAPEX| stays
// within toleranceBps, using cross-multiplication so the comparison never
// divides.
func (e *Engine) checkRatio(pool *Pool, amountAPT, amountAPEX *big.Int) error {
	cross1 := new(big.Int).Mul(amountAPT, pool.ReserveAPEX)
	cross2 := new(big.Int).Mul(amountAPEX, pool.ReserveAPT)
	diff := new(big.Int).Sub(cross1, cross2)
	diff.Abs(diff)
	diff.Mul(diff, basisPoints)
	limit := new(big.Int).Mul(maxBig(cross1, cross2), new(big.Int).SetUint64(e.toleranceBps))
	if diff.Cmp(limit) > 0 {
		return ErrRatioMismatch
	}
	return nil
}

func (e *Engine) ensurePool() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.state.GetPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = &Pool{}
	}
	if pool.ReserveAPT == nil {
		pool.ReserveAPT = big.NewInt(0)
	}
	if pool.ReserveAPEX == nil {
		pool.ReserveAPEX = big.NewInt(0)
	}
	if pool.TotalShares == nil {
		pool.TotalShares = big.NewInt(0)
	}
	return pool, nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*LiquidityPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetLiquidityPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &LiquidityPosition{Addr: addr}
	}
	if position.Shares == nil {
		position.Shares = big.NewInt(0)
	}
	return position, nil
}
