package lending

import (
	"errors"
	"math/big"
	"time"

	"apexcore/crypto"
	"apexcore/native/amm"
	nativecommon "apexcore/native/common"
)

var (
	// ErrInvalidAmount flags a non-positive or malformed amount input.
	ErrInvalidAmount = errors.New("lending engine: amount must be positive")
	// ErrInsufficientBalance is returned when the caller tries to withdraw
	// more collateral than deposited.
	ErrInsufficientBalance = errors.New("lending engine: insufficient balance")
	// ErrInsufficientCollateral is returned when a borrow would breach the
	// required collateral ratio.
	ErrInsufficientCollateral = errors.New("lending engine: insufficient collateral")
	// ErrWouldUndercollateralize is returned when a withdrawal would breach
	// the required collateral ratio.
	ErrWouldUndercollateralize = errors.New("lending engine: withdrawal would undercollateralize position")
	// ErrNoDebtToRepay is returned when repaying a position with no debt.
	ErrNoDebtToRepay = errors.New("lending engine: no outstanding debt to repay")
	// ErrNotLiquidatable is returned when liquidation targets a healthy
	// position.
	ErrNotLiquidatable = errors.New("lending engine: position not eligible for liquidation")
	// ErrPositionNotFound is returned for operations on a nonexistent
	// position.
	ErrPositionNotFound = errors.New("lending engine: position not found")

	errNilState  = errors.New("lending engine: state not configured")
	errNilOracle = errors.New("lending engine: price oracle not configured")
)

const moduleName = "lending"

type engineState interface {
	GetPosition(addr crypto.Address) (*UserPosition, error)
	PutPosition(position *UserPosition) error
	DeletePosition(addr crypto.Address) error
	GetTotals() (*ProtocolTotals, error)
	PutTotals(totals *ProtocolTotals) error
}

// Engine orchestrates the state transitions for the lending ledger: collateral
// custody, borrowing against the required ratio, lazy interest accrual, and
// liquidation of unhealthy positions.
type Engine struct {
	state  engineState
	oracle PriceOracle
	params RiskParameters
	clock  func() time.Time
	pauses nativecommon.PauseView
}

// NewEngine constructs a lending engine with the provided risk parameters.
func NewEngine(params RiskParameters) *Engine {
	return &Engine{params: params, clock: time.Now}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetOracle wires the price source consulted on every valuation.
func (e *Engine) SetOracle(oracle PriceOracle) {
	if e == nil {
		return
	}
	e.oracle = oracle
}

// SetClock overrides the time source. Accrual tests pin this to fixed
// instants.
func (e *Engine) SetClock(clock func() time.Time) {
	if e == nil || clock == nil {
		return
	}
	e.clock = clock
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// Params returns the engine's risk parameters.
func (e *Engine) Params() RiskParameters {
	if e == nil {
		return RiskParameters{}
	}
	return e.params
}

// DepositCollateral locks APT collateral for the borrower, creating the
// position on first use.
func (e *Engine) DepositCollateral(addr crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	position, err := e.ensurePosition(addr)
	if err != nil {
		return err
	}
	interestDelta := e.accrue(position)

	totals, err := e.ensureTotals()
	if err != nil {
		return err
	}

	position.Collateral = new(big.Int).Add(position.Collateral, amount)
	totals.TotalCollateral = new(big.Int).Add(totals.TotalCollateral, amount)
	totals.TotalDebt = new(big.Int).Add(totals.TotalDebt, interestDelta)

	if err := e.state.PutPosition(position); err != nil {
		return err
	}
	return e.state.PutTotals(totals)
}

// WithdrawCollateral releases APT back to the borrower while ensuring the
// remaining position stays at or above the required ratio. Interest accrues
// before the check so the debt valuation is never stale.
func (e *Engine) WithdrawCollateral(addr crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	position, err := e.loadPosition(addr)
	if err != nil {
		return err
	}
	interestDelta := e.accrue(position)

	if position.Collateral.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	remaining := new(big.Int).Sub(position.Collateral, amount)
	debt := position.Debt()
	if debt.Sign() > 0 {
		healthy, err := e.meetsRatio(remaining, debt)
		if err != nil {
			return err
		}
		if !healthy {
			return ErrWouldUndercollateralize
		}
	}

	totals, err := e.ensureTotals()
	if err != nil {
		return err
	}

	position.Collateral = remaining
	totals.TotalCollateral = new(big.Int).Sub(totals.TotalCollateral, amount)
	totals.TotalDebt = new(big.Int).Add(totals.TotalDebt, interestDelta)

	if err := e.state.PutTotals(totals); err != nil {
		return err
	}
	if position.IsEmpty() {
		return e.state.DeletePosition(addr)
	}
	return e.state.PutPosition(position)
}

// Borrow disburses APEX against the position's collateral. The borrow fee is
// deducted from the disbursement and credited to protocol fees; the full
// requested amount is recorded as principal. Returns the disbursed amount.
func (e *Engine) Borrow(addr crypto.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, err
	}
	interestDelta := e.accrue(position)

	projectedDebt := new(big.Int).Add(position.Debt(), amount)
	healthy, err := e.meetsRatio(position.Collateral, projectedDebt)
	if err != nil {
		return nil, err
	}
	if !healthy {
		return nil, ErrInsufficientCollateral
	}

	fee := feeOn(amount, e.params.BorrowFeeBps)
	disbursed := new(big.Int).Sub(amount, fee)

	totals, err := e.ensureTotals()
	if err != nil {
		return nil, err
	}

	position.PrincipalDebt = new(big.Int).Add(position.PrincipalDebt, amount)
	totals.TotalDebt = new(big.Int).Add(totals.TotalDebt, new(big.Int).Add(amount, interestDelta))
	totals.TotalFees = new(big.Int).Add(totals.TotalFees, fee)

	if err := e.state.PutPosition(position); err != nil {
		return nil, err
	}
	if err := e.state.PutTotals(totals); err != nil {
		return nil, err
	}
	return disbursed, nil
}

// Repay applies a payment against the position, interest first, then
// principal. Amounts above the outstanding debt are capped rather than
// rejected. The repay fee is charged on the amount actually applied. Returns
// (applied, fee).
func (e *Engine) Repay(addr crypto.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}

	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, nil, err
	}
	interestDelta := e.accrue(position)

	debt := position.Debt()
	if debt.Sign() == 0 {
		return nil, nil, ErrNoDebtToRepay
	}

	applied := new(big.Int).Set(amount)
	if applied.Cmp(debt) > 0 {
		applied = new(big.Int).Set(debt)
	}

	// Interest-first amortization.
	remainder := new(big.Int).Set(applied)
	interestPaid := minBig(remainder, position.AccruedInterest)
	position.AccruedInterest = new(big.Int).Sub(position.AccruedInterest, interestPaid)
	remainder = new(big.Int).Sub(remainder, interestPaid)
	if remainder.Sign() > 0 {
		position.PrincipalDebt = new(big.Int).Sub(position.PrincipalDebt, remainder)
	}

	fee := feeOn(applied, e.params.RepayFeeBps)

	totals, err := e.ensureTotals()
	if err != nil {
		return nil, nil, err
	}
	totals.TotalDebt = new(big.Int).Add(totals.TotalDebt, interestDelta)
	totals.TotalDebt = new(big.Int).Sub(totals.TotalDebt, applied)
	totals.TotalFees = new(big.Int).Add(totals.TotalFees, fee)

	if err := e.state.PutTotals(totals); err != nil {
		return nil, nil, err
	}
	if position.IsEmpty() {
		if err := e.state.DeletePosition(addr); err != nil {
			return nil, nil, err
		}
		return applied, fee, nil
	}
	if err := e.state.PutPosition(position); err != nil {
		return nil, nil, err
	}
	return applied, fee, nil
}

// RepayInterestOnly clears the accrued interest without touching principal.
// Returns (applied, fee).
func (e *Engine) RepayInterestOnly(addr crypto.Address) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}

	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, nil, err
	}
	interestDelta := e.accrue(position)

	if position.AccruedInterest.Sign() == 0 {
		return nil, nil, ErrNoDebtToRepay
	}

	applied := new(big.Int).Set(position.AccruedInterest)
	fee := feeOn(applied, e.params.RepayFeeBps)
	position.AccruedInterest = big.NewInt(0)

	totals, err := e.ensureTotals()
	if err != nil {
		return nil, nil, err
	}
	totals.TotalDebt = new(big.Int).Add(totals.TotalDebt, interestDelta)
	totals.TotalDebt = new(big.Int).Sub(totals.TotalDebt, applied)
	totals.TotalFees = new(big.Int).Add(totals.TotalFees, fee)

	if err := e.state.PutPosition(position); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutTotals(totals); err != nil {
		return nil, nil, err
	}
	return applied, fee, nil
}

// Liquidate closes an undercollateralized position. The liquidator receives
// LiquidatorRewardBps of the seized collateral; the remainder accrues to the
// protocol treasury. Returns (liquidatorShare, treasuryShare).
func (e *Engine) Liquidate(liquidator, target crypto.Address) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if liquidator.IsZero() {
		return nil, nil, ErrInvalidAmount
	}

	position, err := e.loadPosition(target)
	if err != nil {
		return nil, nil, err
	}
	interestDelta := e.accrue(position)

	debt := position.Debt()
	if debt.Sign() == 0 {
		return nil, nil, ErrNotLiquidatable
	}
	healthy, err := e.meetsRatio(position.Collateral, debt)
	if err != nil {
		return nil, nil, err
	}
	if healthy {
		return nil, nil, ErrNotLiquidatable
	}

	seized := new(big.Int).Set(position.Collateral)
	reward := feeOn(seized, e.params.LiquidatorRewardBps)
	treasury := new(big.Int).Sub(seized, reward)

	totals, err := e.ensureTotals()
	if err != nil {
		return nil, nil, err
	}
	totals.TotalCollateral = new(big.Int).Sub(totals.TotalCollateral, seized)
	totals.TotalDebt = new(big.Int).Add(totals.TotalDebt, interestDelta)
	totals.TotalDebt = new(big.Int).Sub(totals.TotalDebt, debt)
	totals.TreasuryAPT = new(big.Int).Add(totals.TreasuryAPT, treasury)

	if err := e.state.PutTotals(totals); err != nil {
		return nil, nil, err
	}
	// The position is fully reset regardless of collateral shortfall.
	if err := e.state.DeletePosition(target); err != nil {
		return nil, nil, err
	}
	return reward, treasury, nil
}

// GetPosition returns the stored position without projecting pending interest,
// so repeated reads with no intervening mutation are identical.
func (e *Engine) GetPosition(addr crypto.Address) (*UserPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}
	return position.Clone(), nil
}

// GetTotals returns the protocol-wide aggregates.
func (e *Engine) GetTotals() (*ProtocolTotals, error) {
	totals, err := e.ensureTotals()
	if err != nil {
		return nil, err
	}
	return totals.Clone(), nil
}

// CollateralRatio returns the position's current ratio in basis points,
// including interest projected to now. Zero debt yields a zero ratio, matching
// the view convention of the deployed contract.
func (e *Engine) CollateralRatio(addr crypto.Address) (uint64, error) {
	collateralValue, debtValue, err := e.projectedValues(addr)
	if err != nil {
		return 0, err
	}
	if debtValue.Sign() == 0 {
		return 0, nil
	}
	ratio := new(big.Int).Mul(collateralValue, basisPoints)
	ratio.Quo(ratio, debtValue)
	if !ratio.IsUint64() {
		return ^uint64(0), nil
	}
	return ratio.Uint64(), nil
}

// IsLiquidatable reports whether the position, with interest projected to now,
// sits below the required ratio.
func (e *Engine) IsLiquidatable(addr crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	position, err := e.loadPosition(addr)
	if err != nil {
		return false, err
	}
	e.accrue(position) // projection only; not persisted
	debt := position.Debt()
	if debt.Sign() == 0 {
		return false, nil
	}
	healthy, err := e.meetsRatio(position.Collateral, debt)
	if err != nil {
		return false, err
	}
	return !healthy, nil
}

// accrue materializes interest owed since the last touch into the position and
// stamps the accrual time. Returns the interest delta so totals can follow.
func (e *Engine) accrue(position *UserPosition) *big.Int {
	now := uint64(e.clock().Unix())
	if position.LastAccrual == 0 || now <= position.LastAccrual {
		position.LastAccrual = now
		return big.NewInt(0)
	}
	elapsed := now - position.LastAccrual
	delta := interestDue(position.PrincipalDebt, e.params.InterestAPRBps, elapsed)
	if delta.Sign() > 0 {
		position.AccruedInterest = new(big.Int).Add(position.AccruedInterest, delta)
	}
	position.LastAccrual = now
	return delta
}

// meetsRatio checks collateralValue >= debtValue * requiredRatio using fresh
// oracle prices and cross-multiplication, so no intermediate division loses
// precision:
//
//	collateral * priceAPT * 10000 >= debt * priceAPEX * ratioBps
func (e *Engine) meetsRatio(collateral, debt *big.Int) (bool, error) {
	if debt == nil || debt.Sign() == 0 {
		return true, nil
	}
	if collateral == nil || collateral.Sign() == 0 {
		return false, nil
	}
	if e.oracle == nil {
		return false, errNilOracle
	}
	priceAPT, err := e.oracle.PriceUSD(amm.AssetAPT)
	if err != nil {
		return false, err
	}
	priceAPEX, err := e.oracle.PriceUSD(amm.AssetAPEX)
	if err != nil {
		return false, err
	}
	lhs := new(big.Int).Mul(collateral, priceAPT)
	lhs.Mul(lhs, basisPoints)
	rhs := new(big.Int).Mul(debt, priceAPEX)
	rhs.Mul(rhs, new(big.Int).SetUint64(e.params.CollateralRatioBps))
	return lhs.Cmp(rhs) >= 0, nil
}

// projectedValues returns the USD value (1e8 scaled octas * price) of the
// position's collateral and debt with interest projected to now.
func (e *Engine) projectedValues(addr crypto.Address) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if e.oracle == nil {
		return nil, nil, errNilOracle
	}
	position, err := e.loadPosition(addr)
	if err != nil {
		return nil, nil, err
	}
	e.accrue(position) // projection only; not persisted
	priceAPT, err := e.oracle.PriceUSD(amm.AssetAPT)
	if err != nil {
		return nil, nil, err
	}
	priceAPEX, err := e.oracle.PriceUSD(amm.AssetAPEX)
	if err != nil {
		return nil, nil, err
	}
	collateralValue := new(big.Int).Mul(position.Collateral, priceAPT)
	debtValue := new(big.Int).Mul(position.Debt(), priceAPEX)
	return collateralValue, debtValue, nil
}

func (e *Engine) ensurePosition(addr crypto.Address) (*UserPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = &UserPosition{Addr: addr}
	}
	normalizePosition(position)
	return position, nil
}

// loadPosition is like ensurePosition but fails when the position does not
// exist, for operations that require prior state.
func (e *Engine) loadPosition(addr crypto.Address) (*UserPosition, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	position, err := e.state.GetPosition(addr)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}
	normalizePosition(position)
	return position, nil
}

func (e *Engine) ensureTotals() (*ProtocolTotals, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	totals, err := e.state.GetTotals()
	if err != nil {
		return nil, err
	}
	if totals == nil {
		totals = &ProtocolTotals{}
	}
	if totals.TotalCollateral == nil {
		totals.TotalCollateral = big.NewInt(0)
	}
	if totals.TotalDebt == nil {
		totals.TotalDebt = big.NewInt(0)
	}
	if totals.TotalFees == nil {
		totals.TotalFees = big.NewInt(0)
	}
	if totals.TreasuryAPT == nil {
		totals.TreasuryAPT = big.NewInt(0)
	}
	return totals, nil
}

func normalizePosition(position *UserPosition) {
	if position.Collateral == nil {
		position.Collateral = big.NewInt(0)
	}
	if position.PrincipalDebt == nil {
		position.PrincipalDebt = big.NewInt(0)
	}
	if position.AccruedInterest == nil {
		position.AccruedInterest = big.NewInt(0)
	}
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
