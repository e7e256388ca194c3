package lending

import (
	"math/big"

	"apexcore/crypto"
)

// UserPosition maintains the borrowing state for an individual account.
// Amounts are denominated in octas (1e8 fixed point).
type UserPosition struct {
	// Addr is the borrower's account address.
	Addr crypto.Address
	// Collateral is the APT amount pledged against the position.
	Collateral *big.Int
	// PrincipalDebt is the APEX amount borrowed, excluding interest.
	PrincipalDebt *big.Int
	// AccruedInterest is the APEX interest owed, materialized on touch.
	AccruedInterest *big.Int
	// LastAccrual is the unix timestamp of the last interest accrual.
	LastAccrual uint64
}

// Clone returns a deep copy of the position.
func (p *UserPosition) Clone() *UserPosition {
	if p == nil {
		return nil
	}
	clone := &UserPosition{Addr: p.Addr, LastAccrual: p.LastAccrual}
	if p.Collateral != nil {
		clone.Collateral = new(big.Int).Set(p.Collateral)
	}
	if p.PrincipalDebt != nil {
		clone.PrincipalDebt = new(big.Int).Set(p.PrincipalDebt)
	}
	if p.AccruedInterest != nil {
		clone.AccruedInterest = new(big.Int).Set(p.AccruedInterest)
	}
	return clone
}

// Debt returns principal plus accrued interest.
func (p *UserPosition) Debt() *big.Int {
	debt := new(big.Int)
	if p == nil {
		return debt
	}
	if p.PrincipalDebt != nil {
		debt.Add(debt, p.PrincipalDebt)
	}
	if p.AccruedInterest != nil {
		debt.Add(debt, p.AccruedInterest)
	}
	return debt
}

// IsEmpty reports whether the position carries neither collateral nor debt and
// can be removed from state.
func (p *UserPosition) IsEmpty() bool {
	if p == nil {
		return true
	}
	return (p.Collateral == nil || p.Collateral.Sign() == 0) && p.Debt().Sign() == 0
}

// ProtocolTotals aggregates the ledger-wide accounting figures. The totals are
// derived values and must always equal the sums over live positions.
type ProtocolTotals struct {
	// TotalCollateral is the APT locked across all positions.
	TotalCollateral *big.Int
	// TotalDebt is the outstanding APEX owed across all positions, interest
	// included.
	TotalDebt *big.Int
	// TotalFees is the APEX collected from borrow and repay fees.
	TotalFees *big.Int
	// TreasuryAPT is the APT seized during liquidations that was not paid out
	// as a liquidator reward.
	TreasuryAPT *big.Int
}

// Clone returns a deep copy of the totals.
func (t *ProtocolTotals) Clone() *ProtocolTotals {
	if t == nil {
		return nil
	}
	clone := &ProtocolTotals{}
	if t.TotalCollateral != nil {
		clone.TotalCollateral = new(big.Int).Set(t.TotalCollateral)
	}
	if t.TotalDebt != nil {
		clone.TotalDebt = new(big.Int).Set(t.TotalDebt)
	}
	if t.TotalFees != nil {
		clone.TotalFees = new(big.Int).Set(t.TotalFees)
	}
	if t.TreasuryAPT != nil {
		clone.TreasuryAPT = new(big.Int).Set(t.TreasuryAPT)
	}
	return clone
}

// RiskParameters groups the configuration constants governing lending
// activity, all expressed in basis points.
type RiskParameters struct {
	// CollateralRatioBps is the required collateral value over debt value,
	// e.g. 12000 for 120%.
	CollateralRatioBps uint64
	// InterestAPRBps is the fixed annual borrow rate, e.g. 500 for 5%.
	InterestAPRBps uint64
	// BorrowFeeBps is deducted from the disbursed amount on borrow.
	BorrowFeeBps uint64
	// RepayFeeBps is charged on the amount applied during repayment.
	RepayFeeBps uint64
	// LiquidatorRewardBps is the share of seized collateral paid to the
	// liquidator.
	LiquidatorRewardBps uint64
}

// DefaultRiskParameters mirrors the protocol's deployed configuration: 120%
// required ratio, 5% APR, 0.1% borrow fee, 0.05% repay fee, 10% liquidator
// reward.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		CollateralRatioBps:  12_000,
		InterestAPRBps:      500,
		BorrowFeeBps:        10,
		RepayFeeBps:         5,
		LiquidatorRewardBps: 1_000,
	}
}
