package core

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"apexcore/crypto"
	"apexcore/native/amm"
	nativecommon "apexcore/native/common"
	"apexcore/native/lending"
	"apexcore/state"
	"apexcore/storage"
)

// Config carries the protocol parameters the node hands to its engines.
type Config struct {
	// SwapFeeBps is the AMM trading fee, e.g. 30 for 0.3%.
	SwapFeeBps uint64
	// LiquidityToleranceBps bounds how far a liquidity deposit may deviate
	// from the pool ratio, e.g. 100 for 1%.
	LiquidityToleranceBps uint64
	// Risk holds the lending-side parameters.
	Risk lending.RiskParameters
}

// DefaultConfig mirrors the deployed protocol constants.
func DefaultConfig() Config {
	return Config{
		SwapFeeBps:            30,
		LiquidityToleranceBps: 100,
		Risk:                  lending.DefaultRiskParameters(),
	}
}

// Node is the central controller. It owns the database, serializes writers,
// and runs every mutation inside a state overlay so a failed operation leaves
// no partial writes behind.
//
// Lock order is pool, then position, then totals. The pool lock is exclusive
// for AMM mutations and shared for lending mutations, which only read the pool
// through the price oracle. The totals lock serializes lending mutations from
// different borrowers, which all read-modify-write the shared aggregates.
type Node struct {
	db     storage.Database
	feed   lending.ExternalFeed
	cfg    Config
	pauses nativecommon.PauseView
	clock  func() time.Time
	logger *slog.Logger

	poolMu   sync.RWMutex
	totalsMu sync.Mutex

	locksMu       sync.Mutex
	positionLocks map[[20]byte]*sync.Mutex
}

// NewNode wires a node over the given database and external price feed.
func NewNode(db storage.Database, feed lending.ExternalFeed, cfg Config) *Node {
	return &Node{
		db:            db,
		feed:          feed,
		cfg:           cfg,
		clock:         time.Now,
		logger:        slog.Default(),
		positionLocks: make(map[[20]byte]*sync.Mutex),
	}
}

// SetClock overrides the node's time source.
func (n *Node) SetClock(clock func() time.Time) {
	if n == nil || clock == nil {
		return
	}
	n.clock = clock
}

// SetPauses installs the module pause switchboard.
func (n *Node) SetPauses(p nativecommon.PauseView) {
	if n == nil {
		return
	}
	n.pauses = p
}

// SetLogger overrides the node's logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if n == nil || logger == nil {
		return
	}
	n.logger = logger
}

// Config returns the node's protocol parameters.
func (n *Node) Config() Config { return n.cfg }

func (n *Node) positionLock(addr crypto.Address) *sync.Mutex {
	n.locksMu.Lock()
	defer n.locksMu.Unlock()
	key := addr.Key()
	lock, ok := n.positionLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		n.positionLocks[key] = lock
	}
	return lock
}

// withOverlay runs fn against a staged view of the database and commits the
// staged writes only when fn succeeds.
func (n *Node) withOverlay(fn func(mgr *state.Manager) error) error {
	overlay := state.NewOverlay(n.db)
	if err := fn(state.NewManager(overlay)); err != nil {
		overlay.Discard()
		return err
	}
	return overlay.Commit()
}

func (n *Node) ammEngine(mgr *state.Manager) *amm.Engine {
	engine := amm.NewEngine(n.cfg.SwapFeeBps, n.cfg.LiquidityToleranceBps)
	engine.SetState(mgr)
	engine.SetPauses(n.pauses)
	return engine
}

func (n *Node) lendingEngine(mgr *state.Manager) *lending.Engine {
	engine := lending.NewEngine(n.cfg.Risk)
	engine.SetState(mgr)
	engine.SetOracle(lending.NewPoolOracle(n.feed, n.ammEngine(mgr)))
	engine.SetClock(n.clock)
	engine.SetPauses(n.pauses)
	return engine
}

// --- AMM surface ---

// Swap trades amountIn of assetIn against the pool and returns the realized
// output amount.
func (n *Node) Swap(assetIn amm.Asset, amountIn, minAmountOut *big.Int) (*big.Int, error) {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()

	var out *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		out, err = n.ammEngine(mgr).Swap(assetIn, amountIn, minAmountOut)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("swap executed", "asset_in", string(assetIn), "amount_in", amountIn.String(), "amount_out", out.String())
	return out, nil
}

// QuoteSwap prices a swap without mutating the pool.
func (n *Node) QuoteSwap(assetIn amm.Asset, amountIn *big.Int) (*big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	return n.ammEngine(state.NewManager(n.db)).Quote(assetIn, amountIn)
}

// AddLiquidity deposits both tokens for the provider and returns the minted
// share amount.
func (n *Node) AddLiquidity(provider crypto.Address, amountAPT, amountAPEX *big.Int) (*big.Int, error) {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	lock := n.positionLock(provider)
	lock.Lock()
	defer lock.Unlock()

	var minted *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		minted, err = n.ammEngine(mgr).AddLiquidity(provider, amountAPT, amountAPEX)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("liquidity added", "provider", provider.String(), "shares", minted.String())
	return minted, nil
}

// RemoveLiquidity burns the provider's shares and returns the withdrawn
// amounts as (APT, APEX).
func (n *Node) RemoveLiquidity(provider crypto.Address, shares *big.Int) (*big.Int, *big.Int, error) {
	n.poolMu.Lock()
	defer n.poolMu.Unlock()
	lock := n.positionLock(provider)
	lock.Lock()
	defer lock.Unlock()

	var outAPT, outAPEX *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		outAPT, outAPEX, err = n.ammEngine(mgr).RemoveLiquidity(provider, shares)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	n.logger.Info("liquidity removed", "provider", provider.String(), "shares", shares.String())
	return outAPT, outAPEX, nil
}

// PoolReserves returns the current reserves as (APT, APEX).
func (n *Node) PoolReserves() (*big.Int, *big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	return n.ammEngine(state.NewManager(n.db)).Reserves()
}

// SpotPrice returns the pool's instantaneous rate for the asset, 1e8 scaled.
func (n *Node) SpotPrice(asset amm.Asset) (*big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	return n.ammEngine(state.NewManager(n.db)).SpotPrice(asset)
}

// LiquidityShares returns the provider's share balance, zero when absent.
func (n *Node) LiquidityShares(provider crypto.Address) (*big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	position, err := state.NewManager(n.db).GetLiquidityPosition(provider)
	if err != nil {
		return nil, err
	}
	if position == nil || position.Shares == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(position.Shares), nil
}

// --- Lending surface ---

// DepositCollateral locks APT collateral for the borrower.
func (n *Node) DepositCollateral(addr crypto.Address, amount *big.Int) error {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	lock := n.positionLock(addr)
	lock.Lock()
	defer lock.Unlock()

	n.totalsMu.Lock()
	defer n.totalsMu.Unlock()

	err := n.withOverlay(func(mgr *state.Manager) error {
		return n.lendingEngine(mgr).DepositCollateral(addr, amount)
	})
	if err != nil {
		return err
	}
	n.logger.Info("collateral deposited", "addr", addr.String(), "amount", amount.String())
	return nil
}

// WithdrawCollateral releases collateral if the position stays healthy.
func (n *Node) WithdrawCollateral(addr crypto.Address, amount *big.Int) error {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	lock := n.positionLock(addr)
	lock.Lock()
	defer lock.Unlock()

	n.totalsMu.Lock()
	defer n.totalsMu.Unlock()

	err := n.withOverlay(func(mgr *state.Manager) error {
		return n.lendingEngine(mgr).WithdrawCollateral(addr, amount)
	})
	if err != nil {
		return err
	}
	n.logger.Info("collateral withdrawn", "addr", addr.String(), "amount", amount.String())
	return nil
}

// Borrow disburses APEX against the caller's collateral and returns the
// net amount after the borrow fee.
func (n *Node) Borrow(addr crypto.Address, amount *big.Int) (*big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	lock := n.positionLock(addr)
	lock.Lock()
	defer lock.Unlock()

	n.totalsMu.Lock()
	defer n.totalsMu.Unlock()

	var disbursed *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		disbursed, err = n.lendingEngine(mgr).Borrow(addr, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("borrow executed", "addr", addr.String(), "amount", amount.String(), "disbursed", disbursed.String())
	return disbursed, nil
}

// Repay applies a payment, interest first, and returns (applied, fee).
func (n *Node) Repay(addr crypto.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	lock := n.positionLock(addr)
	lock.Lock()
	defer lock.Unlock()

	n.totalsMu.Lock()
	defer n.totalsMu.Unlock()

	var applied, fee *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		applied, fee, err = n.lendingEngine(mgr).Repay(addr, amount)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	n.logger.Info("repay executed", "addr", addr.String(), "applied", applied.String(), "fee", fee.String())
	return applied, fee, nil
}

// RepayInterestOnly clears accrued interest and returns (applied, fee).
func (n *Node) RepayInterestOnly(addr crypto.Address) (*big.Int, *big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	lock := n.positionLock(addr)
	lock.Lock()
	defer lock.Unlock()

	n.totalsMu.Lock()
	defer n.totalsMu.Unlock()

	var applied, fee *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		applied, fee, err = n.lendingEngine(mgr).RepayInterestOnly(addr)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return applied, fee, nil
}

// Liquidate closes an undercollateralized position and returns the collateral
// split as (liquidatorReward, treasuryShare).
func (n *Node) Liquidate(liquidator, target crypto.Address) (*big.Int, *big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	lock := n.positionLock(target)
	lock.Lock()
	defer lock.Unlock()

	n.totalsMu.Lock()
	defer n.totalsMu.Unlock()

	var reward, treasury *big.Int
	err := n.withOverlay(func(mgr *state.Manager) error {
		var err error
		reward, treasury, err = n.lendingEngine(mgr).Liquidate(liquidator, target)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	n.logger.Info("position liquidated",
		"liquidator", liquidator.String(), "target", target.String(),
		"reward", reward.String(), "treasury", treasury.String())
	return reward, treasury, nil
}

// LendingPosition returns the stored borrower position.
func (n *Node) LendingPosition(addr crypto.Address) (*lending.UserPosition, error) {
	return n.lendingEngine(state.NewManager(n.db)).GetPosition(addr)
}

// ProtocolTotals returns the ledger-wide aggregates.
func (n *Node) ProtocolTotals() (*lending.ProtocolTotals, error) {
	return n.lendingEngine(state.NewManager(n.db)).GetTotals()
}

// CollateralRatio returns the position's projected ratio in basis points.
func (n *Node) CollateralRatio(addr crypto.Address) (uint64, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	return n.lendingEngine(state.NewManager(n.db)).CollateralRatio(addr)
}

// IsLiquidatable reports whether the position sits below the required ratio.
func (n *Node) IsLiquidatable(addr crypto.Address) (bool, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	return n.lendingEngine(state.NewManager(n.db)).IsLiquidatable(addr)
}

// PriceUSD returns the oracle's USD quote for the asset, 1e8 scaled.
func (n *Node) PriceUSD(asset amm.Asset) (*big.Int, error) {
	n.poolMu.RLock()
	defer n.poolMu.RUnlock()
	oracle := lending.NewPoolOracle(n.feed, n.ammEngine(state.NewManager(n.db)))
	return oracle.PriceUSD(asset)
}
