package amm

import (
	"errors"
	"math/big"
	"testing"

	"apexcore/crypto"
)

type mockEngineState struct {
	pool      *Pool
	positions map[[20]byte]*LiquidityPosition
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{positions: make(map[[20]byte]*LiquidityPosition)}
}

func (m *mockEngineState) GetPool() (*Pool, error) {
	return m.pool, nil
}

func (m *mockEngineState) PutPool(pool *Pool) error {
	m.pool = pool
	return nil
}

func (m *mockEngineState) GetLiquidityPosition(addr crypto.Address) (*LiquidityPosition, error) {
	if pos, ok := m.positions[addr.Key()]; ok {
		return pos, nil
	}
	return nil, nil
}

func (m *mockEngineState) PutLiquidityPosition(position *LiquidityPosition) error {
	if position == nil {
		return nil
	}
	m.positions[position.Addr.Key()] = position
	return nil
}

func (m *mockEngineState) DeleteLiquidityPosition(addr crypto.Address) error {
	delete(m.positions, addr.Key())
	return nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.ApexPrefix, raw)
}

func newTestEngine(pool *Pool) (*Engine, *mockEngineState) {
	engine := NewEngine(30, 100)
	state := newMockEngineState()
	state.pool = pool
	engine.SetState(state)
	return engine, state
}

func TestQuoteMatchesConstantProductFormula(t *testing.T) {
	// Pool 100/1000 with a 0.3% fee; swapping 10 A must floor to 90.
	engine, _ := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(316),
	})

	out, err := engine.Quote(AssetAPT, big.NewInt(10))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("unexpected quote: got %s want 90", out)
	}
}

func TestQuoteFailsOnEmptyReserve(t *testing.T) {
	engine, _ := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(0),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(0),
	})
	if _, err := engine.Quote(AssetAPT, big.NewInt(10)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

func TestQuoteRejectsInvalidInput(t *testing.T) {
	engine, _ := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
	})
	if _, err := engine.Quote(AssetAPT, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := engine.Quote(Asset("DOGE"), big.NewInt(1)); !errors.Is(err, ErrInvalidAsset) {
		t.Fatalf("expected invalid asset, got %v", err)
	}
}

func TestSwapUpdatesReservesAndGrowsK(t *testing.T) {
	engine, state := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(316),
	})
	kBefore := state.pool.K()

	out, err := engine.Swap(AssetAPT, big.NewInt(10), big.NewInt(85))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("unexpected output: got %s want 90", out)
	}
	if state.pool.ReserveAPT.Cmp(big.NewInt(110)) != 0 {
		t.Fatalf("unexpected APT reserve: %s", state.pool.ReserveAPT)
	}
	if state.pool.ReserveAPEX.Cmp(big.NewInt(910)) != 0 {
		t.Fatalf("unexpected APEX reserve: %s", state.pool.ReserveAPEX)
	}
	if state.pool.K().Cmp(kBefore) < 0 {
		t.Fatalf("constant product decreased: %s -> %s", kBefore, state.pool.K())
	}
}

func TestSwapSlippageGuard(t *testing.T) {
	engine, state := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(316),
	})
	if _, err := engine.Swap(AssetAPT, big.NewInt(10), big.NewInt(91)); !errors.Is(err, ErrSlippageExceeded) {
		t.Fatalf("expected slippage error, got %v", err)
	}
	// Failed swaps must not move reserves.
	if state.pool.ReserveAPT.Cmp(big.NewInt(100)) != 0 || state.pool.ReserveAPEX.Cmp(big.NewInt(1000)) != 0 {
		t.Fatal("reserves mutated by rejected swap")
	}
}

func TestSwapSequencePreservesInvariant(t *testing.T) {
	engine, state := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(1_000_000),
		ReserveAPEX: big.NewInt(10_000_000),
		TotalShares: big.NewInt(3_162_277),
	})
	k := state.pool.K()
	swaps := []struct {
		asset  Asset
		amount int64
	}{
		{AssetAPT, 12_345},
		{AssetAPEX, 500_001},
		{AssetAPT, 1},
		{AssetAPEX, 999_999},
		{AssetAPT, 777_77},
	}
	for i, s := range swaps {
		if _, err := engine.Swap(s.asset, big.NewInt(s.amount), nil); err != nil {
			t.Fatalf("swap %d: %v", i, err)
		}
		kNext := state.pool.K()
		if kNext.Cmp(k) < 0 {
			t.Fatalf("swap %d decreased k: %s -> %s", i, k, kNext)
		}
		k = kNext
	}
}

func TestSwapCannotDrainOppositeReserve(t *testing.T) {
	engine, state := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(10),
		ReserveAPEX: big.NewInt(10),
		TotalShares: big.NewInt(10),
	})
	// Even an absurdly large input leaves the opposite reserve positive.
	out, err := engine.Swap(AssetAPT, big.NewInt(1_000_000_000), nil)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Cmp(big.NewInt(10)) >= 0 {
		t.Fatalf("output %s would drain reserve", out)
	}
	if state.pool.ReserveAPEX.Sign() <= 0 {
		t.Fatalf("APEX reserve drained: %s", state.pool.ReserveAPEX)
	}
}

func TestAddLiquidityFirstDepositSeedsShares(t *testing.T) {
	engine, state := newTestEngine(nil)
	provider := makeAddress(0x01)

	shares, err := engine.AddLiquidity(provider, big.NewInt(100), big.NewInt(1000))
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	// floor(sqrt(100*1000)) = 316
	if shares.Cmp(big.NewInt(316)) != 0 {
		t.Fatalf("unexpected shares: got %s want 316", shares)
	}
	if state.pool.TotalShares.Cmp(big.NewInt(316)) != 0 {
		t.Fatalf("unexpected total shares: %s", state.pool.TotalShares)
	}
	position := state.positions[provider.Key()]
	if position == nil || position.Shares.Cmp(big.NewInt(316)) != 0 {
		t.Fatalf("unexpected position: %+v", position)
	}
}

func TestAddLiquidityEnforcesRatio(t *testing.T) {
	engine, _ := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(316),
	})
	provider := makeAddress(0x02)

	// 10:101 deviates ~1% above the pool's 1:10; tolerance is 100 bps so this
	// is within bounds.
	if _, err := engine.AddLiquidity(provider, big.NewInt(10), big.NewInt(101)); err != nil {
		t.Fatalf("deposit within tolerance rejected: %v", err)
	}
	// 10:120 is 20% off.
	if _, err := engine.AddLiquidity(provider, big.NewInt(10), big.NewInt(120)); !errors.Is(err, ErrRatioMismatch) {
		t.Fatalf("expected ratio mismatch, got %v", err)
	}
}

func TestAddRemoveLiquidityRoundTrip(t *testing.T) {
	engine, state := newTestEngine(nil)
	provider := makeAddress(0x03)

	amountAPT := big.NewInt(5_000_000)
	amountAPEX := big.NewInt(50_000_000)
	shares, err := engine.AddLiquidity(provider, amountAPT, amountAPEX)
	if err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	outAPT, outAPEX, err := engine.RemoveLiquidity(provider, shares)
	if err != nil {
		t.Fatalf("remove liquidity: %v", err)
	}
	// Sole provider removing all shares recovers the full deposit; rounding
	// tolerance of one unit per side.
	diffAPT := new(big.Int).Sub(amountAPT, outAPT)
	diffAPEX := new(big.Int).Sub(amountAPEX, outAPEX)
	if diffAPT.CmpAbs(big.NewInt(1)) > 0 || diffAPEX.CmpAbs(big.NewInt(1)) > 0 {
		t.Fatalf("round trip lost value: APT %s APEX %s", diffAPT, diffAPEX)
	}
	if _, ok := state.positions[provider.Key()]; ok {
		t.Fatal("zero-share position not deleted")
	}
}

func TestRemoveLiquidityRejectsExcessShares(t *testing.T) {
	engine, _ := newTestEngine(nil)
	provider := makeAddress(0x04)
	if _, err := engine.AddLiquidity(provider, big.NewInt(100), big.NewInt(1000)); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}
	if _, _, err := engine.RemoveLiquidity(provider, big.NewInt(400)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected insufficient shares, got %v", err)
	}
	other := makeAddress(0x05)
	if _, _, err := engine.RemoveLiquidity(other, big.NewInt(1)); !errors.Is(err, ErrInsufficientShares) {
		t.Fatalf("expected insufficient shares for stranger, got %v", err)
	}
}

func TestSpotPrice(t *testing.T) {
	engine, _ := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(316),
	})

	// 1 APT = 10 APEX, scaled by 1e8.
	price, err := engine.SpotPrice(AssetAPT)
	if err != nil {
		t.Fatalf("spot price: %v", err)
	}
	if price.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("unexpected APT price: %s", price)
	}

	price, err = engine.SpotPrice(AssetAPEX)
	if err != nil {
		t.Fatalf("spot price: %v", err)
	}
	if price.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("unexpected APEX price: %s", price)
	}
}

func TestSpotPriceEmptyReserve(t *testing.T) {
	engine, _ := newTestEngine(nil)
	if _, err := engine.SpotPrice(AssetAPT); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected insufficient liquidity, got %v", err)
	}
}

type pausedView struct{}

func (pausedView) IsPaused(module string) bool { return module == moduleName }

func TestMutationsRespectPause(t *testing.T) {
	engine, _ := newTestEngine(&Pool{
		ReserveAPT:  big.NewInt(100),
		ReserveAPEX: big.NewInt(1000),
		TotalShares: big.NewInt(316),
	})
	engine.SetPauses(pausedView{})
	if _, err := engine.Swap(AssetAPT, big.NewInt(10), nil); err == nil {
		t.Fatal("swap allowed while paused")
	}
	if _, err := engine.AddLiquidity(makeAddress(0x06), big.NewInt(1), big.NewInt(10)); err == nil {
		t.Fatal("add liquidity allowed while paused")
	}
}
