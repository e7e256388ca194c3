package config

import "fmt"

const maxBps = 10_000

// Validate rejects parameter combinations the engines cannot operate under.
func (c *Config) Validate() error {
	p := c.Protocol
	if p.SwapFeeBps >= maxBps {
		return fmt.Errorf("protocol: SwapFeeBps %d must be below %d", p.SwapFeeBps, maxBps)
	}
	if p.LiquidityToleranceBps > maxBps {
		return fmt.Errorf("protocol: LiquidityToleranceBps %d must not exceed %d", p.LiquidityToleranceBps, maxBps)
	}
	if p.CollateralRatioBps < maxBps {
		return fmt.Errorf("protocol: CollateralRatioBps %d must be at least %d", p.CollateralRatioBps, maxBps)
	}
	if p.BorrowFeeBps >= maxBps || p.RepayFeeBps >= maxBps {
		return fmt.Errorf("protocol: borrow/repay fees must be below %d", maxBps)
	}
	if p.LiquidatorRewardBps > maxBps {
		return fmt.Errorf("protocol: LiquidatorRewardBps %d must not exceed %d", p.LiquidatorRewardBps, maxBps)
	}
	if c.Oracle.StaticAptUsdPrice < 0 {
		return fmt.Errorf("oracle: StaticAptUsdPrice must not be negative")
	}
	return nil
}
