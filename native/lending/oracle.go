package lending

import (
	"errors"
	"fmt"
	"math/big"

	"apexcore/native/amm"
)

// ErrPriceUnavailable is returned when an asset cannot be priced, either
// because the external feed has no quote or the pool ratio is undefined.
var ErrPriceUnavailable = errors.New("lending oracle: price unavailable")

// PriceOracle supplies USD prices for both tokens, scaled by 1e8. Prices are
// re-read on every valuation; the engine never caches them across an interest
// accrual step.
type PriceOracle interface {
	PriceUSD(asset amm.Asset) (*big.Int, error)
}

// ExternalFeed supplies the USD price of the reference asset (APT). In
// production this is an out-of-process price source; tests pin fixed values.
type ExternalFeed interface {
	USDPrice(asset amm.Asset) (*big.Int, error)
}

// ReserveSource exposes the pool reserves used to derive the APEX price from
// the APT feed. The AMM engine satisfies this interface.
type ReserveSource interface {
	Reserves() (*big.Int, *big.Int, error)
}

// PoolOracle composes the external APT/USD feed with the pool's implied
// exchange rate: priceUSD(APEX) = priceUSD(APT) * reserveAPT / reserveAPEX.
// Both steps are pure reads so the composition stays deterministic and
// replayable.
type PoolOracle struct {
	feed     ExternalFeed
	reserves ReserveSource
}

// NewPoolOracle wires the external feed and the reserve source together.
func NewPoolOracle(feed ExternalFeed, reserves ReserveSource) *PoolOracle {
	return &PoolOracle{feed: feed, reserves: reserves}
}

func (o *PoolOracle) PriceUSD(asset amm.Asset) (*big.Int, error) {
	if o == nil || o.feed == nil {
		return nil, ErrPriceUnavailable
	}
	aptPrice, err := o.feed.USDPrice(amm.AssetAPT)
	if err != nil {
		return nil, fmt.Errorf("external feed: %w", err)
	}
	if aptPrice == nil || aptPrice.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	if asset == amm.AssetAPT {
		return new(big.Int).Set(aptPrice), nil
	}
	if asset != amm.AssetAPEX {
		return nil, fmt.Errorf("%w: unknown asset %q", ErrPriceUnavailable, asset)
	}
	if o.reserves == nil {
		return nil, ErrPriceUnavailable
	}
	reserveAPT, reserveAPEX, err := o.reserves.Reserves()
	if err != nil {
		return nil, fmt.Errorf("pool reserves: %w", err)
	}
	if reserveAPT == nil || reserveAPEX == nil || reserveAPEX.Sign() == 0 {
		return nil, ErrPriceUnavailable
	}
	price := new(big.Int).Mul(aptPrice, reserveAPT)
	price.Quo(price, reserveAPEX)
	if price.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	return price, nil
}

// FixedFeed returns static USD prices. Used for tests and local runs without a
// live price source.
type FixedFeed map[amm.Asset]*big.Int

func (f FixedFeed) USDPrice(asset amm.Asset) (*big.Int, error) {
	price, ok := f[asset]
	if !ok || price == nil || price.Sign() <= 0 {
		return nil, ErrPriceUnavailable
	}
	return new(big.Int).Set(price), nil
}
