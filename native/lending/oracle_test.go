package lending

import (
	"errors"
	"math/big"
	"testing"

	"apexcore/native/amm"
)

type staticReserves struct {
	apt, apex *big.Int
	err       error
}

func (s staticReserves) Reserves() (*big.Int, *big.Int, error) {
	return s.apt, s.apex, s.err
}

func TestPoolOracleDerivesApexPrice(t *testing.T) {
	feed := FixedFeed{amm.AssetAPT: big.NewInt(470_000_000)}
	// 100 APT against 1000 APEX implies 0.1 APT per APEX, so $0.47.
	oracle := NewPoolOracle(feed, staticReserves{
		apt:  big.NewInt(100 * octas),
		apex: big.NewInt(1000 * octas),
	})

	price, err := oracle.PriceUSD(amm.AssetAPT)
	if err != nil {
		t.Fatalf("apt price: %v", err)
	}
	if price.Cmp(big.NewInt(470_000_000)) != 0 {
		t.Fatalf("unexpected apt price: %s", price)
	}

	price, err = oracle.PriceUSD(amm.AssetAPEX)
	if err != nil {
		t.Fatalf("apex price: %v", err)
	}
	if price.Cmp(big.NewInt(47_000_000)) != 0 {
		t.Fatalf("unexpected apex price: %s", price)
	}
}

func TestPoolOracleTracksPoolRatio(t *testing.T) {
	feed := FixedFeed{amm.AssetAPT: big.NewInt(470_000_000)}
	// A skewed pool moves the derived price with it: 200 APT per 1000 APEX
	// doubles the APEX quote.
	oracle := NewPoolOracle(feed, staticReserves{
		apt:  big.NewInt(200 * octas),
		apex: big.NewInt(1000 * octas),
	})
	price, err := oracle.PriceUSD(amm.AssetAPEX)
	if err != nil {
		t.Fatalf("apex price: %v", err)
	}
	if price.Cmp(big.NewInt(94_000_000)) != 0 {
		t.Fatalf("unexpected apex price: %s", price)
	}
}

func TestPoolOracleEmptyPool(t *testing.T) {
	feed := FixedFeed{amm.AssetAPT: big.NewInt(470_000_000)}
	oracle := NewPoolOracle(feed, staticReserves{
		apt:  big.NewInt(0),
		apex: big.NewInt(0),
	})
	if _, err := oracle.PriceUSD(amm.AssetAPEX); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected price unavailable, got %v", err)
	}
}

func TestPoolOracleMissingFeed(t *testing.T) {
	oracle := NewPoolOracle(FixedFeed{}, staticReserves{
		apt:  big.NewInt(100 * octas),
		apex: big.NewInt(1000 * octas),
	})
	if _, err := oracle.PriceUSD(amm.AssetAPT); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected price unavailable, got %v", err)
	}
}

func TestFixedFeedRejectsNonPositive(t *testing.T) {
	feed := FixedFeed{amm.AssetAPT: big.NewInt(0)}
	if _, err := feed.USDPrice(amm.AssetAPT); !errors.Is(err, ErrPriceUnavailable) {
		t.Fatalf("expected price unavailable, got %v", err)
	}
}
