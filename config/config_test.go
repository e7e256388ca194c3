package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadParsesProtocolSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `RPCAddress = "0.0.0.0:9000"
DataDir = "./data"
NetworkName = "apex-testnet"
Environment = "staging"

[protocol]
SwapFeeBps = 25
LiquidityToleranceBps = 50
CollateralRatioBps = 15000
InterestAPRBps = 800
BorrowFeeBps = 20
RepayFeeBps = 10
LiquidatorRewardBps = 500

[oracle]
StaticAptUsdPrice = 500000000
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected rpc address: %s", cfg.RPCAddress)
	}
	if cfg.NetworkName != "apex-testnet" {
		t.Fatalf("unexpected network: %s", cfg.NetworkName)
	}
	if cfg.Protocol.SwapFeeBps != 25 || cfg.Protocol.CollateralRatioBps != 15_000 {
		t.Fatalf("unexpected protocol params: %+v", cfg.Protocol)
	}
	if cfg.Oracle.StaticAptUsdPrice != 500_000_000 {
		t.Fatalf("unexpected oracle price: %d", cfg.Oracle.StaticAptUsdPrice)
	}
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" {
		t.Fatalf("unexpected default rpc address: %s", cfg.RPCAddress)
	}
	if cfg.Protocol != DefaultProtocol() {
		t.Fatalf("unexpected default protocol: %+v", cfg.Protocol)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	// Loading the persisted default must round-trip.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("default config did not round-trip: %+v vs %+v", again, cfg)
	}
}

func TestLoadRejectsBadRatio(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `[protocol]
SwapFeeBps = 30
LiquidityToleranceBps = 100
CollateralRatioBps = 9000
InterestAPRBps = 500
BorrowFeeBps = 10
RepayFeeBps = 5
LiquidatorRewardBps = 1000
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "CollateralRatioBps") {
		t.Fatalf("expected ratio validation error, got %v", err)
	}
}

func TestLoadFillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`NetworkName = "apex-devnet"`+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./apex-data" {
		t.Fatalf("missing DataDir default: %s", cfg.DataDir)
	}
	if cfg.Protocol.SwapFeeBps != 30 {
		t.Fatalf("missing protocol defaults: %+v", cfg.Protocol)
	}
	if cfg.Oracle.StaticAptUsdPrice != 470_000_000 {
		t.Fatalf("missing oracle default: %d", cfg.Oracle.StaticAptUsdPrice)
	}
}
