package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Protocol carries the economic parameters, all in basis points except the
// static feed price.
type Protocol struct {
	SwapFeeBps            uint64 `toml:"SwapFeeBps"`
	LiquidityToleranceBps uint64 `toml:"LiquidityToleranceBps"`
	CollateralRatioBps    uint64 `toml:"CollateralRatioBps"`
	InterestAPRBps        uint64 `toml:"InterestAPRBps"`
	BorrowFeeBps          uint64 `toml:"BorrowFeeBps"`
	RepayFeeBps           uint64 `toml:"RepayFeeBps"`
	LiquidatorRewardBps   uint64 `toml:"LiquidatorRewardBps"`
}

// Oracle configures the external price source. The static price serves local
// runs without a live feed; amounts are 1e8 scaled.
type Oracle struct {
	StaticAptUsdPrice int64 `toml:"StaticAptUsdPrice"`
}

type Config struct {
	RPCAddress    string `toml:"RPCAddress"`
	DataDir       string `toml:"DataDir"`
	NetworkName   string `toml:"NetworkName"`
	Environment   string `toml:"Environment"`
	LogFile       string `toml:"LogFile"`
	LogMaxSizeMB  int    `toml:"LogMaxSizeMB"`
	LogMaxBackups int    `toml:"LogMaxBackups"`

	Protocol Protocol `toml:"protocol"`
	Oracle   Oracle   `toml:"oracle"`
}

// DefaultProtocol mirrors the deployed constants: 0.3% swap fee, 1% liquidity
// tolerance, 120% collateral ratio, 5% APR, 0.1% borrow fee, 0.05% repay fee,
// 10% liquidator reward.
func DefaultProtocol() Protocol {
	return Protocol{
		SwapFeeBps:            30,
		LiquidityToleranceBps: 100,
		CollateralRatioBps:    12_000,
		InterestAPRBps:        500,
		BorrowFeeBps:          10,
		RepayFeeBps:           5,
		LiquidatorRewardBps:   1_000,
	}
}

// Load loads the configuration from the given path, creating a default file on
// first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./apex-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "apex-local"
	}
	if cfg.Protocol == (Protocol{}) {
		cfg.Protocol = DefaultProtocol()
	}
	if cfg.Oracle.StaticAptUsdPrice == 0 {
		cfg.Oracle.StaticAptUsdPrice = 470_000_000 // $4.70
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
