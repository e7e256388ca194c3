package main

import (
	"flag"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"apexcore/config"
	"apexcore/core"
	"apexcore/native/amm"
	"apexcore/native/lending"
	"apexcore/observability/logging"
	"apexcore/rpc"
	"apexcore/storage"
)

// staticFeed serves the configured APT/USD price. Local and test deployments
// run without a live feed; the APEX leg is always derived from the pool.
type staticFeed struct {
	price *big.Int
}

func (f staticFeed) USDPrice(asset amm.Asset) (*big.Int, error) {
	if asset != amm.AssetAPT || f.price == nil || f.price.Sign() <= 0 {
		return nil, lending.ErrPriceUnavailable
	}
	return new(big.Int).Set(f.price), nil
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	memoryFlag := flag.Bool("memory", false, "DEV ONLY: run with an in-memory database")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("APEX_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if env == "" {
		env = strings.TrimSpace(cfg.Environment)
	}

	logger := logging.Setup("apexd", env, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	var db storage.Database
	if *memoryFlag {
		db = storage.NewMemDB()
	} else {
		leveldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = leveldb
	}
	defer db.Close()

	node := core.NewNode(db, staticFeed{price: big.NewInt(cfg.Oracle.StaticAptUsdPrice)}, core.Config{
		SwapFeeBps:            cfg.Protocol.SwapFeeBps,
		LiquidityToleranceBps: cfg.Protocol.LiquidityToleranceBps,
		Risk: lending.RiskParameters{
			CollateralRatioBps:  cfg.Protocol.CollateralRatioBps,
			InterestAPRBps:      cfg.Protocol.InterestAPRBps,
			BorrowFeeBps:        cfg.Protocol.BorrowFeeBps,
			RepayFeeBps:         cfg.Protocol.RepayFeeBps,
			LiquidatorRewardBps: cfg.Protocol.LiquidatorRewardBps,
		},
	})
	node.SetLogger(logger)

	server := rpc.NewServer(node)
	server.SetLogger(logger)

	logger.Info("starting apexd", "network", cfg.NetworkName, "rpc", cfg.RPCAddress)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server exited", "error", err)
		os.Exit(1)
	}
}
