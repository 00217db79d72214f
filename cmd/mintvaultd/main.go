package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"mintvault/config"
	"mintvault/core/events"
	"mintvault/observability/logging"
	"mintvault/crypto"
	"mintvault/native/auction"
	nativecommon "mintvault/native/common"
	"mintvault/native/position"
	"mintvault/native/rewards"
	"mintvault/rpc"
	"mintvault/state"
	"mintvault/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "path to mintvaultd configuration")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		fmt.Fprintf(os.Stderr, "mintvaultd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logWriter := io.Writer(os.Stdout)
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
		}
		defer rotator.Close()
		logWriter = io.MultiWriter(os.Stdout, rotator)
	}
	logger := logging.Setup("mintvaultd", cfg.Env, logWriter)

	db, err := openDatabase(cfg.DataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := state.NewLedger(db)
	if err := seedGenesis(ledger, cfg, logger); err != nil {
		return err
	}

	emitter := events.LogEmitter{Logger: logger}
	pauses := nativecommon.Pauses{Position: cfg.Pauses.Position, Auction: cfg.Pauses.Auction}

	hook := rewards.NewHook(rewardTreasuryAddress(), ledger, logger)
	hook.SetEmitter(emitter)

	auctions := auction.NewEngine(crypto.ModuleAddress("auction-vault"), crypto.ModuleAddress("auction-proceeds"))
	auctions.SetState(ledger)
	auctions.SetWindow(cfg.Risk.AuctionWindowSeconds)
	auctions.SetBidRewardDivisor(cfg.Risk.BidRewardDivisor)
	auctions.SetRewards(hook)
	auctions.SetEmitter(emitter)
	auctions.SetPauses(pauses)

	positions := position.NewEngine(crypto.ModuleAddress("collateral-vault"), position.RiskParameters{
		CollateralRatioPercent: cfg.Risk.CollateralRatioPercent,
		InterestRatePercent:    cfg.Risk.InterestRatePercent,
		BlocksPerYear:          cfg.Risk.BlocksPerYear,
		BorrowRewardDivisor:    cfg.Risk.BorrowRewardDivisor,
	})
	positions.SetState(ledger)
	positions.SetAuctioneer(auctions)
	positions.SetRewards(hook)
	positions.SetEmitter(emitter)
	positions.SetPauses(pauses)

	height, err := ledger.Height()
	if err != nil {
		return err
	}
	positions.SetBlockHeight(height)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runBlockTicker(ctx, positions, ledger, cfg.BlockIntervalSeconds, logger)

	server := rpc.NewServer(positions, auctions, logger, rpc.NewAuthorizer(cfg.JWTSecret))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", server.Router())

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openDatabase(dataDir string) (storage.Database, error) {
	if dataDir == "" || dataDir == ":memory:" {
		return storage.NewMemDB(), nil
	}
	return storage.NewLevelDB(dataDir)
}

func rewardTreasuryAddress() crypto.Address {
	return crypto.ModuleAddress("reward-treasury")
}

// runBlockTicker advances the monotonic accrual height. One tick is one
// block; the height is persisted so interest marks survive restarts.
func runBlockTicker(ctx context.Context, positions *position.Engine, ledger *state.Ledger, intervalSeconds uint64, logger *slog.Logger) {
	if intervalSeconds == 0 {
		intervalSeconds = 1
	}
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := positions.BlockHeight() + 1
			positions.SetBlockHeight(next)
			if err := ledger.SetHeight(next); err != nil {
				logger.Error("persist height", "error", err)
			}
		}
	}
}

// seedGenesis applies the configured balances exactly once per data
// directory.
func seedGenesis(ledger *state.Ledger, cfg *config.Config, logger *slog.Logger) error {
	seeded, err := ledger.Seeded()
	if err != nil {
		return err
	}
	if seeded {
		return nil
	}
	for _, entry := range cfg.Genesis {
		addr, err := crypto.DecodeAddress(entry.Address)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		account, err := ledger.GetAccount(addr)
		if err != nil {
			return err
		}
		account = account.EnsureBalances()
		if account.BalanceVLT, err = config.ParseAmount(entry.VLT); err != nil {
			return err
		}
		if account.BalanceUSDM, err = config.ParseAmount(entry.USDM); err != nil {
			return err
		}
		if account.BalanceGMV, err = config.ParseAmount(entry.GMV); err != nil {
			return err
		}
		if err := ledger.PutAccount(addr, account); err != nil {
			return err
		}
	}
	treasury, err := config.ParseAmount(cfg.RewardTreasuryGMV)
	if err != nil {
		return err
	}
	if treasury.Sign() > 0 {
		addr := rewardTreasuryAddress()
		account, err := ledger.GetAccount(addr)
		if err != nil {
			return err
		}
		account = account.EnsureBalances()
		account.BalanceGMV = treasury
		if err := ledger.PutAccount(addr, account); err != nil {
			return err
		}
	}
	if err := ledger.MarkSeeded(); err != nil {
		return err
	}
	logger.Info("genesis applied", "accounts", len(cfg.Genesis))
	return nil
}
