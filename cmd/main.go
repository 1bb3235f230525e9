package main

import (
	"fmt"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"equity-token/config"
	"equity-token/db"
	"equity-token/logger"
	"equity-token/repository"
	"equity-token/vesting"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "equity-token",
	Short: "Vesting ledger for the DEFIMON equity token",
	Long: `Runs the equity token ledger: participant allocations, a cliff and linear ` +
		`vesting schedule, and the claim path that releases vested tokens.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd, validateCmd)
}

// setup loads config, initializes the logger and opens the ledger
func setup() (*config.Config, *vesting.Token, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level); err != nil {
		return nil, nil, nil, fmt.Errorf("initialize logger: %w", err)
	}

	// Connect to LevelDB
	ldb, err := db.NewLevelDB(cfg.LevelDB.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open leveldb %s: %w", cfg.LevelDB.Path, err)
	}

	repo := repository.NewLedgerRepository(ldb)
	token, err := vesting.NewToken(repo, clock.New(), vesting.Config{
		Address: cfg.TokenAddress(),
		Owner:   cfg.OwnerAddress(),
		Terms: vesting.Terms{
			CliffDuration:   cfg.Vesting.CliffDuration,
			VestingDuration: cfg.Vesting.VestingDuration,
		},
		InitialValuation: cfg.Token.InitialValuation,
	})
	if err != nil {
		ldb.Close()
		return nil, nil, nil, err
	}

	closeFn := func() {
		if err := ldb.Close(); err != nil {
			logger.Logger.Warn("Failed closing leveldb", zap.Error(err))
		}
		logger.Logger.Sync()
	}
	return cfg, token, closeFn, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
