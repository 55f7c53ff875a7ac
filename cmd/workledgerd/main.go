package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"workledger/config"
	"workledger/core"
	"workledger/core/state"
	"workledger/observability/logging"
	"workledger/rpc"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("WORKLEDGER_ENV"))
	logger := logging.Setup("workledgerd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var st *state.Manager
	if strings.TrimSpace(cfg.DataDir) == "" {
		logger.Warn("DataDir not set; ledger state will not survive restarts")
		st = state.NewManager()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			logger.Error("Failed to create data dir", slog.Any("error", err))
			os.Exit(1)
		}
		st, err = state.Open(filepath.Join(cfg.DataDir, "ledger.db"))
		if err != nil {
			logger.Error("Failed to open ledger database", slog.Any("error", err))
			os.Exit(1)
		}
	}
	defer st.Close()

	node, err := core.NewNode(cfg, st, nil, logger)
	if err != nil {
		logger.Error("Failed to initialise node", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(node)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.RPCAddress) }()
	logger.Info("workledger engine started",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
		slog.String("arbiter", cfg.ArbiterAddress))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
