package main

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/rpsmatch/cmd/rpsmatch/shared"
	"github.com/lox/rpsmatch/internal/server"
	"github.com/lox/rpsmatch/internal/server/results"
)

// ServerCmd contains core server configuration. Flags override values from
// the HCL config file.
type ServerCmd struct {
	Config      string   `kong:"default='rpsmatch.hcl',help='Path to HCL config file'"`
	Addr        string   `kong:"help='Server address (overrides config)'"`
	Debug       bool     `kong:"help='Enable debug logging'"`
	Rounds      int      `kong:"help='Rounds per session (overrides config)'"`
	DataDir     string   `kong:"help='Directory for session result files (overrides config)'"`
	BotOpponent bool     `kong:"help='Fill every new session with a simulated opponent'"`
	BotStrategy string   `kong:"help='Simulated opponent strategy (overrides config)'"`
	BotProb     *float64 `kong:"help='Dominant transition probability for the simulated opponent'"`
	Seed        *int64   `kong:"help='Deterministic RNG seed for simulated opponents (optional)'"`
}

func (c *ServerCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	fileCfg, err := server.LoadFileConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		fileCfg.Server.Addr = c.Addr
	}
	if c.Rounds != 0 {
		fileCfg.Game.Rounds = c.Rounds
	}
	if c.DataDir != "" {
		fileCfg.Server.DataDir = c.DataDir
	}
	if c.BotOpponent {
		fileCfg.Bot.Enabled = true
	}
	if c.BotStrategy != "" {
		fileCfg.Bot.Strategy = c.BotStrategy
	}
	if c.BotProb != nil {
		fileCfg.Bot.MoveProb = *c.BotProb
	}

	cfg, err := fileCfg.Runtime()
	if err != nil {
		return err
	}

	if c.Seed != nil {
		cfg.Seed = *c.Seed
		logger.Info().Int64("seed", cfg.Seed).Msg("Using deterministic seed")
	} else {
		cfg.Seed = time.Now().UnixNano()
		logger.Info().Int64("seed", cfg.Seed).Msg("Using random seed")
	}

	writer, err := results.NewWriter(cfg.DataDir, logger, quartz.NewReal())
	if err != nil {
		return err
	}
	defer writer.Close()

	registry := server.NewRegistry(logger)
	coordinator := server.NewCoordinator(cfg, registry, writer, quartz.NewReal(), logger)
	s := server.NewServer(cfg, coordinator, registry, logger)

	logger.Info().
		Str("addr", cfg.Addr).
		Int("rounds", cfg.Rounds).
		Str("data_dir", cfg.DataDir).
		Bool("bot_opponent", cfg.Bot.Enabled).
		Str("bot_strategy", cfg.Bot.Strategy.String()).
		Float64("bot_move_prob", cfg.Bot.MoveProb).
		Msg("Starting rpsmatch server")

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}
