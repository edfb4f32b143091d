package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rpsmatch/cmd/rpsmatch/shared"
	"github.com/lox/rpsmatch/internal/bot"
	"github.com/lox/rpsmatch/internal/client"
	"github.com/lox/rpsmatch/internal/randutil"
)

type BotCmd struct {
	Server   string  `default:"ws://localhost:8080/ws" help:"WebSocket server URL"`
	Count    int     `default:"1" help:"Number of bot participants to run"`
	Strategy string  `default:"uniform_random" help:"Move strategy"`
	Prob     float64 `default:"0.9" help:"Dominant transition probability"`
	IsTest   bool    `name:"istest" help:"Mark sessions as test runs"`
	Seed     *int64  `help:"Deterministic RNG seed (optional)"`
	LogLevel string  `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *BotCmd) Run() error {
	strategy, err := bot.ParseStrategy(c.Strategy)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(bot.StrategyNames(), ", "))
	}
	if c.Prob <= 0 || c.Prob > 1 {
		return fmt.Errorf("prob must be in (0,1], got %v", c.Prob)
	}

	logger := createBotLogger(c.LogLevel)

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}

	ctx := shared.SetupSignalHandler()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Count; i++ {
		botLogger := logger.With("bot", i)
		rng := randutil.New(seed + int64(i))
		engine := bot.NewEngine(strategy, c.Prob, rng, botLogger)
		runner := bot.NewRunner(client.New(c.Server, botLogger), engine, rng, botLogger)
		g.Go(func() error {
			return runner.Play(ctx, c.IsTest)
		})
	}
	return g.Wait()
}

func createBotLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if parsed, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return logger
}
