package server

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/rpsmatch/internal/bot"
	"github.com/lox/rpsmatch/internal/game"
)

// Config is the resolved runtime configuration the coordinator runs with,
// after file values and command line overrides are merged.
type Config struct {
	Addr    string
	DataDir string
	Rounds  int
	Points  game.Points
	Seed    int64
	Bot     BotOpponentConfig
}

// BotOpponentConfig controls the in-process simulated opponent. When
// enabled, every newly created session is immediately filled with one.
type BotOpponentConfig struct {
	Enabled  bool
	Strategy bot.Strategy
	MoveProb float64
}

// FileConfig is the HCL file representation of the server configuration.
type FileConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Game   *GameSettings  `hcl:"game,block"`
	Bot    *BotSettings   `hcl:"bot,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Addr     string `hcl:"addr,optional"`
	LogLevel string `hcl:"log_level,optional"`
	DataDir  string `hcl:"data_dir,optional"`
}

// GameSettings configures session shape and scoring.
type GameSettings struct {
	Rounds     int `hcl:"rounds,optional"`
	WinPoints  int `hcl:"win_points,optional"`
	LossPoints int `hcl:"loss_points,optional"`
	TiePoints  int `hcl:"tie_points,optional"`
}

// BotSettings configures the simulated opponent.
type BotSettings struct {
	Enabled  bool    `hcl:"enabled,optional"`
	Strategy string  `hcl:"strategy,optional"`
	MoveProb float64 `hcl:"move_prob,optional"`
}

// DefaultFileConfig returns the default configuration: 12 rounds, standard
// scoring, no simulated opponent.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Server: ServerSettings{
			Addr:     ":8080",
			LogLevel: "info",
			DataDir:  "./data",
		},
		Game: &GameSettings{
			Rounds:     12,
			WinPoints:  game.DefaultPoints.Win,
			LossPoints: game.DefaultPoints.Loss,
			TiePoints:  game.DefaultPoints.Tie,
		},
		Bot: &BotSettings{
			Enabled:  false,
			Strategy: bot.UniformRandom.String(),
			MoveProb: bot.DefaultMoveProb,
		},
	}
}

// LoadFileConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadFileConfig(filename string) (*FileConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultFileConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config FileConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultFileConfig()
	if config.Server.Addr == "" {
		config.Server.Addr = defaults.Server.Addr
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Server.DataDir == "" {
		config.Server.DataDir = defaults.Server.DataDir
	}
	if config.Game == nil {
		config.Game = defaults.Game
	} else {
		if config.Game.Rounds == 0 {
			config.Game.Rounds = defaults.Game.Rounds
		}
		if config.Game.WinPoints == 0 {
			config.Game.WinPoints = defaults.Game.WinPoints
		}
		if config.Game.LossPoints == 0 {
			config.Game.LossPoints = defaults.Game.LossPoints
		}
	}
	if config.Bot == nil {
		config.Bot = defaults.Bot
	} else {
		if config.Bot.Strategy == "" {
			config.Bot.Strategy = defaults.Bot.Strategy
		}
		if config.Bot.MoveProb == 0 {
			config.Bot.MoveProb = defaults.Bot.MoveProb
		}
	}

	return &config, nil
}

// Validate validates the file configuration.
func (c *FileConfig) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if c.Game.Rounds < 1 {
		return fmt.Errorf("rounds must be at least 1, got %d", c.Game.Rounds)
	}
	if _, err := bot.ParseStrategy(c.Bot.Strategy); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	if c.Bot.MoveProb <= 0 || c.Bot.MoveProb > 1 {
		return fmt.Errorf("bot move_prob must be in (0,1], got %v", c.Bot.MoveProb)
	}
	return nil
}

// Runtime resolves the file configuration into the runtime Config.
func (c *FileConfig) Runtime() (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	strategy, err := bot.ParseStrategy(c.Bot.Strategy)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Addr:    c.Server.Addr,
		DataDir: c.Server.DataDir,
		Rounds:  c.Game.Rounds,
		Points: game.Points{
			Win:  c.Game.WinPoints,
			Loss: c.Game.LossPoints,
			Tie:  c.Game.TiePoints,
		},
		Bot: BotOpponentConfig{
			Enabled:  c.Bot.Enabled,
			Strategy: strategy,
			MoveProb: c.Bot.MoveProb,
		},
	}, nil
}
