// Package cli implements the shopper command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/ucp-shopper/pkg/config"
	"github.com/agent-protocol/ucp-shopper/pkg/logger"
)

// Version information - will be set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// NewApp creates and configures the CLI application
func NewApp() *cli.App {
	app := &cli.App{
		Name:    "shopper",
		Usage:   "Capability-aware UCP shopping agent runtime",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime),
		Commands: []*cli.Command{
			serveCommand(),
			storesCommand(),
			invokeCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				EnvVars: []string{"SHOPPER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Logging level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Before: func(c *cli.Context) error {
			if err := config.LoadEnvFiles(); err != nil {
				return err
			}
			if c.Bool("verbose") {
				os.Setenv("SHOPPER_LOG_LEVEL", "debug")
			}
			return nil
		},
	}

	return app
}

// loadConfig reads the configuration named by the global flags and installs
// the default logger.
func loadConfig(c *cli.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	log, err := logger.Init(c.App.ErrWriter, cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// Helper function to validate required flags
func validateRequiredFlags(c *cli.Context, flags ...string) error {
	for _, flag := range flags {
		if c.String(flag) == "" {
			return fmt.Errorf("required flag --%s is missing", flag)
		}
	}
	return nil
}
