package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/ucp-shopper/pkg/api"
)

// serveCommand creates the 'serve' command
func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Starts the HTTP API, live websocket and A2A endpoints",
		Flags:  serverFlags(),
		Action: serveCommandAction,
	}
}

// Web server flags override the configuration file.
func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "Host to bind the server to",
		},
		&cli.IntFlag{
			Name:  "port",
			Usage: "Port to bind the server to",
		},
		&cli.StringSliceFlag{
			Name:  "allow-origins",
			Usage: "Additional origins to allow for CORS",
		},
		&cli.StringFlag{
			Name:  "session-uri",
			Usage: "Session store URI (memory://, file://DIR, redis://HOST:PORT/DB)",
		},
		&cli.BoolFlag{
			Name:  "a2a",
			Usage: "Enable A2A endpoint",
		},
	}
}

func serveCommandAction(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if origins := c.StringSlice("allow-origins"); len(origins) > 0 {
		cfg.Server.AllowOrigins = append(cfg.Server.AllowOrigins, origins...)
	}
	if c.IsSet("session-uri") {
		cfg.Session.URI = c.String("session-uri")
	}
	if c.Bool("a2a") {
		cfg.Server.A2AEnabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Close(closeCtx)
	}()

	server := api.NewServer(cfg.Server, rt.runner, rt.metrics, log)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
