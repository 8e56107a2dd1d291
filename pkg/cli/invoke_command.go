package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/ucp-shopper/pkg/config"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/runners"
)

// invokeCommand creates the 'invoke' command
func invokeCommand() *cli.Command {
	return &cli.Command{
		Name:      "invoke",
		Usage:     "Runs a single tool call against a session and prints the result",
		ArgsUsage: "TOOL",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Value: "cli",
				Usage: "User the session belongs to",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session id; empty creates a new session",
			},
			&cli.StringFlag{
				Name:  "args",
				Value: "{}",
				Usage: "Tool arguments as a JSON object",
			},
			&cli.StringFlag{
				Name:  "payment-token",
				Usage: "Store a mock payment instrument with this token before the call",
			},
			&cli.StringFlag{
				Name:  "session-uri",
				Usage: "Session store URI; use file:// or redis:// to keep sessions between calls",
			},
		},
		Action: invokeCommandAction,
	}
}

func invokeCommandAction(c *cli.Context) error {
	if err := validateRequiredFlags(c, "user", "args"); err != nil {
		return err
	}
	tool := c.Args().First()
	if tool == "" {
		return fmt.Errorf("tool name is required")
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(c.String("args")), &args); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("session-uri") {
		cfg.Session.URI = c.String("session-uri")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx := c.Context
	rt, err := buildRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = rt.Close(closeCtx)
	}()

	userID, sessionID := c.String("user"), c.String("session")
	if token := c.String("payment-token"); token != "" {
		if sessionID == "" {
			return fmt.Errorf("--payment-token requires --session")
		}
		if err := rt.runner.SetPayment(ctx, userID, sessionID, mockPayment(cfg.Payment.Handlers, token)); err != nil {
			return err
		}
	}

	resp, err := rt.runner.Run(ctx, &runners.RunRequest{
		UserID:    userID,
		SessionID: sessionID,
		Tool:      tool,
		Args:      args,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func mockPayment(handlers []config.PaymentHandler, token string) *core.PaymentState {
	handlerID := "mock_payment_handler"
	if len(handlers) > 0 {
		handlerID = handlers[0].ID
	}
	return &core.PaymentState{
		Instrument: core.PaymentInstrument{
			ID:         "instr_cli",
			HandlerID:  handlerID,
			Type:       "card",
			Brand:      "amex",
			LastDigits: "1111",
			Token:      token,
		},
	}
}
