package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/negotiator"
	"github.com/agent-protocol/ucp-shopper/pkg/registry"
	"github.com/agent-protocol/ucp-shopper/pkg/tools"
)

// storesCommand creates the 'stores' command
func storesCommand() *cli.Command {
	return &cli.Command{
		Name:  "stores",
		Usage: "Lists configured stores and the negotiated default",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print machine-readable JSON",
			},
		},
		Action: storesCommandAction,
	}
}

func storesCommandAction(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}

	reg, err := registry.Load(cfg.Stores)
	if err != nil {
		return fmt.Errorf("failed to load stores: %w", err)
	}
	decision, reason := negotiator.ChooseDefaultWithReason(reg)

	out := c.App.Writer
	if c.Bool("json") {
		infos := make([]tools.StoreListing, 0, reg.Len())
		for _, st := range reg.List() {
			infos = append(infos, tools.StoreListing{
				StoreInfo:        st.Info(),
				SupportsCheckout: st.Supports(core.CapabilityCheckout),
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"stores":                    infos,
			"recommended_default_store": decision.SelectedStoreID,
			"reason":                    reason,
			"explanation":               decision.Explanation,
		})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRODUCTS\tCHECKOUT")
	for _, st := range reg.List() {
		info := st.Info()
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", info.ID, info.Name, info.ProductCount, st.Supports(core.CapabilityCheckout))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\ndefault: %s (%s)\n%s\n", decision.SelectedStoreID, reason, decision.Explanation)
	return nil
}
