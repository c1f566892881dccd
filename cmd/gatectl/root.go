package main

import (
	"encoding/json"
	"fmt"
	"io"

	"extract-gateway/app"

	"github.com/spf13/cobra"
)

type cli struct {
	wire  wireFunc
	app   *app.App
	close func() error
}

func newRootCmd(wire wireFunc) *cobra.Command {
	c := &cli{wire: wire}
	rootCmd := &cobra.Command{
		Use:           "gatectl",
		Short:         "Manage gateway accounts, API keys and usage",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.app != nil {
				return nil
			}
			a, closeFn, err := c.wire(cmd.Context())
			if err != nil {
				return err
			}
			c.app, c.close = a, closeFn
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if c.close == nil {
				return nil
			}
			// drena last_used_at e fecha conexões
			return c.close()
		},
	}

	rootCmd.AddCommand(
		newAccountCmd(c),
		newKeyCmd(c),
		newUsageCmd(c),
		newStatsCmd(c),
	)
	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
