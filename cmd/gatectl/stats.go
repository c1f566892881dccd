package main

import (
	"errors"
	"fmt"
	"sort"

	rldomain "extract-gateway/middleware/ratelimit/domain"
	rlinfra "extract-gateway/middleware/ratelimit/infra"

	"github.com/spf13/cobra"
)

func newStatsCmd(c *cli) *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show gate decision counters (requires STATS_ENABLED)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rs, ok := c.app.Stats.(*rlinfra.RedisStatsStore)
			if !ok {
				return errors.New("stats are not enabled; set STATS_ENABLED=true and REDIS_ADDR")
			}

			var (
				counters rlinfra.Counters
				err      error
			)
			if accountID != "" {
				counters, err = rs.KeyTotals(cmd.Context(), rldomain.Key(accountID))
			} else {
				counters, err = rs.Totals(cmd.Context())
			}
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), counters)
			}

			outcomes := make([]string, 0, len(counters))
			for o := range counters {
				outcomes = append(outcomes, string(o))
			}
			sort.Strings(outcomes)
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				_, _ = fmt.Fprintf(out, "%s\t%d\n", o, counters[rldomain.Outcome(o)])
			}
			_, _ = fmt.Fprintf(out, "denied\t%d\n", counters.Denied())
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "only this account (needs STATS_TRACK_KEYS)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
