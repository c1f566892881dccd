package main

import (
	"fmt"
	"strconv"

	"extract-gateway/gating/application"

	"github.com/spf13/cobra"
)

type usageView struct {
	AccountID        string `json:"account_id"`
	Tier             string `json:"tier"`
	Month            string `json:"month"`
	MonthlyUsed      int64  `json:"monthly_used"`
	MonthlyLimit     int64  `json:"monthly_limit"`
	MonthlyRemaining int64  `json:"monthly_remaining"`
	Day              string `json:"day"`
	DailyUsed        int64  `json:"daily_used"`
	DailyLimit       int64  `json:"daily_limit,omitempty"`
	PerMinute        int    `json:"requests_per_minute"`
}

func newUsageCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "usage <account-id>",
		Short: "Show quota usage for the current month and day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.app.Quota.Usage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			v := newUsageView(args[0], st)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), v)
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "account: %s (tier %s)\n", v.AccountID, v.Tier)
			_, _ = fmt.Fprintf(out, "month %s: %d / %s\n", v.Month, v.MonthlyUsed, limitText(v.MonthlyLimit))
			_, _ = fmt.Fprintf(out, "day %s: %d / %s\n", v.Day, v.DailyUsed, limitText(v.DailyLimit))
			_, _ = fmt.Fprintf(out, "per minute: %d\n", v.PerMinute)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newUsageView(accountID string, st application.QuotaStatus) usageView {
	return usageView{
		AccountID:        accountID,
		Tier:             string(st.Tier),
		Month:            st.Monthly.WindowStart,
		MonthlyUsed:      st.Monthly.Count,
		MonthlyLimit:     st.Limits.MonthlyRequestLimit,
		MonthlyRemaining: st.MonthlyRemaining(),
		Day:              st.Daily.WindowStart,
		DailyUsed:        st.Daily.Count,
		DailyLimit:       st.Limits.DailyRequestLimit,
		PerMinute:        st.Limits.RequestsPerMinute,
	}
}

func limitText(n int64) string {
	switch {
	case n < 0:
		return "unlimited"
	case n == 0:
		return "no cap"
	default:
		return strconv.FormatInt(n, 10)
	}
}
