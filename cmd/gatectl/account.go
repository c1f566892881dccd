package main

import (
	"fmt"
	"io"
	"time"

	"extract-gateway/gating/domain"

	"github.com/spf13/cobra"
)

func newAccountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	cmd.AddCommand(
		newAccountCreateCmd(c),
		newAccountGetCmd(c),
		newAccountActiveCmd(c, "suspend", "Suspend an account (its keys stop authenticating)", false),
		newAccountActiveCmd(c, "activate", "Reactivate a suspended account", true),
		newAccountSetTierCmd(c),
	)
	return cmd
}

func newAccountCreateCmd(c *cli) *cobra.Command {
	var (
		email  string
		tier   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			acc, err := c.app.Accounts.Create(cmd.Context(), email, domain.Tier(tier))
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), acc, asJSON)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&tier, "tier", string(domain.TierFree), "tier name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAccountGetCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "get <account-id>",
		Short: "Show an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := c.app.Accounts.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), acc, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAccountActiveCmd(c *cli, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <account-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := c.app.Accounts.SetActive(cmd.Context(), args[0], active)
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), acc, false)
		},
	}
}

func newAccountSetTierCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set-tier <account-id> <tier>",
		Short: "Move an account to another tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			acc, err := c.app.Accounts.SetTier(cmd.Context(), args[0], domain.Tier(args[1]))
			if err != nil {
				return err
			}
			return printAccount(cmd.OutOrStdout(), acc, false)
		},
	}
}

func printAccount(w io.Writer, acc domain.Account, asJSON bool) error {
	if asJSON {
		return writeJSON(w, acc)
	}
	status := "active"
	if !acc.Active {
		status = "suspended"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\tcreated %s\n",
		acc.ID, acc.Email, acc.Tier, status, acc.CreatedAt.Format(time.RFC3339))
	return nil
}
