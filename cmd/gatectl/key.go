package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newKeyCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
	}

	cmd.AddCommand(
		newKeyIssueCmd(c),
		newKeyListCmd(c),
		newKeyRevokeCmd(c),
	)
	return cmd
}

func newKeyIssueCmd(c *cli) *cobra.Command {
	var (
		accountID string
		label     string
		isTest    bool
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key (the plaintext is shown once)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := c.app.Issuer.Issue(cmd.Context(), accountID, label, isTest)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "key id: %s\n", k.KeyID)
			_, _ = fmt.Fprintf(out, "api key: %s\n", k.Plaintext)
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "store this key now; it cannot be shown again")
			return nil
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().StringVar(&label, "label", "", "free-form label")
	cmd.Flags().BoolVar(&isTest, "test", false, "issue a sk_test_ key")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newKeyListCmd(c *cli) *cobra.Command {
	var (
		accountID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the keys of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			keys, err := c.app.Issuer.List(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), keys)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tMODE\tLABEL\tSTATUS\tLAST USED")
			for _, k := range keys {
				status := "active"
				if !k.Active {
					status = "revoked"
				}
				last := "-"
				if k.LastUsedAt != nil {
					last = k.LastUsedAt.Format(time.RFC3339)
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Mode(), k.Label, status, last)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newKeyRevokeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := c.app.Issuer.Revoke(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "revoked %s at %s\n", k.ID, k.RevokedAt.Format(time.RFC3339))
			return nil
		},
	}
}
