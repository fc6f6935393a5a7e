package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/pulse/session"
)

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Remember the connected wallet address",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "connect",
			Short: "Ask the wallet for its address and save it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withConn(cmd, func(ctx context.Context, c *conn) error {
					addr, err := c.Address(ctx)
					if err != nil {
						return err
					}
					if err := session.Open(a.cfg.SessionPath).Save(addr); err != nil {
						return err
					}
					fmt.Fprintf(a.out, "connected %s\n", addr)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the saved address and check it on the ledger",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store := session.Open(a.cfg.SessionPath)
				info, err := store.Info()
				if err != nil {
					return err
				}
				if info == nil {
					fmt.Fprintln(a.out, "no saved session")
					return nil
				}
				fmt.Fprintf(a.out, "%s  saved %s\n", info.Address, info.SavedAt.Format(time.RFC3339))
				return a.withConn(cmd, func(ctx context.Context, c *conn) error {
					acct, _, err := c.Resume(ctx, store)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "sequence %d\n", acct.Sequence)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the saved address",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return session.Open(a.cfg.SessionPath).Clear()
			},
		},
	)
	return cmd
}
