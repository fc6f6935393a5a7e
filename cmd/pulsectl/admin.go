package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Contract administration",
	}
	cmd.AddCommand(adminGetCmd(a), adminInitCmd(a))
	return cmd
}

func adminGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the admin and betting token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				admin, ok, err := c.GetAdmin(ctx)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, "contract is not initialized")
					return nil
				}
				token, _, err := c.GetToken(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "admin  %s\ntoken  %s\n", admin, token)
				return nil
			})
		},
	}
}

func adminInitCmd(a *app) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the contract with the wallet as admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				token = a.cfg.TokenAddress
			}
			if token == "" {
				return errors.New("no token: pass --token or set token_address")
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				out, err := c.Initialize(ctx, token)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "initialized in ledger %d (tx %s)\n", out.Ledger, out.Hash)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "betting token contract address")
	return cmd
}
