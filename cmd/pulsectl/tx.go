package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/pulse/types"
)

func newTxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Transaction status",
	}
	cmd.AddCommand(txStatusCmd(a))
	return cmd
}

func txStatusCmd(a *app) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "status <hash>",
		Short: "Show, or wait for, a submitted transaction",
		Long: "Shows the ledger's record of a transaction. Use it after a\n" +
			"finality timeout: the transaction may still succeed.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				if wait > 0 {
					out, err := c.AwaitTransaction(ctx, args[0], wait)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.out, "%s  %s  ledger %d\n", out.Hash, out.Status, out.Ledger)
					return nil
				}
				rec, err := c.TransactionStatus(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s  %s", rec.Hash, rec.Status)
				if rec.Status.Terminal() {
					fmt.Fprintf(a.out, "  ledger %d", rec.Ledger)
				}
				if rec.Status == types.TxFailed {
					fmt.Fprintf(a.out, "  %s", rec.ResultCode)
				}
				fmt.Fprintln(a.out)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "poll until final or this long has passed")
	return cmd
}
