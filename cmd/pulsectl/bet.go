package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/blockberries/pulse/round"
)

func newBetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bet",
		Short: "Place or estimate bets",
	}
	cmd.AddCommand(betPlaceCmd(a), betEstimateCmd(a))
	return cmd
}

type betArgs struct {
	round, bin uint32
	amount     string
}

func parseBetArgs(args []string) (betArgs, error) {
	id, err := parseID(args[0])
	if err != nil {
		return betArgs{}, err
	}
	bin, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return betArgs{}, fmt.Errorf("bin %q: %w", args[1], err)
	}
	return betArgs{round: id, bin: uint32(bin), amount: args[2]}, nil
}

func betPlaceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "place <round> <bin> <amount>",
		Short: "Stake an amount on a bin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseBetArgs(args)
			if err != nil {
				return err
			}
			amount, err := round.ParseAmount(b.amount, a.decimals)
			if err != nil {
				return err
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				out, err := c.PlaceBet(ctx, b.round, b.bin, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "bet of %s on bin %d of round %d confirmed in ledger %d (tx %s)\n",
					round.FormatAmount(amount, a.decimals), b.bin, b.round, out.Ledger, out.Hash)
				return nil
			})
		},
	}
}

func betEstimateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <round> <bin> <amount>",
		Short: "Project the share and payout of a prospective bet",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := parseBetArgs(args)
			if err != nil {
				return err
			}
			amount, err := round.ParseAmount(b.amount, a.decimals)
			if err != nil {
				return err
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				est, err := c.EstimateBet(ctx, b.round, b.bin, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "share    %s%%\n", est.Share.StringFixed(2))
				fmt.Fprintf(a.out, "payout   %s if bin %d wins\n", round.FormatAmount(est.Payout, a.decimals), b.bin)
				fmt.Fprintf(a.out, "status   %s\n", est.Status)
				if !est.BettingOpen {
					fmt.Fprintln(a.out, "betting is closed for this round")
				}
				return nil
			})
		},
	}
}

func newClaimCmd(a *app) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "claim <round>",
		Short: "Withdraw winnings from a finalized round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				who := user
				if who == "" {
					addr, err := c.Address(ctx)
					if err != nil {
						return err
					}
					who = addr.String()
				}
				res, err := c.Claim(ctx, who, id)
				if err != nil {
					return err
				}
				if res.Payout == nil {
					fmt.Fprintf(a.out, "claim confirmed (tx %s)\n", res.Hash)
					return nil
				}
				fmt.Fprintf(a.out, "claimed %s from round %d (tx %s)\n", round.FormatAmount(res.Payout, a.decimals), id, res.Hash)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "claiming account (default: the wallet address)")
	return cmd
}
