package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/pulse/round"
)

func newRoundCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "round",
		Short: "Round operations",
	}
	cmd.AddCommand(
		roundGetCmd(a),
		roundListCmd(a),
		roundCreateCmd(a),
		roundFinalizeCmd(a),
		roundSeedCmd(a),
	)
	return cmd
}

func roundGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				r, err := c.GetRound(ctx, id)
				if err != nil {
					return err
				}
				if r == nil {
					return fmt.Errorf("round %d does not exist", id)
				}
				a.printRound(a.out, *r)
				return nil
			})
		},
	}
}

func roundListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>...",
		Short: "Show several rounds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint32, len(args))
			for i, s := range args {
				id, err := parseID(s)
				if err != nil {
					return err
				}
				ids[i] = id
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				rs, err := c.GetRounds(ctx, ids...)
				if err != nil {
					return err
				}
				now := time.Now()
				for i, r := range rs {
					if r == nil {
						fmt.Fprintf(a.out, "%d\tmissing\n", ids[i])
						continue
					}
					fmt.Fprintf(a.out, "%d\t%s\tpool %s\tends %s\n", r.ID, round.DeriveStatus(*r, now),
						round.FormatAmount(r.TotalPool, a.decimals), r.EndTime.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func roundCreateCmd(a *app) *cobra.Command {
	var (
		duration time.Duration
		commit   string
	)
	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Open a round committed to a seed digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				out, err := c.CreateRound(ctx, id, time.Now().Add(duration), commit)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "round %d created in ledger %d (tx %s)\n", id, out.Ledger, out.Hash)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "time until the round closes")
	cmd.Flags().StringVar(&commit, "commit", "", "hex SHA-256 digest of the seed")
	_ = cmd.MarkFlagRequired("commit")
	return cmd
}

func roundFinalizeCmd(a *app) *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "finalize <id>",
		Short: "Reveal the seed and settle a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			// Checked before connecting so a typo never reaches the wallet.
			if _, err := round.ParseSeed(seed); err != nil {
				return err
			}
			return a.withConn(cmd, func(ctx context.Context, c *conn) error {
				if _, err := c.FinalizeRound(ctx, id, seed); err != nil {
					return err
				}
				r, err := c.GetRound(ctx, id)
				if err != nil {
					return err
				}
				if r != nil {
					a.printRound(a.out, *r)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "hex seed whose digest was committed")
	_ = cmd.MarkFlagRequired("seed")
	return cmd
}

func roundSeedCmd(*app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Generate a random seed and its commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var seed round.Digest
			if _, err := rand.Read(seed[:]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed   %s\ncommit %s\n", hex.EncodeToString(seed[:]), round.CommitmentOf(seed))
			return nil
		},
	}
}

func (a *app) printRound(w io.Writer, r round.Round) {
	now := time.Now()
	fmt.Fprintf(w, "round %d\n", r.ID)
	fmt.Fprintf(w, "  status   %s\n", round.DeriveStatus(r, now))
	fmt.Fprintf(w, "  ends     %s\n", r.EndTime.Format(time.RFC3339))
	fmt.Fprintf(w, "  pool     %s\n", round.FormatAmount(r.TotalPool, a.decimals))
	for i, b := range r.BinTotals {
		fmt.Fprintf(w, "  bin %d    %s\n", i, round.FormatAmount(b, a.decimals))
	}
	if win, ok := r.Winner(); ok {
		fmt.Fprintf(w, "  winner   bin %d\n", win)
	}
}

func parseID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("round id %q: %w", s, err)
	}
	return uint32(v), nil
}
