package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/blockberries/pulse/devnet"
	pulsegrpc "github.com/blockberries/pulse/grpc"
	"github.com/blockberries/pulse/rpc"
	"github.com/blockberries/pulse/types"
)

func newDevnetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Local development ledger",
	}
	cmd.AddCommand(devnetServeCmd(a))
	return cmd
}

func devnetServeCmd(a *app) *cobra.Command {
	var (
		grpcAddr  string
		httpAddr  string
		closeEach time.Duration
		accounts  []string
		fund      []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory ledger over gRPC and JSON-RPC",
		Long: "Serves a devnet running the round contract. Ledgers close every\n" +
			"--close-every. Named --account keys are derived deterministically and\n" +
			"funded; their addresses are printed at start.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := a.log.With(zap.String("component", "devnet"))
			dn := devnet.New(devnet.WithLogger(a.log))
			keys := devnet.NewKeyring()
			for _, name := range accounts {
				addr, err := fundNamed(dn, keys, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "account %-10s %s\n", name, addr)
			}
			for _, spec := range fund {
				addr, tokens, err := parseFund(spec)
				if err != nil {
					return err
				}
				if _, err := dn.Fund(addr, tokens); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.out, "contract   %s\npassphrase %s\n", dn.Contract(), dn.Passphrase())

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveDevnet(ctx, log, dn, grpcAddr, httpAddr, closeEach)
		},
	}
	f := cmd.Flags()
	f.StringVar(&grpcAddr, "grpc", "127.0.0.1:9090", "gRPC listen address")
	f.StringVar(&httpAddr, "http", "127.0.0.1:8080", "JSON-RPC and /metrics listen address")
	f.DurationVar(&closeEach, "close-every", 5*time.Second, "ledger close interval")
	f.StringSliceVar(&accounts, "account", []string{"admin", "reader"}, "named accounts to derive and fund")
	f.StringSliceVar(&fund, "fund", nil, "address=tokens to fund")
	return cmd
}

func serveDevnet(ctx context.Context, log *zap.Logger, ledger *devnet.Devnet, grpcAddr, httpAddr string, closeEach time.Duration) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	closes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Subsystem: "devnet",
		Name:      "ledger_closes_total",
		Help:      "Ledgers closed.",
	})
	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pulse",
		Subsystem: "devnet",
		Name:      "pending_transactions",
		Help:      "Transactions queued for the next close.",
	}, func() float64 { return float64(ledger.Pending()) })
	reg.MustRegister(closes, pending)

	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}
	gs := grpc.NewServer(grpc.UnaryInterceptor(pulsegrpc.LoggingInterceptor(log)))
	pulsegrpc.NewGRPCServer(ledger).Register(gs)

	mux := http.NewServeMux()
	mux.Handle("/", rpc.NewServer(ledger, log))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	hs := &http.Server{Addr: httpAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", httpAddr))
		if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(closeEach)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if ledger.Pending() > 0 {
					seq := ledger.Close()
					closes.Inc()
					log.Debug("ledger closed", zap.Uint32("ledger", seq))
				}
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		gs.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func parseFund(spec string) (types.Address, int64, error) {
	addr, amount, ok := strings.Cut(spec, "=")
	if !ok {
		return "", 0, fmt.Errorf("fund %q: want address=tokens", spec)
	}
	a, err := types.ParseAddress(addr)
	if err != nil {
		return "", 0, fmt.Errorf("fund %q: %w", spec, err)
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("fund %q: %w", spec, err)
	}
	return a, n, nil
}
