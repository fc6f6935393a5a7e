package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/client"
	"github.com/blockberries/pulse/config"
	"github.com/blockberries/pulse/devnet"
	pulsegrpc "github.com/blockberries/pulse/grpc"
	"github.com/blockberries/pulse/local"
	"github.com/blockberries/pulse/logging"
	"github.com/blockberries/pulse/rpc"
	"github.com/blockberries/pulse/signer"
	"github.com/blockberries/pulse/types"
)

// app carries settings shared by every subcommand.
type app struct {
	out     io.Writer
	cfgPath string
	cfg     config.Config
	log     *zap.Logger

	decimals int32
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}
	cmd := &cobra.Command{
		Use:           "pulsectl",
		Short:         "Pari-mutuel round contract client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	cmd.SetOut(out)

	f := cmd.PersistentFlags()
	f.StringVar(&a.cfgPath, "config", "", "TOML configuration file")
	f.String("transport", "", "ledger transport: jsonrpc, grpc or devnet")
	f.String("rpc-url", "", "ledger endpoint")
	f.String("contract", "", "round contract address")
	f.String("passphrase", "", "network passphrase")
	f.String("read-account", "", "funded account used for read-only calls")
	f.String("signer", "", "wallet agent command")
	f.String("log-level", "", "log level")
	f.String("metrics-addr", "", "serve pipeline metrics on this address")
	f.Bool("dev-mode", false, "substitute placeholder rounds for missing ones")
	f.Int32Var(&a.decimals, "decimals", 0, "token decimals used to render amounts")

	cmd.AddCommand(
		newRoundCmd(a),
		newBetCmd(a),
		newClaimCmd(a),
		newAdminCmd(a),
		newTxCmd(a),
		newSessionCmd(a),
		newDevnetCmd(a),
	)
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	for name, dst := range map[string]*string{
		"transport":    &cfg.Transport,
		"rpc-url":      &cfg.RPCURL,
		"contract":     &cfg.ContractID,
		"passphrase":   &cfg.NetworkPassphrase,
		"read-account": &cfg.ReadAccount,
		"signer":       &cfg.SignerCommand,
		"log-level":    &cfg.Log.Level,
		"metrics-addr": &cfg.MetricsAddr,
	} {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	if f.Changed("dev-mode") {
		cfg.DevMode, _ = f.GetBool("dev-mode")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log, err = logging.New(cfg.Log)
	return err
}

// conn is an open ledger connection with the client built on it.
type conn struct {
	*client.Client
	ledger *local.Connection
	remote pulse.Ledger
	// net is set for the in-process devnet.
	net     *devnet.Devnet
	metrics *metricsServer
}

func (c *conn) Close() error {
	c.ledger.Close()
	c.metrics.Close()
	if rc, ok := c.remote.(pulse.Connection); ok {
		return rc.Close()
	}
	return nil
}

// connect opens the configured transport. The in-process devnet lives
// for one invocation: its admin key signs unless a wallet agent is
// configured.
func (a *app) connect(ctx context.Context) (*conn, error) {
	var (
		remote     pulse.Ledger
		net        *devnet.Devnet
		s          pulse.Signer
		contract   types.Address
		passphrase string
	)
	cfg := a.cfg
	switch cfg.Transport {
	case config.TransportGRPC:
		c, err := pulsegrpc.Dial(ctx, cfg.RPCURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, err
		}
		remote = c
	case config.TransportJSONRPC:
		remote = rpc.NewClient(cfg.RPCURL, cfg.CallTimeout, rpc.WithClientLogger(a.log))
	case config.TransportDevnet:
		net = devnet.New(devnet.WithLogger(a.log), devnet.WithAutoClose(true))
		keys := devnet.NewKeyring()
		admin, err := fundNamed(net, keys, "admin")
		if err != nil {
			return nil, err
		}
		reader, err := fundNamed(net, keys, "reader")
		if err != nil {
			return nil, err
		}
		if cfg.ReadAccount == "" {
			cfg.ReadAccount = reader.String()
		}
		s, _ = keys.Signer(admin)
		remote, contract, passphrase = net, net.Contract(), net.Passphrase()
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	if cmdline := cfg.Signer(); len(cmdline) > 0 {
		p, err := signer.NewProcess(cmdline, a.log)
		if err != nil {
			return nil, err
		}
		s = p
	}

	opts := []client.Option{client.WithLogger(a.log)}
	var ms *metricsServer
	if cfg.MetricsAddr != "" {
		m, srv, err := startMetrics(cfg.MetricsAddr, a.log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithMetrics(m))
		ms = srv
	}

	ledger := local.NewConnection(remote, local.WithCallTimeout(cfg.CallTimeout))
	cl, err := client.New(cfg.Client(contract, passphrase), ledger, s, opts...)
	if err != nil {
		ledger.Close()
		ms.Close()
		return nil, err
	}
	return &conn{Client: cl, ledger: ledger, remote: remote, net: net, metrics: ms}, nil
}

func fundNamed(net *devnet.Devnet, keys *devnet.Keyring, name string) (types.Address, error) {
	addr, err := keys.Derive(name)
	if err != nil {
		return "", err
	}
	if _, err := net.Fund(addr, 1_000_000); err != nil {
		return "", err
	}
	return addr, nil
}

// withConn runs fn against a fresh connection.
func (a *app) withConn(cmd *cobra.Command, fn func(ctx context.Context, c *conn) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}
