// Package config loads pulsectl settings. Sources, lowest precedence
// first: defaults, a TOML file, PULSE_ environment variables. Command
// line flags are applied by the caller on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/blockberries/pulse/client"
	"github.com/blockberries/pulse/logging"
	"github.com/blockberries/pulse/pipeline"
	"github.com/blockberries/pulse/types"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "PULSE_"

// DefaultCallTimeout bounds each individual ledger call.
const DefaultCallTimeout = 15 * time.Second

// Transport names.
const (
	TransportJSONRPC = "jsonrpc"
	TransportGRPC    = "grpc"
	TransportDevnet  = "devnet"
)

// Config is the complete settings tree.
type Config struct {
	Transport         string        `toml:"transport" env:"TRANSPORT"`
	RPCURL            string        `toml:"rpc_url" env:"RPC_URL"`
	ContractID        string        `toml:"contract_id" env:"CONTRACT_ID"`
	NetworkPassphrase string        `toml:"network_passphrase" env:"NETWORK_PASSPHRASE"`
	BaseFee           uint32        `toml:"base_fee" env:"BASE_FEE"`
	TxTimeout         time.Duration `toml:"tx_timeout" env:"TX_TIMEOUT"`
	PollInterval      time.Duration `toml:"poll_interval" env:"POLL_INTERVAL"`
	FinalityDeadline  time.Duration `toml:"finality_deadline" env:"FINALITY_DEADLINE"`
	CallTimeout       time.Duration `toml:"call_timeout" env:"CALL_TIMEOUT"`
	// ReadAccount is a funded account used only as the source of
	// read-only simulations.
	ReadAccount  string `toml:"read_account" env:"READ_ACCOUNT"`
	TokenAddress string `toml:"token_address" env:"TOKEN_ADDRESS"`
	DevMode      bool   `toml:"dev_mode" env:"DEV_MODE"`
	SessionPath  string `toml:"session_path" env:"SESSION_PATH"`
	// SignerCommand is the wallet agent executable and its arguments,
	// split on whitespace.
	SignerCommand string `toml:"signer_command" env:"SIGNER_COMMAND"`
	MetricsAddr   string `toml:"metrics_addr" env:"METRICS_ADDR"`

	Log logging.Config `toml:"log" envPrefix:"LOG_"`
}

// Default returns the built-in settings: a local devnet with the
// pipeline's standard timings.
func Default() Config {
	return Config{
		Transport:        TransportDevnet,
		BaseFee:          pipeline.DefaultBaseFee,
		TxTimeout:        pipeline.DefaultTxTimeout,
		PollInterval:     pipeline.DefaultPollInterval,
		FinalityDeadline: pipeline.DefaultFinalityDeadline,
		CallTimeout:      DefaultCallTimeout,
		SessionPath:      DefaultSessionPath(),
		Log:              logging.DefaultConfig(),
	}
}

// DefaultSessionPath is the session file under the user config
// directory, or in the working directory if that is unknown.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "pulse-session.cbor"
	}
	return filepath.Join(dir, "pulse", "session.cbor")
}

// Load applies the TOML file at path (skipped when empty) and then the
// environment over the defaults, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate rejects impossible combinations.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportDevnet:
	case TransportJSONRPC, TransportGRPC:
		if c.RPCURL == "" {
			errs = append(errs, fmt.Errorf("rpc_url is required for transport %q", c.Transport))
		}
		if c.ContractID == "" {
			errs = append(errs, fmt.Errorf("contract_id is required for transport %q", c.Transport))
		}
		if c.NetworkPassphrase == "" {
			errs = append(errs, fmt.Errorf("network_passphrase is required for transport %q", c.Transport))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	for name, addr := range map[string]string{
		"contract_id":   c.ContractID,
		"read_account":  c.ReadAccount,
		"token_address": c.TokenAddress,
	} {
		if addr == "" {
			continue
		}
		if _, err := types.ParseAddress(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.ContractID != "" {
		if a := types.Address(c.ContractID); a.Validate() == nil && !a.IsContract() {
			errs = append(errs, errors.New("contract_id: not a contract address"))
		}
	}
	for name, d := range map[string]time.Duration{
		"tx_timeout":        c.TxTimeout,
		"poll_interval":     c.PollInterval,
		"finality_deadline": c.FinalityDeadline,
		"call_timeout":      c.CallTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.PollInterval > c.FinalityDeadline {
		errs = append(errs, errors.New("poll_interval exceeds finality_deadline"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Signer returns SignerCommand split into executable and arguments.
func (c Config) Signer() []string {
	return strings.Fields(c.SignerCommand)
}

// Client returns the client configuration. contract and passphrase
// fill in ContractID and NetworkPassphrase when those are empty, as
// they are for a devnet whose values are only known once it exists.
func (c Config) Client(contract types.Address, passphrase string) client.Config {
	cc := client.Config{
		Config: pipeline.Config{
			Contract:          types.Address(c.ContractID),
			NetworkPassphrase: c.NetworkPassphrase,
			BaseFee:           c.BaseFee,
			TxTimeout:         c.TxTimeout,
			PollInterval:      c.PollInterval,
			FinalityDeadline:  c.FinalityDeadline,
			ReadAccount:       types.Address(c.ReadAccount),
			CallTimeout:       c.CallTimeout,
		},
		DevMode: c.DevMode,
	}
	if cc.Contract == "" {
		cc.Contract = contract
	}
	if cc.NetworkPassphrase == "" {
		cc.NetworkPassphrase = passphrase
	}
	return cc
}
