// Package signer bridges to an external wallet agent process. The
// agent holds the keys; pulse only ever sees signed envelopes.
//
// The agent is invoked once per request:
//
//	<command> address                   prints the connected address
//	<command> sign --network <phrase>   reads a base64 envelope on stdin,
//	                                    prints the base64 signed envelope
//
// A non-zero exit from sign is the user declining.
package signer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// DefaultTimeout bounds a sign request, which waits on the user.
const DefaultTimeout = 2 * time.Minute

var _ pulse.Signer = (*Process)(nil)

// Process is a pulse.Signer backed by an agent executable.
type Process struct {
	// Command is the executable and leading arguments.
	Command []string
	// Env is appended to the current environment.
	Env     []string
	Timeout time.Duration
	Log     *zap.Logger
}

// NewProcess returns a signer running command.
func NewProcess(command []string, log *zap.Logger) (*Process, error) {
	if len(command) == 0 {
		return nil, &pulse.SigningError{Reason: "no signer command configured"}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Process{Command: command, Timeout: DefaultTimeout, Log: log.With(zap.String("component", "signer"))}, nil
}

func (p *Process) Address(ctx context.Context) (types.Address, error) {
	out, err := p.run(ctx, nil, "address")
	if err != nil {
		return "", err
	}
	addr, err := types.ParseAddress(strings.TrimSpace(string(out)))
	if err != nil {
		return "", &pulse.SigningError{Reason: "agent returned an invalid address", Err: err}
	}
	if !addr.IsAccount() {
		return "", &pulse.SigningError{Reason: fmt.Sprintf("agent returned non-account address %s", addr)}
	}
	return addr, nil
}

func (p *Process) Sign(ctx context.Context, envelope []byte, networkID string) ([]byte, error) {
	in := base64.StdEncoding.EncodeToString(envelope)
	out, err := p.run(ctx, strings.NewReader(in+"\n"), "sign", "--network", networkID)
	if err != nil {
		return nil, err
	}
	signed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, &pulse.SigningError{Reason: "agent output is not base64", Err: err}
	}
	return signed, nil
}

func (p *Process) run(ctx context.Context, stdin *strings.Reader, args ...string) ([]byte, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(append([]string{}, p.Command[1:]...), args...)
	cmd := exec.CommandContext(ctx, p.Command[0], argv...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr

	log := p.logger().With(zap.String("request", args[0]))
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if ctx.Err() != nil {
		return nil, &pulse.SigningError{Reason: "agent did not answer", Err: ctx.Err()}
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		msg := strings.TrimSpace(stderr.String())
		log.Info("agent declined", zap.Int("exit", exit.ExitCode()), zap.String("stderr", msg))
		if msg == "" {
			msg = "user declined"
		}
		return nil, &pulse.SigningError{Reason: msg, Rejected: true}
	}
	return nil, &pulse.SigningError{Reason: "agent unavailable", Err: err}
}

func (p *Process) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
