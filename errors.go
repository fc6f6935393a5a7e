package pulse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockberries/pulse/types"
)

// NetworkError reports that the ledger could not be reached or did not
// answer in time. It is retryable by the caller.
type NetworkError struct {
	Op string
	// NotFound is set when the ledger answered that the requested
	// account does not exist.
	NotFound bool
	Err      error
}

func (e *NetworkError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("pulse: %s: account not found", e.Op)
	}
	return fmt.Sprintf("pulse: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork checks whether an error is a NetworkError and returns it.
func IsNetwork(err error) (*NetworkError, bool) {
	var e *NetworkError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SimulationError reports that a call would fail on-chain. The
// transaction is never signed.
type SimulationError struct {
	Call   string
	Reason string
	// Code is the named contract error found in the diagnostics, if any.
	Code        string
	Diagnostics []types.Diagnostic
}

func (e *SimulationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pulse: simulate %s: %s (%s)", e.Call, e.Reason, e.Code)
	}
	return fmt.Sprintf("pulse: simulate %s: %s", e.Call, e.Reason)
}

// IsSimulation checks whether an error is a SimulationError and returns it.
func IsSimulation(err error) (*SimulationError, bool) {
	var e *SimulationError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FormatError reports a malformed value rejected before any network
// call, such as a commit digest that is not 64 hex characters.
type FormatError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("pulse: invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// IsFormat checks whether an error is a FormatError and returns it.
func IsFormat(err error) (*FormatError, bool) {
	var e *FormatError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ValidationError reports an input rejected by a client-side guard,
// such as a non-positive stake.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pulse: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation checks whether an error is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var e *ValidationError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// EncodingError reports a call whose arguments do not match its fixed
// schema, or a return value of the wrong shape.
type EncodingError struct {
	Call string
	// Position is the zero-based argument index, or -1 for the return
	// value or the argument count.
	Position int
	Want     string
	Got      string
	Err      error
}

func (e *EncodingError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pulse: encode %s", e.Call)
	if e.Position >= 0 {
		fmt.Fprintf(&b, " arg %d", e.Position)
	}
	fmt.Fprintf(&b, ": want %s, got %s", e.Want, e.Got)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *EncodingError) Unwrap() error { return e.Err }

// IsEncoding checks whether an error is an EncodingError and returns it.
func IsEncoding(err error) (*EncodingError, bool) {
	var e *EncodingError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SigningError reports that the wallet agent declined or was
// unavailable. It is never retried automatically.
type SigningError struct {
	Reason string
	// Rejected is set when the user explicitly declined.
	Rejected bool
	Err      error
}

func (e *SigningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pulse: signing: %s: %v", e.Reason, e.Err)
	}
	return "pulse: signing: " + e.Reason
}

func (e *SigningError) Unwrap() error { return e.Err }

// IsSigning checks whether an error is a SigningError and returns it.
func IsSigning(err error) (*SigningError, bool) {
	var e *SigningError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SubmissionError reports an immediate broadcast rejection. The caller
// must re-resolve the account and rebuild.
type SubmissionError struct {
	Hash   types.Hash
	Status types.SendStatus
	Detail string
}

func (e *SubmissionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("pulse: submit %s: %s", e.Hash, e.Status)
	}
	return fmt.Sprintf("pulse: submit %s: %s (%s)", e.Hash, e.Status, e.Detail)
}

// IsSubmission checks whether an error is a SubmissionError and returns it.
func IsSubmission(err error) (*SubmissionError, bool) {
	var e *SubmissionError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FinalityTimeoutError reports that a submitted transaction did not
// reach a terminal status before the deadline. Its outcome is unknown:
// re-query by hash, never assume failure.
type FinalityTimeoutError struct {
	Hash       types.Hash
	Waited     time.Duration
	LastStatus types.TxStatus
}

func (e *FinalityTimeoutError) Error() string {
	return fmt.Sprintf("pulse: transaction %s not final after %s (last status %s)", e.Hash, e.Waited, e.LastStatus)
}

// IsFinalityTimeout checks whether an error is a FinalityTimeoutError
// and returns it.
func IsFinalityTimeout(err error) (*FinalityTimeoutError, bool) {
	var e *FinalityTimeoutError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ContractError is a decoded on-chain execution failure. Diagnostics
// hold the ledger's raw payload for display.
type ContractError struct {
	Hash types.Hash
	// Code is the contract's named error, e.g. "round_closed".
	Code        string
	ResultCode  string
	Diagnostics []types.Diagnostic
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("pulse: transaction %s failed: contract error %s", e.Hash, e.Code)
}

// IsContract checks whether an error is a ContractError and returns it.
func IsContract(err error) (*ContractError, bool) {
	var e *ContractError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ExecutionFailedError is a FAILED transaction whose payload carries no
// recognizable contract error.
type ExecutionFailedError struct {
	Hash        types.Hash
	ResultCode  string
	Diagnostics []types.Diagnostic
}

func (e *ExecutionFailedError) Error() string {
	if e.ResultCode == "" {
		return fmt.Sprintf("pulse: transaction %s failed", e.Hash)
	}
	return fmt.Sprintf("pulse: transaction %s failed: %s", e.Hash, e.ResultCode)
}

// IsExecutionFailed checks whether an error is an ExecutionFailedError
// and returns it.
func IsExecutionFailed(err error) (*ExecutionFailedError, bool) {
	var e *ExecutionFailedError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// DecodeInvariantError reports a ledger response that violates a data
// model invariant. It is fatal for that read and is never patched.
type DecodeInvariantError struct {
	What   string
	Detail string
}

func (e *DecodeInvariantError) Error() string {
	return fmt.Sprintf("pulse: %s: %s", e.What, e.Detail)
}

// IsDecodeInvariant checks whether an error is a DecodeInvariantError
// and returns it.
func IsDecodeInvariant(err error) (*DecodeInvariantError, bool) {
	var e *DecodeInvariantError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrorCategory groups errors by what the user should be told.
type ErrorCategory int

const (
	CategoryUnknown ErrorCategory = iota
	CategoryNetwork
	CategorySimulation
	CategoryFormat
	CategoryValidation
	CategoryEncoding
	CategorySigning
	CategorySubmission
	CategoryFinalityTimeout
	CategoryContract
	CategoryExecutionFailed
	CategoryDecodeInvariant
)

var categoryNames = map[ErrorCategory]string{
	CategoryUnknown:         "unknown",
	CategoryNetwork:         "network",
	CategorySimulation:      "simulation",
	CategoryFormat:          "format",
	CategoryValidation:      "validation",
	CategoryEncoding:        "encoding",
	CategorySigning:         "signing",
	CategorySubmission:      "submission",
	CategoryFinalityTimeout: "finality_timeout",
	CategoryContract:        "contract",
	CategoryExecutionFailed: "execution_failed",
	CategoryDecodeInvariant: "decode_invariant",
}

func (c ErrorCategory) String() string {
	if s, ok := categoryNames[c]; ok {
		return s
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Category classifies err. Context cancellation and deadline errors
// that did not pass through a typed wrapper are reported as network.
func Category(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryUnknown
	case as[*FormatError](err):
		return CategoryFormat
	case as[*ValidationError](err):
		return CategoryValidation
	case as[*EncodingError](err):
		return CategoryEncoding
	case as[*SimulationError](err):
		return CategorySimulation
	case as[*SigningError](err):
		return CategorySigning
	case as[*SubmissionError](err):
		return CategorySubmission
	case as[*FinalityTimeoutError](err):
		return CategoryFinalityTimeout
	case as[*ContractError](err):
		return CategoryContract
	case as[*ExecutionFailedError](err):
		return CategoryExecutionFailed
	case as[*DecodeInvariantError](err):
		return CategoryDecodeInvariant
	case as[*NetworkError](err):
		return CategoryNetwork
	}
	return CategoryUnknown
}

// Message returns the human-readable summary shown for an error
// category.
func Message(c ErrorCategory) string {
	switch c {
	case CategoryNetwork:
		return "The ledger could not be reached. Try again."
	case CategorySimulation:
		return "The ledger would reject this action."
	case CategoryFormat:
		return "The value entered is not in the expected format."
	case CategoryValidation:
		return "The value entered is not allowed."
	case CategoryEncoding:
		return "The request could not be encoded for the contract."
	case CategorySigning:
		return "The wallet did not sign the transaction."
	case CategorySubmission:
		return "The ledger refused the transaction. Refresh and retry."
	case CategoryFinalityTimeout:
		return "The transaction is still pending. Check its status later before retrying."
	case CategoryContract:
		return "The contract rejected the transaction."
	case CategoryExecutionFailed:
		return "The transaction failed on the ledger."
	case CategoryDecodeInvariant:
		return "The ledger returned inconsistent data."
	default:
		return "Something went wrong."
	}
}

// Describe renders err for a user: the category message, plus the raw
// diagnostics for contract failures.
func Describe(err error) string {
	msg := Message(Category(err))
	if se, ok := IsSimulation(err); ok && se.Code != "" {
		return fmt.Sprintf("%s (%s)", msg, se.Code)
	}
	if ce, ok := IsContract(err); ok {
		var b strings.Builder
		b.WriteString(msg)
		fmt.Fprintf(&b, " (%s)", ce.Code)
		for _, d := range ce.Diagnostics {
			fmt.Fprintf(&b, "\n  %s: %s", d.Event, d.Message)
		}
		return b.String()
	}
	return msg
}

func as[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
