package contract

import (
	"strings"

	"github.com/blockberries/pulse"
	"github.com/blockberries/pulse/types"
)

// Named contract errors, as they appear in panic diagnostics.
const (
	ErrCodeNotInitialized     = "not_initialized"
	ErrCodeAlreadyInitialized = "already_initialized"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeRoundNotFound      = "round_not_found"
	ErrCodeRoundClosed        = "round_closed"
	ErrCodeInvalidBin         = "invalid_bin"
	ErrCodeInvalidAmount      = "invalid_amount"
	ErrCodeAlreadyFinalized   = "already_finalized"
	ErrCodeInvalidSeed        = "invalid_seed"
	ErrCodeNotFinalized       = "not_finalized"
	ErrCodeNoWinningBet       = "no_winning_bet"
	ErrCodeNoWinners          = "no_winners_in_bin"
	ErrCodeAlreadyClaimed     = "already_claimed"

	// The contract panics with free text for these two; the client
	// names them.
	ErrCodeBettingClosed = "betting_closed"
	ErrCodeEndTimeInPast = "end_time_in_past"
)

// Panic messages behind the unnamed codes.
const (
	MsgBettingClosed = "betting closed: sniping prevention active"
	MsgEndTimeInPast = "end_time must be in the future"
)

var codes = []struct{ code, match string }{
	{ErrCodeNoWinners, ErrCodeNoWinners},
	{ErrCodeAlreadyInitialized, ErrCodeAlreadyInitialized},
	{ErrCodeNotInitialized, ErrCodeNotInitialized},
	{ErrCodeAlreadyFinalized, ErrCodeAlreadyFinalized},
	{ErrCodeNotFinalized, ErrCodeNotFinalized},
	{ErrCodeAlreadyClaimed, ErrCodeAlreadyClaimed},
	{ErrCodeNoWinningBet, ErrCodeNoWinningBet},
	{ErrCodeRoundNotFound, ErrCodeRoundNotFound},
	{ErrCodeRoundClosed, ErrCodeRoundClosed},
	{ErrCodeInvalidBin, ErrCodeInvalidBin},
	{ErrCodeInvalidAmount, ErrCodeInvalidAmount},
	{ErrCodeInvalidSeed, ErrCodeInvalidSeed},
	{ErrCodeUnauthorized, ErrCodeUnauthorized},
	{ErrCodeBettingClosed, MsgBettingClosed},
	{ErrCodeEndTimeInPast, MsgEndTimeInPast},
}

// ErrorCode finds a named contract error in ledger diagnostics and the
// optional extra strings (e.g. a simulation error text). It returns ""
// if none is recognized.
func ErrorCode(diags []types.Diagnostic, extra ...string) string {
	texts := make([]string, 0, len(extra)+2*len(diags))
	texts = append(texts, extra...)
	for _, d := range diags {
		texts = append(texts, d.Message)
		for _, v := range d.Data {
			if v.Kind == types.KindSymbol || v.Kind == types.KindAddress {
				continue
			}
			texts = append(texts, v.String())
		}
	}
	for _, c := range codes {
		for _, t := range texts {
			if strings.Contains(t, c.match) {
				return c.code
			}
		}
	}
	return ""
}

// FailureError maps a FAILED transaction record to the error the
// caller sees: *pulse.ContractError when a named contract error is
// present, *pulse.ExecutionFailedError otherwise. Both keep the raw
// diagnostics.
func FailureError(rec types.TxRecord) error {
	if code := ErrorCode(rec.Diagnostics, rec.ResultCode); code != "" {
		return &pulse.ContractError{
			Hash:        rec.Hash,
			Code:        code,
			ResultCode:  rec.ResultCode,
			Diagnostics: rec.Diagnostics,
		}
	}
	return &pulse.ExecutionFailedError{
		Hash:        rec.Hash,
		ResultCode:  rec.ResultCode,
		Diagnostics: rec.Diagnostics,
	}
}

func unknownFunction(name string) error {
	return &pulse.EncodingError{Call: name, Position: -1, Want: "known function", Got: name}
}
