package types

// SendStatus is the ledger's immediate answer to a broadcast.
type SendStatus string

const (
	SendPending       SendStatus = "PENDING"
	SendDuplicate     SendStatus = "DUPLICATE"
	SendTryAgainLater SendStatus = "TRY_AGAIN_LATER"
	SendError         SendStatus = "ERROR"
)

// Accepted reports whether the transaction entered the ledger's queue.
// Every other status is an immediate rejection.
func (s SendStatus) Accepted() bool { return s == SendPending }

// SendResult is returned by a broadcast.
type SendResult struct {
	Hash   Hash       `cramberry:"1"`
	Status SendStatus `cramberry:"2"`
	// ErrorResult carries the rejection code when Status is ERROR,
	// e.g. "tx_bad_seq" or "tx_insufficient_fee".
	ErrorResult  string `cramberry:"3"`
	LatestLedger uint32 `cramberry:"4"`
}

// TxStatus is the ledger's view of a submitted transaction.
type TxStatus string

const (
	TxNotFound TxStatus = "NOT_FOUND"
	TxPending  TxStatus = "PENDING"
	TxSuccess  TxStatus = "SUCCESS"
	TxFailed   TxStatus = "FAILED"
)

// Terminal reports whether the status is final.
func (s TxStatus) Terminal() bool { return s == TxSuccess || s == TxFailed }

// TxRecord is the answer to a transaction status query.
type TxRecord struct {
	Hash   Hash     `cramberry:"1"`
	Status TxStatus `cramberry:"2"`
	// ReturnValue is set for SUCCESS.
	ReturnValue *Value `cramberry:"3"`
	// ResultCode and Diagnostics describe a FAILED execution.
	ResultCode  string       `cramberry:"4"`
	Diagnostics []Diagnostic `cramberry:"5"`
	Ledger      uint32       `cramberry:"6"`
	CreatedAt   Timestamp    `cramberry:"7"`
}
