package ledger

import (
	"context"
	"time"
)

type TransactionStatus string

const (
	TransactionStatusSuccess  TransactionStatus = "SUCCESS"
	TransactionStatusFailed   TransactionStatus = "FAILED"
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusNotFound TransactionStatus = "NOT_FOUND"
)

// Not yet included transactions are reported as NOT_FOUND, they're still pending
func (self TransactionStatus) IsTerminal() bool {
	return self == TransactionStatusSuccess || self == TransactionStatusFailed
}

// Submitted transaction
type TxHandle struct {
	Hash string `json:"hash"`

	// Result of the simulation that preceded the submission
	Simulated Value `json:"-"`
}

type TransactionInfo struct {
	Hash        string            `json:"hash"`
	Status      TransactionStatus `json:"status"`
	Ledger      uint64            `json:"ledger,omitempty"`
	CreatedAt   int64             `json:"createdAt,omitempty"`
	ReturnValue *Value            `json:"returnValue,omitempty"`
}

func (self *TransactionInfo) CreatedTime() time.Time {
	if self.CreatedAt == 0 {
		return time.Time{}
	}
	return time.Unix(self.CreatedAt, 0).UTC()
}

// Client of one deployed contract. Transaction building and signing happen behind it.
type Contract interface {
	Id() string

	// Read-only execution, nothing is submitted
	Simulate(ctx context.Context, method string, args ...Value) (Value, error)

	// Signs and submits the call
	Send(ctx context.Context, method string, args ...Value) (TxHandle, error)

	GetTransaction(ctx context.Context, hash string) (*TransactionInfo, error)
}

// Waits until a submitted transaction reaches finality, returns its hash
type Waiter interface {
	Wait(ctx context.Context, contract Contract, handle TxHandle) (string, error)
}
