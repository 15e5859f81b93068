package report

import (
	"go.uber.org/atomic"
)

type LedgerErrors struct {
	SimulationFailures  atomic.Uint64 `json:"simulation_failures"`
	SubmissionFailures  atomic.Uint64 `json:"submission_failures"`
	StatusCheckFailures atomic.Uint64 `json:"status_check_failures"`
	TransactionFailures atomic.Uint64 `json:"transaction_failures"`
	TransactionTimeouts atomic.Uint64 `json:"transaction_timeouts"`
}

type LedgerState struct {
	Simulations            atomic.Uint64 `json:"simulations"`
	Submissions            atomic.Uint64 `json:"submissions"`
	ConfirmedTransactions  atomic.Uint64 `json:"confirmed_transactions"`
	StatusChecks           atomic.Uint64 `json:"status_checks"`
	LastConfirmedTimestamp atomic.Int64  `json:"last_confirmed_timestamp"`
}

type LedgerReport struct {
	State  LedgerState  `json:"state"`
	Errors LedgerErrors `json:"errors"`
}
