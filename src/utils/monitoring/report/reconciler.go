package report

import (
	"go.uber.org/atomic"
)

type ReconcilerErrors struct {
	SyncFailures  atomic.Uint64 `json:"sync_failures"`
	SweepFailures atomic.Uint64 `json:"sweep_failures"`
}

type ReconcilerState struct {
	Sweeps                 atomic.Uint64 `json:"sweeps"`
	AgreementsSynced       atomic.Uint64 `json:"agreements_synced"`
	InconsistentAgreements atomic.Int64  `json:"inconsistent_agreements"`
	StatusDrift            atomic.Uint64 `json:"status_drift"`
	LedgerCountDrift       atomic.Int64  `json:"ledger_count_drift"`
	LastSweepTimestamp     atomic.Int64  `json:"last_sweep_timestamp"`
}

type ReconcilerReport struct {
	State  ReconcilerState  `json:"state"`
	Errors ReconcilerErrors `json:"errors"`
}
