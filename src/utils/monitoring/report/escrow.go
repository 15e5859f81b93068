package report

import (
	"go.uber.org/atomic"
)

type EscrowErrors struct {
	CreateRollbacks atomic.Uint64 `json:"create_rollbacks"`
	SyncFailures    atomic.Uint64 `json:"sync_failures"`
}

type EscrowState struct {
	Created   atomic.Uint64 `json:"created"`
	Approvals atomic.Uint64 `json:"approvals"`
	Released  atomic.Uint64 `json:"released"`
	Disputes  atomic.Uint64 `json:"disputes"`
	Resolved  atomic.Uint64 `json:"resolved"`
	Synced    atomic.Uint64 `json:"synced"`
	Drift     atomic.Uint64 `json:"drift"`
}

type EscrowReport struct {
	State  EscrowState  `json:"state"`
	Errors EscrowErrors `json:"errors"`
}
