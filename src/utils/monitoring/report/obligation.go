package report

import (
	"go.uber.org/atomic"
)

type ObligationErrors struct {
	EventFailures atomic.Uint64 `json:"event_failures"`
	SyncFailures  atomic.Uint64 `json:"sync_failures"`
}

type ObligationState struct {
	Minted          atomic.Uint64 `json:"minted"`
	Transferred     atomic.Uint64 `json:"transferred"`
	EventsReceived  atomic.Uint64 `json:"events_received"`
	EventsProcessed atomic.Uint64 `json:"events_processed"`
	EventsSkipped   atomic.Uint64 `json:"events_skipped"`
	OwnershipDrift  atomic.Uint64 `json:"ownership_drift"`
}

type ObligationReport struct {
	State  ObligationState  `json:"state"`
	Errors ObligationErrors `json:"errors"`
}
