package report

import (
	"go.uber.org/atomic"
)

type AgreementErrors struct {
	CompensatingDeletes   atomic.Uint64 `json:"compensating_deletes"`
	EscrowRequestFailures atomic.Uint64 `json:"escrow_request_failures"`
	ReviewPromptFailures  atomic.Uint64 `json:"review_prompt_failures"`
}

type AgreementState struct {
	Created          atomic.Uint64 `json:"created"`
	Terminated       atomic.Uint64 `json:"terminated"`
	Expired          atomic.Uint64 `json:"expired"`
	PaymentsRecorded atomic.Uint64 `json:"payments_recorded"`
	EscrowRequests   atomic.Uint64 `json:"escrow_requests"`
}

type AgreementReport struct {
	State  AgreementState  `json:"state"`
	Errors AgreementErrors `json:"errors"`
}
