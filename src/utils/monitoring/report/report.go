package report

type Report struct {
	Run            *RunReport            `json:"run,omitempty"`
	Ledger         *LedgerReport         `json:"ledger,omitempty"`
	Agreement      *AgreementReport      `json:"agreement,omitempty"`
	Escrow         *EscrowReport         `json:"escrow,omitempty"`
	Obligation     *ObligationReport     `json:"obligation,omitempty"`
	Reconciler     *ReconcilerReport     `json:"reconciler,omitempty"`
	RedisPublisher *RedisPublisherReport `json:"redis_publisher,omitempty"`
}
