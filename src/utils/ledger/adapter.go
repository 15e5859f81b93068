package ledger

import (
	"context"

	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
)

// Outcome of a confirmed contract call
type Receipt struct {
	TransactionHash string

	// Value returned by the call's simulation
	Result Value
}

// Shared by the typed contract adapters
type adapter struct {
	contract Contract
	waiter   Waiter
	decimals int32
	monitor  *report.LedgerReport
}

func newAdapter(contract Contract, waiter Waiter, decimals int32, monitor *report.LedgerReport) adapter {
	if monitor == nil {
		monitor = new(report.LedgerReport)
	}
	return adapter{
		contract: contract,
		waiter:   waiter,
		decimals: decimals,
		monitor:  monitor,
	}
}

// Simulates, submits and waits for finality. Simulation failures are never retried.
func (self *adapter) write(ctx context.Context, method string, args ...Value) (out Receipt, err error) {
	simulated, err := self.read(ctx, method, args...)
	if err != nil {
		return
	}

	self.monitor.State.Submissions.Inc()
	handle, err := self.contract.Send(ctx, method, args...)
	if err != nil {
		self.monitor.Errors.SubmissionFailures.Inc()
		err = fault.LedgerCallFailed(err, "%s submission rejected", method)
		return
	}
	handle.Simulated = simulated

	hash, err := self.waiter.Wait(ctx, self.contract, handle)
	if err != nil {
		return
	}

	self.monitor.State.ConfirmedTransactions.Inc()
	return Receipt{TransactionHash: hash, Result: simulated}, nil
}

func (self *adapter) read(ctx context.Context, method string, args ...Value) (out Value, err error) {
	self.monitor.State.Simulations.Inc()
	out, err = self.contract.Simulate(ctx, method, args...)
	if err != nil {
		self.monitor.Errors.SimulationFailures.Inc()
		err = fault.LedgerCallFailed(err, "%s simulation failed", method)
	}
	return
}

func decodeFailed(method string, err error) error {
	return fault.LedgerCallFailed(err, "unexpected %s response", method)
}
