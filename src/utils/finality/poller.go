package finality

import (
	"context"
	"errors"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/logger"
	"github.com/rentledger/syncer/src/utils/monitoring/report"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

var errPending = errors.New("transaction pending")

// Polls submitted transactions until they reach a terminal status.
// The only retry policy for ledger writes.
type Poller struct {
	log         *logrus.Entry
	interval    time.Duration
	maxAttempts int
	monitor     *report.LedgerReport
}

var _ ledger.Waiter = (*Poller)(nil)

func NewPoller(config *config.Finality) (self *Poller) {
	self = new(Poller)
	self.log = logger.NewSublogger("finality")
	self.interval = config.Interval
	self.maxAttempts = config.MaxAttempts
	if self.maxAttempts < 1 {
		self.maxAttempts = 1
	}
	self.monitor = new(report.LedgerReport)
	return
}

func (self *Poller) WithMonitor(monitor *report.LedgerReport) *Poller {
	self.monitor = monitor
	return self
}

// Returns the hash once the transaction succeeds. Fails immediately with TransactionFailed,
// or with TransactionTimeout after maxAttempts checks without a terminal status.
func (self *Poller) Wait(ctx context.Context, contract ledger.Contract, handle ledger.TxHandle) (hash string, err error) {
	log := self.log.WithField("hash", handle.Hash).WithField("contract", contract.Id())

	attempts := 0
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(self.interval), uint64(self.maxAttempts-1))

	err = backoff.Retry(func() error {
		attempts++
		self.monitor.State.StatusChecks.Inc()

		info, err := contract.GetTransaction(ctx, handle.Hash)
		if err != nil {
			// Counts as a failed check
			self.monitor.Errors.StatusCheckFailures.Inc()
			log.WithError(err).WithField("attempt", attempts).Debug("Failed to check transaction status")
			return err
		}

		switch info.Status {
		case ledger.TransactionStatusSuccess:
			return nil
		case ledger.TransactionStatusFailed:
			return backoff.Permanent(fault.TransactionFailed(handle.Hash))
		}
		return errPending
	}, backoff.WithContext(b, ctx))

	switch {
	case err == nil:
		self.monitor.State.LastConfirmedTimestamp.Store(time.Now().Unix())
		log.WithField("attempts", attempts).Debug("Transaction confirmed")
		return handle.Hash, nil
	case errors.Is(err, fault.ErrTransactionFailed):
		self.monitor.Errors.TransactionFailures.Inc()
		log.Warn("Transaction failed")
		return "", err
	case ctx.Err() != nil:
		return "", ctx.Err()
	}

	self.monitor.Errors.TransactionTimeouts.Inc()
	log.WithField("attempts", attempts).Warn("Transaction not final, giving up")
	return "", fault.TransactionTimeout(handle.Hash, attempts)
}
