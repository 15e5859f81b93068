package finality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/ledger/ledgertest"

	"github.com/stretchr/testify/suite"
)

func TestPollerTestSuite(t *testing.T) {
	suite.Run(t, new(PollerTestSuite))
}

type PollerTestSuite struct {
	suite.Suite
	ctx      context.Context
	contract *ledgertest.Contract
	poller   *Poller
}

func (s *PollerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.contract = ledgertest.NewContract("test").
		Handle("noop", func(args []ledger.Value, commit bool) (ledger.Value, error) {
			return ledger.Void(), nil
		})
	s.poller = NewPoller(&config.Finality{Interval: time.Millisecond, MaxAttempts: 5})
}

func (s *PollerTestSuite) send() ledger.TxHandle {
	handle, err := s.contract.Send(s.ctx, "noop")
	s.Require().NoError(err)
	return handle
}

func (s *PollerTestSuite) TestSuccessReturnsHash() {
	s.contract.SetPendingChecks(3)
	handle := s.send()

	hash, err := s.poller.Wait(s.ctx, s.contract, handle)
	s.Require().NoError(err)
	s.Equal(handle.Hash, hash)
	s.Equal(4, s.contract.StatusChecks())
	s.Equal(uint64(4), s.poller.monitor.State.StatusChecks.Load())
}

func (s *PollerTestSuite) TestFailedStopsImmediately() {
	s.contract.SetFinalStatus("noop", ledger.TransactionStatusFailed)
	handle := s.send()

	_, err := s.poller.Wait(s.ctx, s.contract, handle)
	s.Require().ErrorIs(err, fault.ErrTransactionFailed)
	s.Equal(1, s.contract.StatusChecks())
}

func (s *PollerTestSuite) TestTimeoutAfterMaxAttempts() {
	s.contract.SetFinalStatus("noop", ledger.TransactionStatusPending)
	handle := s.send()

	_, err := s.poller.Wait(s.ctx, s.contract, handle)
	s.Require().ErrorIs(err, fault.ErrTransactionTimeout)
	s.NotErrorIs(err, fault.ErrTransactionFailed)
	s.Equal(5, s.contract.StatusChecks())
	s.Equal(uint64(1), s.poller.monitor.Errors.TransactionTimeouts.Load())
}

func (s *PollerTestSuite) TestStatusErrorsCountAsChecks() {
	handle := s.send()
	s.contract.FailStatusChecks(errors.New("rpc down"))

	_, err := s.poller.Wait(s.ctx, s.contract, handle)
	s.Require().ErrorIs(err, fault.ErrTransactionTimeout)
	s.Equal(5, s.contract.StatusChecks())
}

func (s *PollerTestSuite) TestRecoversAfterStatusErrors() {
	handle := s.send()
	s.contract.FailStatusChecks(errors.New("rpc down"))

	go func() {
		time.Sleep(time.Millisecond)
		s.contract.FailStatusChecks(nil)
	}()

	poller := NewPoller(&config.Finality{Interval: 5 * time.Millisecond, MaxAttempts: 50})
	hash, err := poller.Wait(s.ctx, s.contract, handle)
	s.Require().NoError(err)
	s.Equal(handle.Hash, hash)
}

func (s *PollerTestSuite) TestUnknownHashIsPending() {
	_, err := s.poller.Wait(s.ctx, s.contract, ledger.TxHandle{Hash: "missing"})
	s.Require().ErrorIs(err, fault.ErrTransactionTimeout)
}

func (s *PollerTestSuite) TestCancelledContext() {
	s.contract.SetFinalStatus("noop", ledger.TransactionStatusPending)
	handle := s.send()

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	poller := NewPoller(&config.Finality{Interval: time.Second, MaxAttempts: 100})
	start := time.Now()
	_, err := poller.Wait(ctx, s.contract, handle)
	s.Require().ErrorIs(err, context.Canceled)
	s.Less(time.Since(start), time.Second)
}
