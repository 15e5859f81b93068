package escrow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/finality"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/ledger/ledgertest"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository/repotest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	landlord = "0x00000000000000000000000000000000000000aa"
	tenant   = "0x00000000000000000000000000000000000000bb"
)

func TestEscrowTestSuite(t *testing.T) {
	suite.Run(t, new(EscrowTestSuite))
}

type EscrowTestSuite struct {
	suite.Suite
	ctx        context.Context
	config     *config.Config
	repo       *repotest.Memory
	ledger     *ledgertest.Ledger
	agreements *ledger.AgreementContract
	monitor    *report.EscrowReport
	service    *Service
}

func (s *EscrowTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.config = config.Default()
	s.config.Finality.Interval = time.Millisecond
	s.config.Finality.MaxAttempts = 3

	s.repo = repotest.NewMemory()
	s.ledger = ledgertest.New()
	poller := finality.NewPoller(&s.config.Finality)
	s.agreements = ledger.NewAgreementContract(s.ledger.Agreements, poller, s.config.Ledger.Decimals, nil)

	s.monitor = new(report.EscrowReport)
	s.service = NewService(s.config, s.repo, ledger.NewEscrowContract(s.ledger.Escrows, poller, s.config.Ledger.Decimals, nil)).
		WithMonitor(s.monitor)
}

// Agreement stored and created on the ledger
func (s *EscrowTestSuite) agreement(deposit int64) *model.Agreement {
	start := time.Now().UTC()
	a := &model.Agreement{
		Id:              uuid.NewString(),
		AgreementNumber: "AGR-2026-" + uuid.NewString()[:4],
		LandlordAddress: landlord,
		TenantAddress:   tenant,
		MonthlyRent:     decimal.NewFromInt(1000),
		SecurityDeposit: decimal.NewFromInt(deposit),
		StartDate:       start,
		EndDate:         start.AddDate(1, 0, 0),
		Status:          model.AgreementStatusDraft,
	}

	hash, ledgerId, err := s.agreements.CreateAgreement(s.ctx, ledger.CreateAgreementArgs{
		AgreementNumber: a.AgreementNumber,
		Landlord:        a.LandlordAddress,
		Tenant:          a.TenantAddress,
		MonthlyRent:     a.MonthlyRent,
		SecurityDeposit: a.SecurityDeposit,
		StartDate:       a.StartDate,
		EndDate:         a.EndDate,
	})
	s.Require().NoError(err)
	a.TransactionHash = &hash
	a.LedgerAgreementId = &ledgerId

	s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))
	return a
}

func (s *EscrowTestSuite) escrow() *model.Escrow {
	escrow, err := s.service.CreateEscrowForAgreement(s.ctx, s.agreement(2000).Id)
	s.Require().NoError(err)
	return escrow
}

func (s *EscrowTestSuite) TestCreate() {
	a := s.agreement(2000)

	escrow, err := s.service.CreateEscrowForAgreement(s.ctx, a.Id)
	s.Require().NoError(err)
	s.Equal(model.EscrowStatusPending, escrow.Status)
	s.Equal("2000", escrow.Amount.String())
	s.Equal(s.config.Escrow.ArbiterAddress, escrow.ArbiterAddress)
	s.Require().NotNil(escrow.LedgerEscrowId)
	s.Require().NotNil(escrow.TransactionHash)

	stored, err := s.service.FindByAgreement(s.ctx, a.Id)
	s.Require().NoError(err)
	s.Equal(escrow.Id, stored.Id)
	s.Equal(ledgertest.EscrowPending, s.ledger.EscrowStatus(1))
	s.Equal(uint64(1), s.monitor.State.Created.Load())
}

func (s *EscrowTestSuite) TestCreateRollsBackOnLedgerFailure() {
	a := s.agreement(2000)
	s.ledger.Escrows.FailSend("create", errors.New("rejected"))

	_, err := s.service.CreateEscrowForAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrLedgerCallFailed)

	_, err = s.service.FindByAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrNotFound)
	s.Equal(uint64(1), s.monitor.Errors.CreateRollbacks.Load())
}

func (s *EscrowTestSuite) TestCreateRollsBackOnTimeout() {
	a := s.agreement(2000)
	s.ledger.NeverFinal(s.ledger.Escrows, "create")

	_, err := s.service.CreateEscrowForAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrTransactionTimeout)

	_, err = s.service.FindByAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrNotFound)
}

func (s *EscrowTestSuite) TestCreateTwiceConflicts() {
	a := s.agreement(2000)
	_, err := s.service.CreateEscrowForAgreement(s.ctx, a.Id)
	s.Require().NoError(err)

	_, err = s.service.CreateEscrowForAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrConflict)
	s.Equal(1, s.ledger.Escrows.SentCount("create"))
}

func (s *EscrowTestSuite) TestCreateRequiresLedgerAgreement() {
	a := &model.Agreement{
		Id:              uuid.NewString(),
		AgreementNumber: "AGR-2026-9999",
		SecurityDeposit: decimal.NewFromInt(2000),
		Status:          model.AgreementStatusDraft,
	}
	s.Require().NoError(s.repo.CreateAgreement(s.ctx, a))

	_, err := s.service.CreateEscrowForAgreement(s.ctx, a.Id)
	s.Require().ErrorIs(err, fault.ErrConflict)
	s.Zero(s.ledger.Escrows.SentCount(""))
}

func (s *EscrowTestSuite) TestReleasedAtSecondApproval() {
	escrow := s.escrow()

	first, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
	s.Require().NoError(err)
	s.Equal(1, first.ApprovalCount)
	s.Equal(model.EscrowStatusPending, first.Status)
	s.Nil(first.ReleasedAt)

	second, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
	s.Require().NoError(err)
	s.Equal(2, second.ApprovalCount)
	s.Equal(model.EscrowStatusReleased, second.Status)
	s.NotNil(second.ReleasedAt)
	s.Equal(landlord, *second.ReleasedTo)

	s.Equal(2, s.ledger.Escrows.SentCount("approve_release"))
	s.Equal(ledgertest.EscrowReleased, s.ledger.EscrowStatus(1))

	_, err = s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
	s.Require().ErrorIs(err, fault.ErrConflict)
}

func (s *EscrowTestSuite) TestConfigurableThreshold() {
	s.config.Escrow.ReleaseThreshold = 3
	s.service = NewService(s.config, s.repo, ledger.NewEscrowContract(s.ledger.Escrows, finality.NewPoller(&s.config.Finality), 7, nil))
	escrow := s.escrow()

	for i := 0; i < 2; i++ {
		out, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
		s.Require().NoError(err)
		s.Equal(model.EscrowStatusPending, out.Status)
	}
}

func (s *EscrowTestSuite) TestApprovalOfDisputedEscrowConflicts() {
	escrow := s.escrow()
	_, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
	s.Require().NoError(err)

	_, err = s.service.RaiseDispute(s.ctx, escrow.Id, "damaged flat", "")
	s.Require().NoError(err)

	_, err = s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
	s.Require().ErrorIs(err, fault.ErrConflict)

	stored, err := s.service.FindOne(s.ctx, escrow.Id)
	s.Require().NoError(err)
	s.Equal(1, stored.ApprovalCount)
	s.Equal(model.EscrowStatusDisputed, stored.Status)
}

func (s *EscrowTestSuite) TestApprovalLedgerFailureKeepsCount() {
	escrow := s.escrow()
	s.ledger.Escrows.FailSend("approve_release", errors.New("rejected"))

	_, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
	s.Require().ErrorIs(err, fault.ErrLedgerCallFailed)

	stored, err := s.service.FindOne(s.ctx, escrow.Id)
	s.Require().NoError(err)
	s.Zero(stored.ApprovalCount)
}

func (s *EscrowTestSuite) TestApprovalValidatesAddress() {
	escrow := s.escrow()
	_, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, "landlord")
	s.Require().ErrorIs(err, fault.ErrValidation)
}

func (s *EscrowTestSuite) TestApprovalOfUnknownEscrow() {
	_, err := s.service.ApproveEscrowRelease(s.ctx, "missing", landlord)
	s.Require().ErrorIs(err, fault.ErrNotFound)
}

func (s *EscrowTestSuite) TestRaiseDispute() {
	escrow := s.escrow()

	out, err := s.service.RaiseDispute(s.ctx, escrow.Id, "no keys returned", "D-1")
	s.Require().NoError(err)
	s.Equal(model.EscrowStatusDisputed, out.Status)
	s.Equal("D-1", *out.DisputeId)
	s.Equal("no keys returned", *out.DisputeReason)
	s.NotNil(out.DisputedAt)
	s.Equal(ledgertest.EscrowDisputed, s.ledger.EscrowStatus(1))

	_, err = s.service.RaiseDispute(s.ctx, escrow.Id, " ", "D-2")
	s.Require().ErrorIs(err, fault.ErrValidation)
}

func (s *EscrowTestSuite) TestDisputeOfReleasedEscrowConflicts() {
	escrow := s.escrow()
	for i := 0; i < 2; i++ {
		_, err := s.service.ApproveEscrowRelease(s.ctx, escrow.Id, landlord)
		s.Require().NoError(err)
	}

	_, err := s.service.RaiseDispute(s.ctx, escrow.Id, "too late", "")
	s.Require().ErrorIs(err, fault.ErrConflict)
}

func (s *EscrowTestSuite) TestResolveDispute() {
	escrow := s.escrow()

	_, err := s.service.ResolveDispute(s.ctx, escrow.Id, landlord, false)
	s.Require().ErrorIs(err, fault.ErrConflict)

	_, err = s.service.RaiseDispute(s.ctx, escrow.Id, "damaged flat", "")
	s.Require().NoError(err)

	out, err := s.service.ResolveDispute(s.ctx, escrow.Id, "", true)
	s.Require().NoError(err)
	s.Equal(model.EscrowStatusRefunded, out.Status)
	s.Equal(tenant, *out.ReleasedTo)
	s.NotNil(out.ResolvedAt)
	s.Equal(ledgertest.EscrowRefunded, s.ledger.EscrowStatus(1))
}

func (s *EscrowTestSuite) TestSyncMirrorsOnChainStatusOnly() {
	escrow := s.escrow()
	s.ledger.SetEscrowStatus(1, ledgertest.EscrowReleased)

	out, err := s.service.SyncEscrowWithBlockchain(s.ctx, escrow.Id)
	s.Require().NoError(err)
	s.Equal(model.EscrowStatusPending, out.Status)
	s.Equal(ledgertest.EscrowReleased, *out.OnChainStatus)
	s.NotNil(out.LastSyncedAt)
	s.Equal(uint64(1), s.monitor.State.Drift.Load())
}

func (s *EscrowTestSuite) TestFundIsObservedThroughSync() {
	escrow := s.escrow()

	out, err := s.service.FundEscrow(s.ctx, escrow.Id)
	s.Require().NoError(err)
	s.Equal(model.EscrowStatusPending, out.Status)
	s.Equal(ledgertest.EscrowFunded, *out.OnChainStatus)
	s.Zero(s.monitor.State.Drift.Load())
}

func (s *EscrowTestSuite) TestSyncFailureIsCounted() {
	escrow := s.escrow()
	s.ledger.Escrows.FailSimulate("get_escrow", errors.New("rpc down"))

	_, err := s.service.SyncEscrowWithBlockchain(s.ctx, escrow.Id)
	s.Require().ErrorIs(err, fault.ErrLedgerCallFailed)
	s.Equal(uint64(1), s.monitor.Errors.SyncFailures.Load())

	stored, err := s.service.FindOne(s.ctx, escrow.Id)
	s.Require().NoError(err)
	s.Nil(stored.OnChainStatus)
}
