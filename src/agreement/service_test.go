package agreement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rentledger/syncer/src/escrow"
	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/finality"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/ledger/ledgertest"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository"
	"github.com/rentledger/syncer/src/utils/repository/repotest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	landlord = "0x00000000000000000000000000000000000000aa"
	tenant   = "0x00000000000000000000000000000000000000bb"
	agent    = "0x00000000000000000000000000000000000000cc"
)

type reviews struct {
	mtx      sync.Mutex
	prompted []string
	err      error
}

func (self *reviews) PromptReview(ctx context.Context, agreement *model.Agreement) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.prompted = append(self.prompted, agreement.Id)
	return self.err
}

type recorder struct {
	mtx     sync.Mutex
	records []*model.AuditRecord
}

func (self *recorder) Record(ctx context.Context, record *model.AuditRecord) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.records = append(self.records, record)
}

type views struct {
	invalidations atomic.Int32
}

func (self *views) Invalidate() {
	self.invalidations.Add(1)
}

func TestAgreementTestSuite(t *testing.T) {
	suite.Run(t, new(AgreementTestSuite))
}

type AgreementTestSuite struct {
	suite.Suite
	ctx      context.Context
	repo     *repotest.Memory
	ledger   *ledgertest.Ledger
	monitor  *report.AgreementReport
	reviews  *reviews
	recorder *recorder
	views    *views
	escrows  *escrow.Service
	service  *Service
}

func (s *AgreementTestSuite) SetupTest() {
	s.ctx = context.Background()

	config := config.Default()
	config.Finality.Interval = time.Millisecond
	config.Finality.MaxAttempts = 3

	s.repo = repotest.NewMemory()
	s.ledger = ledgertest.New()
	poller := finality.NewPoller(&config.Finality)
	s.monitor = new(report.AgreementReport)
	s.reviews = new(reviews)
	s.recorder = new(recorder)
	s.views = new(views)

	s.escrows = escrow.NewService(config, s.repo, ledger.NewEscrowContract(s.ledger.Escrows, poller, config.Ledger.Decimals, nil))
	s.service = NewService(config, s.repo, ledger.NewAgreementContract(s.ledger.Agreements, poller, config.Ledger.Decimals, nil)).
		WithEscrowCreator(s.escrows).
		WithReviewPrompter(s.reviews).
		WithAuditRecorder(s.recorder).
		WithInvalidator(s.views).
		WithMonitor(s.monitor)

	s.Require().NoError(s.service.Start())
}

func (s *AgreementTestSuite) TearDownTest() {
	s.service.StopWait()
}

func (s *AgreementTestSuite) input(deposit int64) CreateInput {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return CreateInput{
		PropertyId:      "property-1",
		LandlordId:      "landlord-1",
		TenantId:        "tenant-1",
		LandlordAddress: landlord,
		TenantAddress:   tenant,
		MonthlyRent:     decimal.NewFromInt(1000),
		SecurityDeposit: decimal.NewFromInt(deposit),
		CommissionRate:  decimal.Zero,
		StartDate:       start,
		EndDate:         start.AddDate(1, 0, 0),
	}
}

func (s *AgreementTestSuite) count() int {
	all, err := s.repo.ListAgreements(s.ctx, repository.AgreementFilter{})
	s.Require().NoError(err)
	return len(all)
}

func (s *AgreementTestSuite) TestCreate() {
	year := time.Now().UTC().Year()

	first, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusDraft, first.Status)
	s.Equal(fmt.Sprintf("AGR-%d-0001", year), first.AgreementNumber)
	s.Require().NotNil(first.LedgerAgreementId)
	s.Require().NotNil(first.TransactionHash)
	s.NotNil(first.LastSyncedAt)
	s.True(first.TotalPaid.IsZero())

	second, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)
	s.Equal(fmt.Sprintf("AGR-%d-0002", year), second.AgreementNumber)

	stored, err := s.service.FindOne(s.ctx, second.Id)
	s.Require().NoError(err)
	s.Equal(*second.LedgerAgreementId, *stored.LedgerAgreementId)

	s.Equal(2, s.ledger.AgreementCount())
	s.Equal(uint64(2), s.monitor.State.Created.Load())
	s.Zero(s.monitor.State.EscrowRequests.Load())
}

func (s *AgreementTestSuite) TestCreateValidation() {
	badAddress := "0x1234"
	cases := map[string]func(in *CreateInput){
		"end before start":    func(in *CreateInput) { in.EndDate = in.StartDate.Add(-time.Hour) },
		"end equals start":    func(in *CreateInput) { in.EndDate = in.StartDate },
		"zero rent":           func(in *CreateInput) { in.MonthlyRent = decimal.Zero },
		"negative deposit":    func(in *CreateInput) { in.SecurityDeposit = decimal.NewFromInt(-1) },
		"commission over 100": func(in *CreateInput) { in.CommissionRate = decimal.NewFromInt(101) },
		"bad landlord":        func(in *CreateInput) { in.LandlordAddress = "landlord" },
		"bad agent":           func(in *CreateInput) { in.AgentAddress = &badAddress },
		"no property":         func(in *CreateInput) { in.PropertyId = "" },
	}

	for name, modify := range cases {
		in := s.input(0)
		modify(&in)
		_, err := s.service.Create(s.ctx, in)
		s.Require().ErrorIs(err, fault.ErrValidation, name)
	}

	s.Zero(s.count())
	s.Empty(s.ledger.Agreements.Calls(""))
}

func (s *AgreementTestSuite) TestLedgerRejectionLeavesNoRow() {
	s.ledger.Agreements.FailSend("create_agreement", errors.New("rejected"))

	_, err := s.service.Create(s.ctx, s.input(2000))
	s.Require().ErrorIs(err, fault.ErrLedgerCallFailed)

	s.Zero(s.count())
	s.Equal(uint64(1), s.monitor.Errors.CompensatingDeletes.Load())
	s.Zero(s.monitor.State.EscrowRequests.Load())
}

func (s *AgreementTestSuite) TestSimulationFailureLeavesNoRow() {
	s.ledger.Agreements.FailSimulate("create_agreement", errors.New("bad args"))

	_, err := s.service.Create(s.ctx, s.input(0))
	s.Require().ErrorIs(err, fault.ErrLedgerCallFailed)
	s.Zero(s.count())
	s.Zero(s.ledger.Agreements.SentCount("create_agreement"))
}

func (s *AgreementTestSuite) TestTimeoutIsDistinct() {
	s.ledger.NeverFinal(s.ledger.Agreements, "create_agreement")

	_, err := s.service.Create(s.ctx, s.input(0))
	s.Require().ErrorIs(err, fault.ErrTransactionTimeout)
	s.NotErrorIs(err, fault.ErrLedgerCallFailed)
	s.Zero(s.count())
}

func (s *AgreementTestSuite) TestFailedTransactionLeavesNoRow() {
	s.ledger.Agreements.SetFinalStatus("create_agreement", ledger.TransactionStatusFailed)

	_, err := s.service.Create(s.ctx, s.input(0))
	s.Require().ErrorIs(err, fault.ErrTransactionFailed)
	s.Zero(s.count())
}

func (s *AgreementTestSuite) TestEscrowFailureKeepsAgreement() {
	s.ledger.Escrows.FailSend("create", errors.New("rejected"))

	created, err := s.service.Create(s.ctx, s.input(2000))
	s.Require().NoError(err)

	s.Eventually(func() bool {
		return s.monitor.Errors.EscrowRequestFailures.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	_, err = s.escrows.FindByAgreement(s.ctx, created.Id)
	s.Require().ErrorIs(err, fault.ErrNotFound)
}

func (s *AgreementTestSuite) TestEndToEnd() {
	created, err := s.service.Create(s.ctx, s.input(2000))
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusDraft, created.Status)

	var deposit *model.Escrow
	s.Require().Eventually(func() bool {
		deposit, err = s.escrows.FindByAgreement(s.ctx, created.Id)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	s.Equal(model.EscrowStatusPending, deposit.Status)
	s.Equal("2000", deposit.Amount.String())

	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{
		Amount: decimal.NewFromInt(1500),
		Method: "bank_transfer",
	})
	s.Require().NoError(err)

	paid, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusActive, paid.Status)
	s.Equal("1500", paid.TotalPaid.String())
	s.Equal("1500", paid.EscrowBalance.String())

	terminated, err := s.service.Terminate(s.ctx, created.Id, "tenant moved out")
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusTerminated, terminated.Status)
	s.NotNil(terminated.TerminationDate)
	s.Equal("tenant moved out", *terminated.TerminationReason)

	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{
		Amount: decimal.NewFromInt(100),
		Method: "bank_transfer",
	})
	s.Require().ErrorIs(err, fault.ErrConflict)

	payments, err := s.service.GetPayments(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Len(payments, 1)
}

func (s *AgreementTestSuite) TestRecordPaymentIsAdditive() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		_, err := s.service.RecordPayment(s.ctx, created.Id, PaymentInput{
			Amount:      decimal.NewFromInt(500),
			Method:      "card",
			Reference:   "same-reference",
			PaymentDate: time.Date(2026, 2, 1+i, 0, 0, 0, 0, time.UTC),
		})
		s.Require().NoError(err)

		current, err := s.service.FindOne(s.ctx, created.Id)
		s.Require().NoError(err)
		s.Equal(model.AgreementStatusActive, current.Status)
	}

	current, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Equal("1500", current.TotalPaid.String())

	payments, err := s.service.GetPayments(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Require().Len(payments, 3)
	s.True(payments[0].PaymentDate.After(payments[2].PaymentDate))
	s.Equal(uint64(3), s.monitor.State.PaymentsRecorded.Load())
}

func (s *AgreementTestSuite) TestRecordPaymentValidation() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{Amount: decimal.Zero, Method: "card"})
	s.Require().ErrorIs(err, fault.ErrValidation)

	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{Amount: decimal.NewFromInt(10)})
	s.Require().ErrorIs(err, fault.ErrValidation)

	_, err = s.service.RecordPayment(s.ctx, "missing", PaymentInput{Amount: decimal.NewFromInt(10), Method: "card"})
	s.Require().ErrorIs(err, fault.ErrNotFound)

	s.Zero(s.repo.PaymentCount())
}

func (s *AgreementTestSuite) TestRecordPaymentIsOneUnitOfWork() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	s.repo.FailOn("SaveAgreement", errors.New("db down"))
	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{Amount: decimal.NewFromInt(500), Method: "card"})
	s.Require().Error(err)
	s.repo.FailOn("SaveAgreement", nil)

	s.Zero(s.repo.PaymentCount())
	current, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.True(current.TotalPaid.IsZero())
	s.Equal(model.AgreementStatusDraft, current.Status)
}

func (s *AgreementTestSuite) TestTerminateTwice() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	_, err = s.service.Terminate(s.ctx, created.Id, "first")
	s.Require().NoError(err)

	_, err = s.service.Terminate(s.ctx, created.Id, "second")
	s.Require().ErrorIs(err, fault.ErrConflict)

	current, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Equal("first", *current.TerminationReason)
}

func (s *AgreementTestSuite) TestUpdate() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	rent := decimal.NewFromInt(1200)
	terms := "No pets"
	updated, err := s.service.Update(s.ctx, created.Id, Patch{MonthlyRent: &rent, Terms: &terms})
	s.Require().NoError(err)
	s.Equal("1200", updated.MonthlyRent.String())
	s.Equal(terms, updated.Terms)
	s.Empty(s.reviews.prompted)

	end := created.StartDate.Add(-time.Hour)
	_, err = s.service.Update(s.ctx, created.Id, Patch{EndDate: &end})
	s.Require().ErrorIs(err, fault.ErrValidation)

	current, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Equal(created.EndDate, current.EndDate)
}

func (s *AgreementTestSuite) TestTerminatedAgreementCantBeUpdated() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)
	_, err = s.service.Terminate(s.ctx, created.Id, "moved out")
	s.Require().NoError(err)

	active := model.AgreementStatusActive
	_, err = s.service.Update(s.ctx, created.Id, Patch{Status: &active})
	s.Require().ErrorIs(err, fault.ErrConflict)

	terms := "Reopened"
	_, err = s.service.Update(s.ctx, created.Id, Patch{Terms: &terms})
	s.Require().ErrorIs(err, fault.ErrConflict)

	current, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusTerminated, current.Status)

	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{Amount: decimal.NewFromInt(100), Method: "bank_transfer"})
	s.Require().ErrorIs(err, fault.ErrConflict)
}

func (s *AgreementTestSuite) TestUpdateCantTerminate() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	terminated := model.AgreementStatusTerminated
	_, err = s.service.Update(s.ctx, created.Id, Patch{Status: &terminated})
	s.Require().ErrorIs(err, fault.ErrValidation)

	current, err := s.service.FindOne(s.ctx, created.Id)
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusDraft, current.Status)
	s.Nil(current.TerminationDate)
}

func (s *AgreementTestSuite) TestChangesInvalidateViews() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)
	s.Zero(s.views.invalidations.Load())

	rent := decimal.NewFromInt(1300)
	_, err = s.service.Update(s.ctx, created.Id, Patch{MonthlyRent: &rent})
	s.Require().NoError(err)
	s.Equal(int32(1), s.views.invalidations.Load())

	_, err = s.service.RecordPayment(s.ctx, created.Id, PaymentInput{Amount: decimal.NewFromInt(1300), Method: "card"})
	s.Require().NoError(err)
	s.Equal(int32(2), s.views.invalidations.Load())

	_, err = s.service.Terminate(s.ctx, created.Id, "sold")
	s.Require().NoError(err)
	s.Equal(int32(3), s.views.invalidations.Load())

	// Rejected changes keep the views
	_, err = s.service.Update(s.ctx, created.Id, Patch{MonthlyRent: &rent})
	s.Require().ErrorIs(err, fault.ErrConflict)
	s.Equal(int32(3), s.views.invalidations.Load())
}

func (s *AgreementTestSuite) TestExpiryPromptsReviewOnce() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	expired := model.AgreementStatusExpired
	_, err = s.service.Update(s.ctx, created.Id, Patch{Status: &expired})
	s.Require().NoError(err)
	_, err = s.service.Update(s.ctx, created.Id, Patch{Status: &expired})
	s.Require().NoError(err)

	s.Equal([]string{created.Id}, s.reviews.prompted)
	s.Equal(uint64(1), s.monitor.State.Expired.Load())
}

func (s *AgreementTestSuite) TestReviewFailureDoesNotFailUpdate() {
	s.reviews.err = errors.New("bus down")
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	expired := model.AgreementStatusExpired
	updated, err := s.service.Update(s.ctx, created.Id, Patch{Status: &expired})
	s.Require().NoError(err)
	s.Equal(model.AgreementStatusExpired, updated.Status)
	s.Equal(uint64(1), s.monitor.Errors.ReviewPromptFailures.Load())
}

func (s *AgreementTestSuite) TestUnknownStatus() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)

	status := model.AgreementStatus("LOST")
	_, err = s.service.Update(s.ctx, created.Id, Patch{Status: &status})
	s.Require().ErrorIs(err, fault.ErrValidation)

	_, err = s.service.FindAll(s.ctx, repository.AgreementFilter{Status: status})
	s.Require().ErrorIs(err, fault.ErrValidation)
}

func (s *AgreementTestSuite) TestFindAll() {
	other := s.input(0)
	other.LandlordId = "landlord-2"

	_, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx, other)
	s.Require().NoError(err)

	found, err := s.service.FindAll(s.ctx, repository.AgreementFilter{LandlordId: "landlord-2"})
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("landlord-2", found[0].LandlordId)

	found, err = s.service.FindAll(s.ctx, repository.AgreementFilter{TenantId: "tenant-1"})
	s.Require().NoError(err)
	s.Len(found, 2)
}

func (s *AgreementTestSuite) TestPaymentSplit() {
	in := s.input(0)
	address := agent
	in.AgentAddress = &address
	in.CommissionRate = decimal.NewFromInt(5)

	created, err := s.service.Create(s.ctx, in)
	s.Require().NoError(err)

	split, err := s.service.GetPaymentSplit(s.ctx, created.Id, decimal.NewFromInt(1000))
	s.Require().NoError(err)
	s.Equal("950", split.Landlord.String())
	s.Equal("50", split.Agent.String())
	s.True(split.Platform.IsZero())

	_, err = s.service.GetPaymentSplit(s.ctx, created.Id, decimal.Zero)
	s.Require().ErrorIs(err, fault.ErrValidation)
}

func (s *AgreementTestSuite) TestAudit() {
	created, err := s.service.Create(s.ctx, s.input(0))
	s.Require().NoError(err)
	_, err = s.service.Terminate(s.ctx, created.Id, "done")
	s.Require().NoError(err)
	_, err = s.service.Terminate(s.ctx, created.Id, "again")
	s.Require().Error(err)

	s.Require().Len(s.recorder.records, 3)
	s.Equal("agreement.create", s.recorder.records[0].Operation)
	s.Equal(created.Id, s.recorder.records[0].EntityId)
	s.Nil(s.recorder.records[1].Error)
	s.NotNil(s.recorder.records[2].Error)
}
