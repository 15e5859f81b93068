package agreement

import (
	"context"
	"fmt"
	"time"

	"github.com/rentledger/syncer/src/utils/audit"
	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository"
	"github.com/rentledger/syncer/src/utils/task"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const entityType = "agreement"

// Creates escrows for agreements with a security deposit
type EscrowCreator interface {
	CreateEscrowForAgreement(ctx context.Context, agreementId string) (*model.Escrow, error)
}

// Told about agreements that expired
type ReviewPrompter interface {
	PromptReview(ctx context.Context, agreement *model.Agreement) error
}

// Forgets views computed from agreement rows
type Invalidator interface {
	Invalidate()
}

// Owns the agreement lifecycle. New agreements are written to the database first
// and deleted again when the ledger doesn't confirm them.
// Escrows are requested in the background, on the task's worker pool.
type Service struct {
	*task.Task

	repo     repository.Repository
	contract *ledger.AgreementContract
	escrows  EscrowCreator
	reviews  ReviewPrompter
	views    Invalidator
	monitor  *report.AgreementReport
	recorder audit.Recorder

	numberPrefix string
}

func NewService(config *config.Config, repo repository.Repository, contract *ledger.AgreementContract) (self *Service) {
	self = new(Service)
	self.repo = repo
	self.contract = contract
	self.monitor = new(report.AgreementReport)
	self.recorder = audit.Nop{}
	self.numberPrefix = config.Agreement.NumberPrefix

	self.Task = task.NewTask(config, "agreement").
		WithWorkerPool(config.Agreement.EscrowWorkers, config.Agreement.EscrowWorkerQueueSize)

	return
}

func (self *Service) WithEscrowCreator(v EscrowCreator) *Service {
	self.escrows = v
	return self
}

func (self *Service) WithReviewPrompter(v ReviewPrompter) *Service {
	self.reviews = v
	return self
}

func (self *Service) WithInvalidator(v Invalidator) *Service {
	self.views = v
	return self
}

func (self *Service) WithMonitor(v *report.AgreementReport) *Service {
	self.monitor = v
	return self
}

func (self *Service) WithAuditRecorder(v audit.Recorder) *Service {
	self.recorder = v
	return self
}

// Sequential per total count. Two concurrent creations may get the same number,
// the unique index rejects the second one.
func (self *Service) nextNumber(ctx context.Context, now time.Time) (string, error) {
	count, err := self.repo.CountAgreements(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", self.numberPrefix, now.Year(), count+1), nil
}

func (self *Service) Create(ctx context.Context, input CreateInput) (*model.Agreement, error) {
	return audit.Track(ctx, self.recorder, "agreement.create", entityType, "", nil, func() (*model.Agreement, error) {
		return self.create(ctx, input)
	})
}

func (self *Service) create(ctx context.Context, input CreateInput) (out *model.Agreement, err error) {
	err = input.Validate()
	if err != nil {
		return
	}

	now := time.Now().UTC()
	number, err := self.nextNumber(ctx, now)
	if err != nil {
		return
	}

	out = &model.Agreement{
		Id:              uuid.NewString(),
		AgreementNumber: number,
		PropertyId:      input.PropertyId,
		LandlordId:      input.LandlordId,
		TenantId:        input.TenantId,
		AgentId:         input.AgentId,
		LandlordAddress: input.LandlordAddress,
		TenantAddress:   input.TenantAddress,
		AgentAddress:    input.AgentAddress,
		MonthlyRent:     input.MonthlyRent,
		SecurityDeposit: input.SecurityDeposit,
		CommissionRate:  input.CommissionRate,
		EscrowBalance:   decimal.Zero,
		TotalPaid:       decimal.Zero,
		StartDate:       input.StartDate.UTC(),
		EndDate:         input.EndDate.UTC(),
		Terms:           input.Terms,
		Status:          model.AgreementStatusDraft,
	}
	err = self.repo.CreateAgreement(ctx, out)
	if err != nil {
		return nil, err
	}

	log := self.Log.WithField("agreement_id", out.Id).WithField("number", number)

	hash, ledgerId, err := self.contract.CreateAgreement(ctx, ledger.CreateAgreementArgs{
		AgreementNumber: out.AgreementNumber,
		Landlord:        out.LandlordAddress,
		Tenant:          out.TenantAddress,
		Agent:           out.AgentAddress,
		MonthlyRent:     out.MonthlyRent,
		SecurityDeposit: out.SecurityDeposit,
		CommissionRate:  out.CommissionRate,
		StartDate:       out.StartDate,
		EndDate:         out.EndDate,
	})
	if err != nil {
		log.WithError(err).WithField("kind", fault.KindOf(err)).Error("Ledger didn't confirm agreement, removing it")
		self.compensate(ctx, out.Id)
		return nil, err
	}

	synced := time.Now().UTC()
	out.LedgerAgreementId = &ledgerId
	out.TransactionHash = &hash
	out.LastSyncedAt = &synced
	err = self.repo.SaveAgreement(ctx, out)
	if err != nil {
		// Ledger has it, the sweep will find the missing linkage as drift
		log.WithError(err).WithField("hash", hash).Error("Failed to store ledger linkage")
		return nil, err
	}

	self.monitor.State.Created.Inc()
	log.WithField("hash", hash).WithField("ledger_id", ledgerId).Info("Agreement created")

	if out.SecurityDeposit.IsPositive() {
		self.requestEscrow(out.Id)
	}

	return out, nil
}

// Removes the row created for an agreement the ledger rejected
func (self *Service) compensate(ctx context.Context, agreementId string) {
	self.monitor.Errors.CompensatingDeletes.Inc()

	// Deleting even if the caller gave up
	err := self.repo.DeleteAgreement(context.WithoutCancel(ctx), agreementId)
	if err != nil {
		self.Log.WithError(err).WithField("agreement_id", agreementId).Error("Compensating delete failed")
	}
}

// Escrow may be created later, failures are only logged
func (self *Service) requestEscrow(agreementId string) {
	if self.escrows == nil {
		return
	}
	self.monitor.State.EscrowRequests.Inc()

	self.SubmitToWorker(func() {
		escrow, err := self.escrows.CreateEscrowForAgreement(self.Ctx, agreementId)
		if err != nil {
			self.monitor.Errors.EscrowRequestFailures.Inc()
			self.Log.WithError(err).WithField("agreement_id", agreementId).Warn("Failed to create escrow")
			return
		}
		self.Log.WithField("agreement_id", agreementId).WithField("escrow_id", escrow.Id).Debug("Escrow requested")
	})
}

func (self *Service) FindAll(ctx context.Context, filter repository.AgreementFilter) ([]*model.Agreement, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fault.Validation("unknown status %q", filter.Status)
	}
	return self.repo.ListAgreements(ctx, filter)
}

func (self *Service) FindOne(ctx context.Context, id string) (*model.Agreement, error) {
	return self.repo.GetAgreement(ctx, id)
}

func (self *Service) Update(ctx context.Context, id string, patch Patch) (*model.Agreement, error) {
	agreement, err := self.repo.GetAgreement(ctx, id)
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "agreement.update", entityType, id, agreement, func() (*model.Agreement, error) {
		if agreement.IsTerminated() {
			return nil, fault.Conflict("agreement %s is terminated", id)
		}

		previous := agreement.Status
		err := patch.apply(agreement)
		if err != nil {
			return nil, err
		}

		err = self.repo.SaveAgreement(ctx, agreement)
		if err != nil {
			return nil, err
		}

		self.invalidate()

		if previous != model.AgreementStatusExpired && agreement.Status == model.AgreementStatusExpired {
			self.onExpired(ctx, agreement)
		}
		return agreement, nil
	})
}

func (self *Service) invalidate() {
	if self.views != nil {
		self.views.Invalidate()
	}
}

func (self *Service) onExpired(ctx context.Context, agreement *model.Agreement) {
	self.monitor.State.Expired.Inc()
	if self.reviews == nil {
		return
	}

	err := self.reviews.PromptReview(ctx, agreement)
	if err != nil {
		self.monitor.Errors.ReviewPromptFailures.Inc()
		self.Log.WithError(err).WithField("agreement_id", agreement.Id).Warn("Failed to prompt for review")
	}
}

func (self *Service) Terminate(ctx context.Context, id, reason string) (*model.Agreement, error) {
	agreement, err := self.repo.GetAgreement(ctx, id)
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "agreement.terminate", entityType, id, agreement, func() (*model.Agreement, error) {
		if agreement.IsTerminated() {
			return nil, fault.Conflict("agreement %s is already terminated", id)
		}

		now := time.Now().UTC()
		agreement.Status = model.AgreementStatusTerminated
		agreement.TerminationDate = &now
		agreement.TerminationReason = &reason

		err := self.repo.SaveAgreement(ctx, agreement)
		if err != nil {
			return nil, err
		}

		self.invalidate()
		self.monitor.State.Terminated.Inc()
		self.Log.WithField("agreement_id", id).Info("Agreement terminated")
		return agreement, nil
	})
}

// Appends the payment and adds it to the totals. Every call adds, there's no deduplication.
func (self *Service) RecordPayment(ctx context.Context, id string, input PaymentInput) (*model.Payment, error) {
	err := input.Validate()
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "agreement.record_payment", entityType, id, nil, func() (out *model.Payment, err error) {
		err = self.repo.Transaction(ctx, func(tx repository.Repository) error {
			agreement, err := tx.GetAgreement(ctx, id)
			if err != nil {
				return err
			}
			if agreement.IsTerminated() {
				return fault.Conflict("agreement %s is terminated", id)
			}

			date := input.PaymentDate
			if date.IsZero() {
				date = time.Now()
			}
			out = &model.Payment{
				Id:          uuid.NewString(),
				AgreementId: id,
				Amount:      input.Amount,
				PaymentDate: date.UTC(),
				Method:      input.Method,
				Reference:   input.Reference,
				Status:      model.PaymentStatusCompleted,
			}
			err = tx.CreatePayment(ctx, out)
			if err != nil {
				return err
			}

			// Escrow balance follows every payment, not only the deposit
			agreement.TotalPaid = agreement.TotalPaid.Add(input.Amount)
			agreement.EscrowBalance = agreement.EscrowBalance.Add(input.Amount)
			if agreement.Status == model.AgreementStatusDraft || agreement.Status == model.AgreementStatusPendingDeposit {
				agreement.Status = model.AgreementStatusActive
			}
			return tx.SaveAgreement(ctx, agreement)
		})
		if err != nil {
			return nil, err
		}

		self.invalidate()
		self.monitor.State.PaymentsRecorded.Inc()
		return
	})
}

// Newest first
func (self *Service) GetPayments(ctx context.Context, id string) ([]*model.Payment, error) {
	_, err := self.repo.GetAgreement(ctx, id)
	if err != nil {
		return nil, err
	}
	return self.repo.ListPayments(ctx, id)
}

// Split of a rent payment between landlord, agent and platform, as computed by the ledger
func (self *Service) GetPaymentSplit(ctx context.Context, id string, amount decimal.Decimal) (*ledger.PaymentSplitView, error) {
	if !amount.IsPositive() {
		return nil, fault.Validation("amount must be positive")
	}

	agreement, err := self.repo.GetAgreement(ctx, id)
	if err != nil {
		return nil, err
	}
	if !agreement.IsOnChain() {
		return nil, fault.Conflict("agreement %s is not on the ledger", id)
	}

	return self.contract.GetPaymentSplit(ctx, *agreement.LedgerAgreementId, amount)
}
