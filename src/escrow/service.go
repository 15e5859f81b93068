package escrow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rentledger/syncer/src/utils/audit"
	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/logger"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const entityType = "escrow"

// Keeps escrow rows in line with the escrow contract.
// The status field changes only through explicit calls, ledger reads land in OnChainStatus.
type Service struct {
	log      *logrus.Entry
	repo     repository.Repository
	contract *ledger.EscrowContract
	monitor  *report.EscrowReport
	recorder audit.Recorder

	threshold int
	arbiter   string
}

func NewService(config *config.Config, repo repository.Repository, contract *ledger.EscrowContract) (self *Service) {
	self = new(Service)
	self.log = logger.NewSublogger("escrow")
	self.repo = repo
	self.contract = contract
	self.monitor = new(report.EscrowReport)
	self.recorder = audit.Nop{}
	self.threshold = config.Escrow.ReleaseThreshold
	if self.threshold < 1 {
		self.threshold = 1
	}
	self.arbiter = config.Escrow.ArbiterAddress
	return
}

func (self *Service) WithMonitor(v *report.EscrowReport) *Service {
	self.monitor = v
	return self
}

func (self *Service) WithAuditRecorder(v audit.Recorder) *Service {
	self.recorder = v
	return self
}

// Creates the escrow row and its on-chain counterpart in one unit of work.
// Nothing stays in the database when the ledger call fails.
func (self *Service) CreateEscrowForAgreement(ctx context.Context, agreementId string) (*model.Escrow, error) {
	return audit.Track(ctx, self.recorder, "escrow.create", entityType, "", nil, func() (out *model.Escrow, err error) {
		err = self.repo.Transaction(ctx, func(tx repository.Repository) (err error) {
			out, err = self.create(ctx, tx, agreementId)
			return
		})
		if err != nil {
			return nil, err
		}
		self.monitor.State.Created.Inc()
		return
	})
}

func (self *Service) create(ctx context.Context, tx repository.Repository, agreementId string) (out *model.Escrow, err error) {
	log := self.log.WithField("agreement_id", agreementId)

	agreement, err := tx.GetAgreement(ctx, agreementId)
	if err != nil {
		return
	}
	if !agreement.IsOnChain() {
		return nil, fault.Conflict("agreement %s is not on the ledger yet", agreementId)
	}
	if !agreement.SecurityDeposit.IsPositive() {
		return nil, fault.Validation("agreement %s has no security deposit", agreementId)
	}

	_, err = tx.GetEscrowByAgreement(ctx, agreementId)
	if err == nil {
		return nil, fault.Conflict("escrow for agreement %s already exists", agreementId)
	}
	if !errors.Is(err, fault.ErrNotFound) {
		return
	}

	out = &model.Escrow{
		Id:             uuid.NewString(),
		AgreementId:    agreementId,
		Amount:         agreement.SecurityDeposit,
		ArbiterAddress: self.arbiter,
		Status:         model.EscrowStatusPending,
	}
	err = tx.CreateEscrow(ctx, out)
	if err != nil {
		return
	}

	hash, ledgerId, err := self.contract.Create(ctx, ledger.CreateEscrowArgs{
		AgreementLedgerId: *agreement.LedgerAgreementId,
		Landlord:          agreement.LandlordAddress,
		Tenant:            agreement.TenantAddress,
		Arbiter:           self.arbiter,
		Amount:            agreement.SecurityDeposit,
	})
	if err != nil {
		self.monitor.Errors.CreateRollbacks.Inc()
		log.WithError(err).Error("Ledger rejected escrow, rolling back")
		return nil, err
	}

	now := time.Now().UTC()
	out.LedgerEscrowId = &ledgerId
	out.TransactionHash = &hash
	out.LastSyncedAt = &now
	err = tx.SaveEscrow(ctx, out)
	if err != nil {
		return
	}

	log.WithField("escrow_id", out.Id).WithField("hash", hash).Info("Escrow created")
	return
}

// Adds one approval. The escrow is released when approvals reach the threshold.
// Concurrent approvals may overwrite each other's count.
func (self *Service) ApproveEscrowRelease(ctx context.Context, escrowId, releaseTo string) (*model.Escrow, error) {
	escrow, err := self.repo.GetEscrow(ctx, escrowId)
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "escrow.approve_release", entityType, escrowId, escrow, func() (*model.Escrow, error) {
		switch {
		case escrow.Status == model.EscrowStatusDisputed:
			return nil, fault.Conflict("escrow %s is disputed, only the arbiter can resolve it", escrowId)
		case escrow.Status.IsTerminal():
			return nil, fault.Conflict("escrow %s is already %s", escrowId, escrow.Status)
		case !ledger.IsValidAddress(releaseTo):
			return nil, fault.Validation("invalid release address %q", releaseTo)
		}

		if escrow.IsOnChain() {
			_, err := self.contract.ApproveRelease(ctx, *escrow.LedgerEscrowId, releaseTo)
			if err != nil {
				return nil, err
			}
		}

		// Count read before the ledger call
		escrow.ApprovalCount++
		self.monitor.State.Approvals.Inc()

		if escrow.ApprovalCount >= self.threshold {
			now := time.Now().UTC()
			escrow.Status = model.EscrowStatusReleased
			escrow.ReleasedAt = &now
			escrow.ReleasedTo = &releaseTo
			self.monitor.State.Released.Inc()
			self.log.WithField("escrow_id", escrowId).WithField("release_to", releaseTo).Info("Escrow released")
		}

		err := self.repo.SaveEscrow(ctx, escrow)
		if err != nil {
			return nil, err
		}
		return escrow, nil
	})
}

// Moves a non-terminal escrow to DISPUTED. An empty disputeId gets generated.
func (self *Service) RaiseDispute(ctx context.Context, escrowId, reason, disputeId string) (*model.Escrow, error) {
	escrow, err := self.repo.GetEscrow(ctx, escrowId)
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "escrow.raise_dispute", entityType, escrowId, escrow, func() (*model.Escrow, error) {
		reason = strings.TrimSpace(reason)
		switch {
		case escrow.Status.IsTerminal():
			return nil, fault.Conflict("escrow %s is already %s", escrowId, escrow.Status)
		case reason == "":
			return nil, fault.Validation("dispute reason is required")
		}
		if disputeId == "" {
			disputeId = uuid.NewString()
		}

		if escrow.IsOnChain() {
			_, err := self.contract.RaiseDispute(ctx, *escrow.LedgerEscrowId, disputeId, reason)
			if err != nil {
				return nil, err
			}
		}

		now := time.Now().UTC()
		escrow.Status = model.EscrowStatusDisputed
		escrow.DisputeId = &disputeId
		escrow.DisputeReason = &reason
		escrow.DisputedAt = &now

		err := self.repo.SaveEscrow(ctx, escrow)
		if err != nil {
			return nil, err
		}

		self.monitor.State.Disputes.Inc()
		self.log.WithField("escrow_id", escrowId).WithField("dispute_id", disputeId).Warn("Escrow disputed")
		return escrow, nil
	})
}

// Arbiter decision on a disputed escrow. Refunds go back to the tenant.
func (self *Service) ResolveDispute(ctx context.Context, escrowId, releaseTo string, refund bool) (*model.Escrow, error) {
	escrow, err := self.repo.GetEscrow(ctx, escrowId)
	if err != nil {
		return nil, err
	}

	return audit.Track(ctx, self.recorder, "escrow.resolve_dispute", entityType, escrowId, escrow, func() (*model.Escrow, error) {
		if escrow.Status != model.EscrowStatusDisputed {
			return nil, fault.Conflict("escrow %s is %s, not disputed", escrowId, escrow.Status)
		}
		if !refund && !ledger.IsValidAddress(releaseTo) {
			return nil, fault.Validation("invalid release address %q", releaseTo)
		}

		if refund {
			agreement, err := self.repo.GetAgreement(ctx, escrow.AgreementId)
			if err != nil {
				return nil, err
			}
			releaseTo = agreement.TenantAddress
		}

		if escrow.IsOnChain() {
			_, err := self.contract.ResolveDispute(ctx, *escrow.LedgerEscrowId, releaseTo, refund)
			if err != nil {
				return nil, err
			}
		}

		now := time.Now().UTC()
		escrow.ResolvedAt = &now
		escrow.ReleasedAt = &now
		escrow.ReleasedTo = &releaseTo
		escrow.Status = model.EscrowStatusReleased
		if refund {
			escrow.Status = model.EscrowStatusRefunded
		}

		err := self.repo.SaveEscrow(ctx, escrow)
		if err != nil {
			return nil, err
		}

		self.monitor.State.Resolved.Inc()
		self.log.WithField("escrow_id", escrowId).WithField("status", escrow.Status).Info("Dispute resolved")
		return escrow, nil
	})
}

// Deposits the funds on-chain. The FUNDED state is only observed through sync.
func (self *Service) FundEscrow(ctx context.Context, escrowId string) (*model.Escrow, error) {
	escrow, err := self.repo.GetEscrow(ctx, escrowId)
	if err != nil {
		return nil, err
	}
	switch {
	case !escrow.IsOnChain():
		return nil, fault.Conflict("escrow %s is not on the ledger", escrowId)
	case escrow.Status != model.EscrowStatusPending:
		return nil, fault.Conflict("escrow %s is %s, not pending", escrowId, escrow.Status)
	}

	_, err = self.contract.FundEscrow(ctx, *escrow.LedgerEscrowId)
	if err != nil {
		return nil, err
	}

	return self.SyncEscrowWithBlockchain(ctx, escrowId)
}

// Mirrors the on-chain status. Disagreement with the status field is reported, never applied.
func (self *Service) SyncEscrowWithBlockchain(ctx context.Context, escrowId string) (out *model.Escrow, err error) {
	defer func() {
		if err != nil {
			self.monitor.Errors.SyncFailures.Inc()
		}
	}()

	out, err = self.repo.GetEscrow(ctx, escrowId)
	if err != nil {
		return
	}
	if !out.IsOnChain() {
		return nil, fault.Conflict("escrow %s is not on the ledger", escrowId)
	}

	view, err := self.contract.GetEscrow(ctx, *out.LedgerEscrowId)
	if err != nil {
		return nil, err
	}

	if !statusMatches(out.Status, view.Status) {
		self.monitor.State.Drift.Inc()
		self.log.WithField("escrow_id", escrowId).
			WithField("status", out.Status).
			WithField("on_chain_status", view.Status).
			Warn("Escrow status drift")
	}

	now := time.Now().UTC()
	out.OnChainStatus = &view.Status
	out.LastSyncedAt = &now
	err = self.repo.SaveEscrow(ctx, out)
	if err != nil {
		return nil, err
	}

	self.monitor.State.Synced.Inc()
	return
}

// A funded deposit is still pending off-chain
func statusMatches(status model.EscrowStatus, onChain string) bool {
	if strings.EqualFold(string(status), onChain) {
		return true
	}
	return status == model.EscrowStatusPending && strings.EqualFold(onChain, string(model.EscrowStatusFunded))
}

func (self *Service) FindOne(ctx context.Context, escrowId string) (*model.Escrow, error) {
	return self.repo.GetEscrow(ctx, escrowId)
}

func (self *Service) FindByAgreement(ctx context.Context, agreementId string) (*model.Escrow, error) {
	return self.repo.GetEscrowByAgreement(ctx, agreementId)
}
