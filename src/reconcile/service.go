package reconcile

import (
	"context"
	"time"

	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/logger"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository"

	"github.com/sirupsen/logrus"
)

// On-demand reconciliation of agreements with the agreement contract
type Service struct {
	log      *logrus.Entry
	repo     repository.Repository
	contract *ledger.AgreementContract
	monitor  *report.ReconcilerReport
}

func NewService(repo repository.Repository, contract *ledger.AgreementContract) (self *Service) {
	self = new(Service)
	self.log = logger.NewSublogger("reconcile")
	self.repo = repo
	self.contract = contract
	self.monitor = new(report.ReconcilerReport)
	return
}

func (self *Service) WithMonitor(v *report.ReconcilerReport) *Service {
	self.monitor = v
	return self
}

// Mirrors the on-chain status in one unit of work. Nothing is stored when any step fails.
func (self *Service) SyncAgreementWithBlockchain(ctx context.Context, agreementId string) (out *model.Agreement, err error) {
	err = self.repo.Transaction(ctx, func(tx repository.Repository) (err error) {
		out, err = tx.GetAgreement(ctx, agreementId)
		if err != nil {
			return
		}
		if !out.IsOnChain() {
			return fault.Conflict("agreement %s is not on the ledger", agreementId)
		}

		view, err := self.contract.GetAgreement(ctx, *out.LedgerAgreementId)
		if err != nil {
			return
		}

		log := self.log.WithField("agreement_id", agreementId)
		if view.AgreementNumber != out.AgreementNumber {
			log.WithField("number", out.AgreementNumber).
				WithField("ledger_number", view.AgreementNumber).
				Warn("Ledger agreement has a different number")
		}
		if out.OnChainStatus != nil && *out.OnChainStatus != view.Status {
			self.monitor.State.StatusDrift.Inc()
			log.WithField("previous", *out.OnChainStatus).WithField("current", view.Status).Info("On-chain status changed")
		}

		now := time.Now().UTC()
		out.OnChainStatus = &view.Status
		out.LastSyncedAt = &now
		return tx.SaveAgreement(ctx, out)
	})
	if err != nil {
		self.monitor.Errors.SyncFailures.Inc()
		return nil, err
	}
	return
}

// Is the agreement number known to the ledger. Any failure counts as no.
func (self *Service) VerifyConsistency(ctx context.Context, agreementId string) bool {
	log := self.log.WithField("agreement_id", agreementId)

	agreement, err := self.repo.GetAgreement(ctx, agreementId)
	if err != nil {
		log.WithError(err).Debug("Failed to get agreement")
		return false
	}

	ok, err := self.contract.HasAgreement(ctx, agreement.AgreementNumber)
	if err != nil {
		log.WithError(err).Debug("Failed to check agreement on ledger")
		return false
	}
	return ok
}
