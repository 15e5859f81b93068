package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/repository"
	"github.com/rentledger/syncer/src/utils/task"

	"github.com/robfig/cron"
	"go.uber.org/ratelimit"
)

type EscrowSyncer interface {
	FindByAgreement(ctx context.Context, agreementId string) (*model.Escrow, error)
	SyncEscrowWithBlockchain(ctx context.Context, escrowId string) (*model.Escrow, error)
}

type OwnershipSyncer interface {
	SyncNftOwnership(ctx context.Context, agreementId string) (*model.ObligationToken, error)
}

// Periodic sweep over every agreement linked to the ledger.
// Syncs the agreement, its escrow and its obligation token, paced to spare the gateway.
type Scheduler struct {
	*task.Task

	service *Service
	escrows EscrowSyncer
	tokens  OwnershipSyncer
	monitor *report.ReconcilerReport

	cron    *cron.Cron
	limiter ratelimit.Limiter

	// Sweep requests. A request arriving during a sweep waits, more are dropped.
	trigger chan struct{}
}

func NewScheduler(config *config.Config, service *Service) (self *Scheduler) {
	self = new(Scheduler)
	self.service = service
	self.monitor = new(report.ReconcilerReport)
	self.cron = cron.NewWithLocation(time.UTC)
	self.trigger = make(chan struct{}, 1)

	perSecond := config.Reconciler.PerSecond
	if perSecond > 0 {
		self.limiter = ratelimit.New(perSecond)
	} else {
		self.limiter = ratelimit.NewUnlimited()
	}

	self.Task = task.NewTask(config, "reconciler").
		WithOnBeforeStart(self.schedule).
		WithSubtaskFunc(self.run).
		WithOnStop(self.cron.Stop)

	return
}

func (self *Scheduler) WithEscrowSyncer(v EscrowSyncer) *Scheduler {
	self.escrows = v
	return self
}

func (self *Scheduler) WithOwnershipSyncer(v OwnershipSyncer) *Scheduler {
	self.tokens = v
	return self
}

func (self *Scheduler) WithMonitor(v *report.ReconcilerReport) *Scheduler {
	self.monitor = v
	return self
}

func (self *Scheduler) schedule() error {
	err := self.cron.AddFunc(self.Config.Reconciler.Schedule, self.Trigger)
	if err != nil {
		return err
	}
	self.cron.Start()
	return nil
}

// Requests a sweep, no-op if one is already waiting
func (self *Scheduler) Trigger() {
	select {
	case self.trigger <- struct{}{}:
	default:
	}
}

func (self *Scheduler) run() error {
	for {
		select {
		case <-self.StopChannel:
			return nil
		case <-self.trigger:
			err := self.Sweep(self.Ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				self.Log.WithError(err).Error("Sweep failed")
			}
		}
	}
}

// Reconciles every linked agreement, page by page
func (self *Scheduler) Sweep(ctx context.Context) (err error) {
	start := time.Now()
	self.monitor.State.Sweeps.Inc()
	defer func() {
		if err != nil {
			self.monitor.Errors.SweepFailures.Inc()
		}
	}()

	batchSize := self.Config.Reconciler.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	var linked, inconsistent int64
	filter := repository.AgreementFilter{OnChainOnly: true, Limit: batchSize}
	for {
		page, err := self.service.repo.ListAgreements(ctx, filter)
		if err != nil {
			return err
		}

		for _, agreement := range page {
			if err = ctx.Err(); err != nil {
				return err
			}
			self.limiter.Take()

			linked++
			if !self.reconcile(ctx, agreement) {
				inconsistent++
			}
		}

		if len(page) < batchSize {
			break
		}
		filter.AfterId = page[len(page)-1].Id
	}

	self.monitor.State.InconsistentAgreements.Store(inconsistent)
	self.checkCount(ctx, linked)
	self.monitor.State.LastSweepTimestamp.Store(time.Now().Unix())

	self.Log.WithField("agreements", linked).
		WithField("inconsistent", inconsistent).
		WithField("duration", time.Since(start)).
		Info("Sweep finished")
	return nil
}

// Returns false when the ledger doesn't know the agreement
func (self *Scheduler) reconcile(ctx context.Context, agreement *model.Agreement) (consistent bool) {
	log := self.Log.WithField("agreement_id", agreement.Id)

	_, err := self.service.SyncAgreementWithBlockchain(ctx, agreement.Id)
	if err != nil {
		log.WithError(err).Warn("Failed to sync agreement")
	} else {
		self.monitor.State.AgreementsSynced.Inc()
	}

	consistent = self.service.VerifyConsistency(ctx, agreement.Id)
	if !consistent {
		log.WithField("number", agreement.AgreementNumber).Warn("Agreement missing on ledger")
	}

	if self.escrows != nil {
		escrow, err := self.escrows.FindByAgreement(ctx, agreement.Id)
		switch {
		case errors.Is(err, fault.ErrNotFound):
		case err != nil:
			log.WithError(err).Warn("Failed to get escrow")
		case escrow.IsOnChain() && !escrow.Status.IsTerminal():
			_, err = self.escrows.SyncEscrowWithBlockchain(ctx, escrow.Id)
			if err != nil {
				log.WithError(err).WithField("escrow_id", escrow.Id).Warn("Failed to sync escrow")
			}
		}
	}

	if self.tokens != nil {
		_, err = self.tokens.SyncNftOwnership(ctx, agreement.Id)
		if err != nil && !errors.Is(err, fault.ErrNotFound) {
			log.WithError(err).Warn("Failed to sync obligation token ownership")
		}
	}

	return
}

// Agreements on the ledger that have no linked row, or the other way round
func (self *Scheduler) checkCount(ctx context.Context, linked int64) {
	count, err := self.service.contract.GetAgreementCount(ctx)
	if err != nil {
		self.Log.WithError(err).Warn("Failed to get ledger agreement count")
		return
	}

	drift := int64(count) - linked
	self.monitor.State.LedgerCountDrift.Store(drift)
	if drift != 0 {
		self.Log.WithField("ledger", count).WithField("linked", linked).Warn("Agreement count drift")
	}
}
