package obligation

import (
	"context"
	"errors"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/events"
	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/monitoring/report"
	"github.com/rentledger/syncer/src/utils/task"

	"github.com/cenkalti/backoff/v4"
)

// Applies ledger notifications about obligation tokens to the database.
// Mints are idempotent. A transfer of a token that was never stored is an error, it isn't reordered.
type Processor struct {
	*task.Task

	service *Service
	monitor *report.ObligationReport

	input <-chan *events.ObligationEvent
}

func NewProcessor(config *config.Config, service *Service) (self *Processor) {
	self = new(Processor)
	self.service = service
	self.monitor = new(report.ObligationReport)

	self.Task = task.NewTask(config, "obligation-processor").
		WithSubtaskFunc(self.run)

	return
}

func (self *Processor) WithMonitor(v *report.ObligationReport) *Processor {
	self.monitor = v
	return self
}

func (self *Processor) WithInputChannel(v <-chan *events.ObligationEvent) *Processor {
	self.input = v
	return self
}

func (self *Processor) run() error {
	for event := range self.input {
		self.process(event)
	}
	return nil
}

// Database failures are retried, ordering defects are not
func (self *Processor) process(event *events.ObligationEvent) {
	log := self.Log.WithField("type", event.Type).
		WithField("agreement_id", event.AgreementId).
		WithField("hash", event.TxHash)

	err := task.NewRetry().
		WithContext(self.Ctx).
		WithMaxElapsedTime(self.Config.Events.MaxElapsedTime).
		WithMaxInterval(self.Config.Events.MaxInterval).
		WithOnError(func(err error) error {
			if fault.IsClientError(err) || errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			log.WithError(err).Warn("Failed to handle event, retrying")
			return err
		}).
		Run(func() error {
			return self.Handle(self.Ctx, event)
		})
	if err != nil {
		self.monitor.Errors.EventFailures.Inc()
		log.WithError(err).Error("Failed to handle event")
	}
}

func (self *Processor) Handle(ctx context.Context, event *events.ObligationEvent) error {
	var (
		err     error
		skipped bool
	)
	switch event.Type {
	case events.ObligationMinted:
		skipped, err = self.minted(ctx, event)
	case events.ObligationTransferred:
		skipped, err = self.transferred(ctx, event)
	default:
		err = fault.Validation("unknown event type %q", event.Type)
	}
	if err != nil {
		return err
	}

	if skipped {
		self.monitor.State.EventsSkipped.Inc()
	} else {
		self.monitor.State.EventsProcessed.Inc()
	}
	return nil
}

func (self *Processor) minted(ctx context.Context, event *events.ObligationEvent) (skipped bool, err error) {
	_, err = self.service.repo.GetObligationToken(ctx, event.AgreementId)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, fault.ErrNotFound) {
		return
	}

	mintedAt := event.MintedAt
	if mintedAt.IsZero() {
		mintedAt = time.Now()
	}

	_, err = self.service.storeMint(ctx, event.AgreementId, event.Landlord, event.TxHash, mintedAt)
	if errors.Is(err, fault.ErrConflict) {
		// Stored in the meantime
		return true, nil
	}
	return
}

func (self *Processor) transferred(ctx context.Context, event *events.ObligationEvent) (skipped bool, err error) {
	token, err := self.service.repo.GetObligationToken(ctx, event.AgreementId)
	if errors.Is(err, fault.ErrNotFound) {
		self.Log.WithField("agreement_id", event.AgreementId).Error("Transfer of a token that was never minted")
		return false, fault.NotFound("transfer before mint of agreement %s", event.AgreementId)
	}
	if err != nil {
		return
	}

	// Redelivery, or a transfer made through the service
	if token.LastTransferTransactionHash != nil && *token.LastTransferTransactionHash == event.TxHash &&
		ledger.SameAddress(token.CurrentOwner, event.To) {
		return true, nil
	}

	err = self.service.storeTransfer(ctx, token, event.To, event.TxHash, time.Now())
	return
}
