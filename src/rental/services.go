package rental

import (
	"context"

	"github.com/rentledger/syncer/src/agreement"
	"github.com/rentledger/syncer/src/escrow"
	"github.com/rentledger/syncer/src/obligation"
	"github.com/rentledger/syncer/src/reconcile"
	"github.com/rentledger/syncer/src/utils/audit"
	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/events"
	"github.com/rentledger/syncer/src/utils/finality"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/model"
	monitor_rental "github.com/rentledger/syncer/src/utils/monitoring/rental"
	"github.com/rentledger/syncer/src/utils/repository"
)

// Rental services wired to the database and the ledger gateway.
// Operations exposed upward live here, the commands and the controller only run them.
type Services struct {
	Monitor    *monitor_rental.Monitor
	Repository repository.Repository

	Agreements  *agreement.Service
	Escrows     *escrow.Service
	Obligations *obligation.Service
	Analytics   *obligation.Analytics
	Reconciler  *reconcile.Service
	Scheduler   *reconcile.Scheduler

	// Background parts, started by the controller
	AuditSink *audit.Sink
	Notifier  *events.ExpiryNotifier
}

func NewServices(ctx context.Context, config *config.Config, applicationName string) (self *Services, err error) {
	self = new(Services)

	// SQL database
	db, err := model.NewConnection(ctx, config, applicationName)
	if err != nil {
		return
	}
	self.Repository = repository.NewGorm(db)

	// Monitoring
	self.Monitor = monitor_rental.NewMonitor()
	report := &self.Monitor.Report

	// Ledger gateway, every write waits for finality
	client := ledger.NewRpcClient(&config.Ledger)
	poller := finality.NewPoller(&config.Finality).
		WithMonitor(report.Ledger)

	agreementContract := ledger.NewAgreementContract(client.Contract(config.Ledger.AgreementContractId), poller, config.Ledger.Decimals, report.Ledger)
	escrowContract := ledger.NewEscrowContract(client.Contract(config.Ledger.EscrowContractId), poller, config.Ledger.Decimals, report.Ledger)
	obligationContract := ledger.NewObligationContract(client.Contract(config.Ledger.ObligationContractId), poller, report.Ledger)

	self.AuditSink = audit.NewSink(config, self.Repository)

	self.Escrows = escrow.NewService(config, self.Repository, escrowContract).
		WithMonitor(report.Escrow).
		WithAuditRecorder(self.AuditSink)

	self.Analytics = obligation.NewAnalytics(config, self.Repository, obligationContract)

	self.Agreements = agreement.NewService(config, self.Repository, agreementContract).
		WithEscrowCreator(self.Escrows).
		WithInvalidator(self.Analytics).
		WithMonitor(report.Agreement).
		WithAuditRecorder(self.AuditSink)

	if config.Events.Enabled {
		self.Notifier = events.NewExpiryNotifier(config.Events.BufferSize)
		self.Agreements.WithReviewPrompter(self.Notifier)
	}

	self.Obligations = obligation.NewService(self.Repository, obligationContract).
		WithAnalytics(self.Analytics).
		WithMonitor(report.Obligation).
		WithAuditRecorder(self.AuditSink)

	self.Reconciler = reconcile.NewService(self.Repository, agreementContract).
		WithMonitor(report.Reconciler)
	self.Scheduler = reconcile.NewScheduler(config, self.Reconciler).
		WithEscrowSyncer(self.Escrows).
		WithOwnershipSyncer(self.Obligations).
		WithMonitor(report.Reconciler)

	return
}
