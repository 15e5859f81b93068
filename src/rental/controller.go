package rental

import (
	"github.com/rentledger/syncer/src/obligation"
	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/events"
	"github.com/rentledger/syncer/src/utils/monitoring"
	"github.com/rentledger/syncer/src/utils/task"
)

type Controller struct {
	*task.Task

	Services *Services
}

// Runs the rental services with everything that works in the background:
// escrow workers, audit sink, ledger event processing, reconciliation sweeps and the monitoring server.
func NewController(config *config.Config) (self *Controller, err error) {
	self = new(Controller)
	self.Task = task.NewTask(config, "rental")

	self.Services, err = NewServices(self.Ctx, config, "rental")
	if err != nil {
		return
	}
	services := self.Services

	server := monitoring.NewServer(config).
		WithMonitor(services.Monitor)

	self.Task.
		WithSubtask(services.AuditSink.Task).
		WithSubtask(services.Agreements.Task).
		WithConditionalSubtask(config.Reconciler.Enabled, services.Scheduler.Task).
		WithSubtask(server.Task)

	if config.Events.Enabled {
		// Ledger notifications about obligation tokens
		subscriber := events.NewSubscriber(config).
			WithMonitor(services.Monitor.Report.Obligation)

		processor := obligation.NewProcessor(config, services.Obligations).
			WithInputChannel(subscriber.Output()).
			WithMonitor(services.Monitor.Report.Obligation)

		// Review prompts for expired agreements
		publisher := events.NewPublisher[*events.AgreementExpired](config, &config.Events.Redis, "expiry-publisher").
			WithInputChannel(services.Notifier.Output()).
			WithChannelName(config.Events.ExpiredChannel).
			WithMonitor(services.Monitor.Report.RedisPublisher)

		self.Task.
			WithSubtask(subscriber.Task).
			WithSubtask(processor.Task).
			WithSubtask(publisher.Task)
	}

	return
}
