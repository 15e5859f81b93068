package monitor_rental

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(m *Monitor) float64
}

type Collector struct {
	monitor *Monitor
	metrics []metric
}

func NewCollector() *Collector {
	labels := prometheus.Labels{
		"app": "rental-syncer",
	}

	counter := func(name string, value func(m *Monitor) float64) metric {
		return metric{
			desc:  prometheus.NewDesc(name, "", nil, labels),
			kind:  prometheus.CounterValue,
			value: value,
		}
	}
	gauge := func(name string, value func(m *Monitor) float64) metric {
		return metric{
			desc:  prometheus.NewDesc(name, "", nil, labels),
			kind:  prometheus.GaugeValue,
			value: value,
		}
	}

	return &Collector{
		metrics: []metric{
			// Run
			gauge("up_for_seconds", func(m *Monitor) float64 { return float64(m.Report.Run.State.UpForSeconds.Load()) }),

			// Ledger
			counter("ledger_simulations", func(m *Monitor) float64 { return float64(m.Report.Ledger.State.Simulations.Load()) }),
			counter("ledger_submissions", func(m *Monitor) float64 { return float64(m.Report.Ledger.State.Submissions.Load()) }),
			counter("ledger_confirmed_transactions", func(m *Monitor) float64 { return float64(m.Report.Ledger.State.ConfirmedTransactions.Load()) }),
			counter("ledger_status_checks", func(m *Monitor) float64 { return float64(m.Report.Ledger.State.StatusChecks.Load()) }),
			counter("ledger_simulation_failures", func(m *Monitor) float64 { return float64(m.Report.Ledger.Errors.SimulationFailures.Load()) }),
			counter("ledger_submission_failures", func(m *Monitor) float64 { return float64(m.Report.Ledger.Errors.SubmissionFailures.Load()) }),
			counter("ledger_status_check_failures", func(m *Monitor) float64 { return float64(m.Report.Ledger.Errors.StatusCheckFailures.Load()) }),
			counter("ledger_transaction_failures", func(m *Monitor) float64 { return float64(m.Report.Ledger.Errors.TransactionFailures.Load()) }),
			counter("ledger_transaction_timeouts", func(m *Monitor) float64 { return float64(m.Report.Ledger.Errors.TransactionTimeouts.Load()) }),

			// Agreements
			counter("agreements_created", func(m *Monitor) float64 { return float64(m.Report.Agreement.State.Created.Load()) }),
			counter("agreements_terminated", func(m *Monitor) float64 { return float64(m.Report.Agreement.State.Terminated.Load()) }),
			counter("agreements_expired", func(m *Monitor) float64 { return float64(m.Report.Agreement.State.Expired.Load()) }),
			counter("payments_recorded", func(m *Monitor) float64 { return float64(m.Report.Agreement.State.PaymentsRecorded.Load()) }),
			counter("escrow_requests", func(m *Monitor) float64 { return float64(m.Report.Agreement.State.EscrowRequests.Load()) }),
			counter("agreement_compensating_deletes", func(m *Monitor) float64 { return float64(m.Report.Agreement.Errors.CompensatingDeletes.Load()) }),
			counter("escrow_request_failures", func(m *Monitor) float64 { return float64(m.Report.Agreement.Errors.EscrowRequestFailures.Load()) }),
			counter("review_prompt_failures", func(m *Monitor) float64 { return float64(m.Report.Agreement.Errors.ReviewPromptFailures.Load()) }),

			// Escrows
			counter("escrows_created", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Created.Load()) }),
			counter("escrow_approvals", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Approvals.Load()) }),
			counter("escrows_released", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Released.Load()) }),
			counter("escrow_disputes", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Disputes.Load()) }),
			counter("escrow_disputes_resolved", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Resolved.Load()) }),
			counter("escrows_synced", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Synced.Load()) }),
			counter("escrow_status_drift", func(m *Monitor) float64 { return float64(m.Report.Escrow.State.Drift.Load()) }),
			counter("escrow_create_rollbacks", func(m *Monitor) float64 { return float64(m.Report.Escrow.Errors.CreateRollbacks.Load()) }),
			counter("escrow_sync_failures", func(m *Monitor) float64 { return float64(m.Report.Escrow.Errors.SyncFailures.Load()) }),

			// Obligation tokens
			counter("obligations_minted", func(m *Monitor) float64 { return float64(m.Report.Obligation.State.Minted.Load()) }),
			counter("obligations_transferred", func(m *Monitor) float64 { return float64(m.Report.Obligation.State.Transferred.Load()) }),
			counter("obligation_events_received", func(m *Monitor) float64 { return float64(m.Report.Obligation.State.EventsReceived.Load()) }),
			counter("obligation_events_processed", func(m *Monitor) float64 { return float64(m.Report.Obligation.State.EventsProcessed.Load()) }),
			counter("obligation_events_skipped", func(m *Monitor) float64 { return float64(m.Report.Obligation.State.EventsSkipped.Load()) }),
			counter("obligation_ownership_drift", func(m *Monitor) float64 { return float64(m.Report.Obligation.State.OwnershipDrift.Load()) }),
			counter("obligation_event_failures", func(m *Monitor) float64 { return float64(m.Report.Obligation.Errors.EventFailures.Load()) }),
			counter("obligation_sync_failures", func(m *Monitor) float64 { return float64(m.Report.Obligation.Errors.SyncFailures.Load()) }),

			// Reconciler
			counter("reconciler_sweeps", func(m *Monitor) float64 { return float64(m.Report.Reconciler.State.Sweeps.Load()) }),
			counter("reconciler_agreements_synced", func(m *Monitor) float64 { return float64(m.Report.Reconciler.State.AgreementsSynced.Load()) }),
			gauge("reconciler_inconsistent_agreements", func(m *Monitor) float64 {
				return float64(m.Report.Reconciler.State.InconsistentAgreements.Load())
			}),
			counter("reconciler_status_drift", func(m *Monitor) float64 { return float64(m.Report.Reconciler.State.StatusDrift.Load()) }),
			gauge("reconciler_ledger_count_drift", func(m *Monitor) float64 {
				return float64(m.Report.Reconciler.State.LedgerCountDrift.Load())
			}),
			gauge("reconciler_last_sweep_timestamp", func(m *Monitor) float64 {
				return float64(m.Report.Reconciler.State.LastSweepTimestamp.Load())
			}),
			counter("reconciler_sync_failures", func(m *Monitor) float64 { return float64(m.Report.Reconciler.Errors.SyncFailures.Load()) }),
			counter("reconciler_sweep_failures", func(m *Monitor) float64 { return float64(m.Report.Reconciler.Errors.SweepFailures.Load()) }),

			// Redis
			counter("redis_messages_published", func(m *Monitor) float64 {
				return float64(m.Report.RedisPublisher.State.MessagesPublished.Load())
			}),
			counter("redis_encoding_errors", func(m *Monitor) float64 { return float64(m.Report.RedisPublisher.Errors.Encoding.Load()) }),
			counter("redis_publish_errors", func(m *Monitor) float64 { return float64(m.Report.RedisPublisher.Errors.Publish.Load()) }),
			counter("redis_persistent_failures", func(m *Monitor) float64 {
				return float64(m.Report.RedisPublisher.Errors.PersistentFailure.Load())
			}),
		},
	}
}

func (self *Collector) WithMonitor(m *Monitor) *Collector {
	self.monitor = m
	return self
}

func (self *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range self.metrics {
		ch <- m.desc
	}
}

// Collect implements required collect function for all promehteus collectors
func (self *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range self.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(self.monitor))
	}
}
