package monitor_rental

import (
	"net/http"
	"time"

	"github.com/rentledger/syncer/src/utils/monitoring/report"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Stores and computes monitor counters
type Monitor struct {
	Report    report.Report
	collector *Collector

	// Max ratio of failed to submitted ledger transactions considered healthy
	maxFailureRatio float64
}

func NewMonitor() (self *Monitor) {
	self = new(Monitor)

	self.Report = report.Report{
		Run:            &report.RunReport{},
		Ledger:         &report.LedgerReport{},
		Agreement:      &report.AgreementReport{},
		Escrow:         &report.EscrowReport{},
		Obligation:     &report.ObligationReport{},
		Reconciler:     &report.ReconcilerReport{},
		RedisPublisher: &report.RedisPublisherReport{},
	}

	// Initialization
	self.Report.Run.State.StartTimestamp.Store(time.Now().Unix())
	self.maxFailureRatio = 0.5

	self.collector = NewCollector().WithMonitor(self)
	return
}

func (self *Monitor) WithMaxFailureRatio(v float64) *Monitor {
	self.maxFailureRatio = v
	return self
}

func (self *Monitor) GetReport() *report.Report {
	return &self.Report
}

func (self *Monitor) GetPrometheusCollector() (collector prometheus.Collector) {
	return self.collector
}

// Unhealthy when most of the ledger transactions fail or never reach finality
func (self *Monitor) IsOK() bool {
	submitted := self.Report.Ledger.State.Submissions.Load()
	if submitted < 10 {
		return true
	}
	failed := self.Report.Ledger.Errors.TransactionFailures.Load() + self.Report.Ledger.Errors.TransactionTimeouts.Load()
	return float64(failed)/float64(submitted) <= self.maxFailureRatio
}

func (self *Monitor) OnGetState(c *gin.Context) {
	self.Report.Run.State.UpForSeconds.Store(uint64(time.Now().Unix() - self.Report.Run.State.StartTimestamp.Load()))
	c.JSON(http.StatusOK, &self.Report)
}

func (self *Monitor) OnGetHealth(c *gin.Context) {
	if self.IsOK() {
		c.Status(http.StatusOK)
	} else {
		c.Status(http.StatusServiceUnavailable)
	}
}
