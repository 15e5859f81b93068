package audit

import (
	"context"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/repository"
	"github.com/rentledger/syncer/src/utils/task"

	"github.com/teivah/onecontext"
)

// Stores audit records in batches
type Sink struct {
	*task.Sink[*model.AuditRecord]

	repo  repository.Repository
	input chan *model.AuditRecord
}

func NewSink(config *config.Config, repo repository.Repository) (self *Sink) {
	self = new(Sink)
	self.repo = repo
	self.input = make(chan *model.AuditRecord, config.Audit.BatchSize)

	self.Sink = task.NewSink[*model.AuditRecord](config, "audit").
		WithBatchSize(config.Audit.BatchSize).
		WithInputChannel(self.input).
		WithBackoff(config.Audit.MaxElapsedTime, config.Audit.MaxInterval).
		WithOnFlush(config.Audit.FlushInterval, self.flush)

	return
}

// Blocks while the buffer is full. Records are dropped once either the caller or the sink gives up.
func (self *Sink) Record(ctx context.Context, record *model.AuditRecord) {
	ctx, cancel := onecontext.Merge(ctx, self.Ctx)
	defer cancel()

	select {
	case <-ctx.Done():
		self.Log.WithField("operation", record.Operation).
			WithField("entity_id", record.EntityId).
			Warn("Audit record dropped")
	case self.input <- record:
	}
}

func (self *Sink) flush(records []*model.AuditRecord) error {
	self.Log.WithField("len", len(records)).Debug("Storing audit records")
	return self.repo.CreateAuditRecords(self.CtxRunning, records)
}
