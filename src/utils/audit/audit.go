// Package audit records the state of entities before and after named operations.
package audit

import (
	"context"
	"reflect"
	"time"

	"github.com/rentledger/syncer/src/utils/model"

	"github.com/jackc/pgtype"
	"github.com/rs/xid"
)

type Recorder interface {
	Record(ctx context.Context, record *model.AuditRecord)
}

// Discards records
type Nop struct{}

func (Nop) Record(ctx context.Context, record *model.AuditRecord) {}

type identifiable interface {
	GetId() string
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func jsonb(v any) (out pgtype.JSONB) {
	out.Status = pgtype.Null
	if isNil(v) {
		return
	}
	err := out.Set(v)
	if err != nil {
		out.Status = pgtype.Null
	}
	return
}

// Runs fn and records before and after state of the entity under the operation's name.
// An empty entityId is taken from the result. Failed operations are recorded with their error.
func Track[T any](ctx context.Context, recorder Recorder, operation, entityType, entityId string, before any, fn func() (T, error)) (out T, err error) {
	if recorder == nil {
		return fn()
	}

	// Before state may be changed by fn
	beforeState := jsonb(before)

	out, err = fn()

	record := &model.AuditRecord{
		Id:         xid.New().String(),
		Operation:  operation,
		EntityType: entityType,
		EntityId:   entityId,
		Before:     beforeState,
		After:      pgtype.JSONB{Status: pgtype.Null},
		CreatedAt:  time.Now().UTC(),
	}

	if err != nil {
		msg := err.Error()
		record.Error = &msg
	} else {
		record.After = jsonb(out)
		if record.EntityId == "" {
			if i, ok := any(out).(identifiable); ok && !isNil(out) {
				record.EntityId = i.GetId()
			}
		}
	}

	recorder.Record(ctx, record)
	return
}
