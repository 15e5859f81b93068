package model

import (
	"time"

	"github.com/jackc/pgtype"
)

const (
	TableAuditRecord = "audit_records"
)

type AuditRecord struct {
	Id         string `gorm:"primaryKey"`
	Operation  string
	EntityType string
	EntityId   string
	Before     pgtype.JSONB
	After      pgtype.JSONB
	Error      *string
	CreatedAt  time.Time
}

func (AuditRecord) TableName() string {
	return TableAuditRecord
}
