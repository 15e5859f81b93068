package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TablePayment = "payments"
)

// Payments are append only
type Payment struct {
	Id          string `gorm:"primaryKey"`
	AgreementId string
	Amount      decimal.Decimal `gorm:"type:numeric(20,7)"`
	PaymentDate time.Time
	Method      string
	Reference   string
	Status      PaymentStatus
	CreatedAt   time.Time
}

func (Payment) TableName() string {
	return TablePayment
}
