package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TableAgreement = "agreements"
)

var ErrLedgerLinkage = errors.New("ledger agreement id set without a transaction hash")

type Agreement struct {
	Id              string `gorm:"primaryKey"`
	AgreementNumber string
	PropertyId      string

	// Parties
	LandlordId      string
	TenantId        string
	AgentId         *string
	LandlordAddress string
	TenantAddress   string
	AgentAddress    *string

	// Monetary terms
	MonthlyRent     decimal.Decimal `gorm:"type:numeric(20,7)"`
	SecurityDeposit decimal.Decimal `gorm:"type:numeric(20,7)"`
	CommissionRate  decimal.Decimal `gorm:"type:numeric(5,2)"`

	// Accrued totals, changed only by recorded payments
	EscrowBalance decimal.Decimal `gorm:"type:numeric(20,7)"`
	TotalPaid     decimal.Decimal `gorm:"type:numeric(20,7)"`

	StartDate time.Time
	EndDate   time.Time
	Terms     string

	Status            AgreementStatus
	TerminationDate   *time.Time
	TerminationReason *string

	// Ledger linkage
	LedgerAgreementId *string
	TransactionHash   *string
	LastSyncedAt      *time.Time
	OnChainStatus     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Agreement) TableName() string {
	return TableAgreement
}

func (self *Agreement) Validate() error {
	if self.LedgerAgreementId != nil && self.TransactionHash == nil {
		return ErrLedgerLinkage
	}
	return nil
}

func (self *Agreement) BeforeSave(tx *gorm.DB) error {
	return self.Validate()
}

func (self *Agreement) IsTerminated() bool {
	return self.Status == AgreementStatusTerminated
}

func (self *Agreement) IsOnChain() bool {
	return self.LedgerAgreementId != nil
}

func (self *Agreement) GetId() string {
	return self.Id
}
