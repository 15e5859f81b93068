package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	TableEscrow = "escrows"
)

type Escrow struct {
	Id             string `gorm:"primaryKey"`
	AgreementId    string
	Amount         decimal.Decimal `gorm:"type:numeric(20,7)"`
	ArbiterAddress string

	Status        EscrowStatus
	ApprovalCount int
	ReleasedTo    *string
	ReleasedAt    *time.Time

	DisputeId     *string
	DisputeReason *string
	DisputedAt    *time.Time
	ResolvedAt    *time.Time

	// Ledger linkage
	LedgerEscrowId  *string
	TransactionHash *string
	LastSyncedAt    *time.Time
	OnChainStatus   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Escrow) TableName() string {
	return TableEscrow
}

func (self *Escrow) Validate() error {
	if self.LedgerEscrowId != nil && self.TransactionHash == nil {
		return ErrLedgerLinkage
	}
	return nil
}

func (self *Escrow) BeforeSave(tx *gorm.DB) error {
	return self.Validate()
}

func (self *Escrow) IsOnChain() bool {
	return self.LedgerEscrowId != nil
}

func (self *Escrow) GetId() string {
	return self.Id
}
