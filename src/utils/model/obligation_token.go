package model

import (
	"time"
)

const (
	TableObligationToken = "obligation_tokens"
)

// Transferable claim on the rent of one agreement
type ObligationToken struct {
	Id               string `gorm:"primaryKey"`
	AgreementId      string
	CurrentOwner     string
	OriginalLandlord string

	MintTransactionHash         string
	MintedAt                    time.Time
	LastTransferTransactionHash *string
	LastTransferredAt           *time.Time

	// Only ever incremented, once per transfer
	TransferCount int

	Status ObligationStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ObligationToken) TableName() string {
	return TableObligationToken
}

func (self *ObligationToken) GetId() string {
	return self.Id
}
