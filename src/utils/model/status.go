package model

import (
	"database/sql/driver"
	"fmt"
)

func scanString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}
	return "", fmt.Errorf("unexpected status type %T", value)
}

// CREATE TYPE agreement_status AS ENUM ('DRAFT', 'PENDING_DEPOSIT', 'ACTIVE', 'EXPIRED', 'TERMINATED');
type AgreementStatus string

const (
	AgreementStatusDraft          AgreementStatus = "DRAFT"
	AgreementStatusPendingDeposit AgreementStatus = "PENDING_DEPOSIT"
	AgreementStatusActive         AgreementStatus = "ACTIVE"
	AgreementStatusExpired        AgreementStatus = "EXPIRED"
	AgreementStatusTerminated     AgreementStatus = "TERMINATED"
)

func (self AgreementStatus) IsValid() bool {
	switch self {
	case AgreementStatusDraft, AgreementStatusPendingDeposit, AgreementStatusActive,
		AgreementStatusExpired, AgreementStatusTerminated:
		return true
	}
	return false
}

func (self *AgreementStatus) Scan(value interface{}) error {
	s, err := scanString(value)
	*self = AgreementStatus(s)
	return err
}

func (self AgreementStatus) Value() (driver.Value, error) {
	return string(self), nil
}

// CREATE TYPE payment_status AS ENUM ('PENDING', 'COMPLETED', 'FAILED', 'REFUNDED');
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

func (self *PaymentStatus) Scan(value interface{}) error {
	s, err := scanString(value)
	*self = PaymentStatus(s)
	return err
}

func (self PaymentStatus) Value() (driver.Value, error) {
	return string(self), nil
}

// CREATE TYPE escrow_status AS ENUM ('PENDING', 'FUNDED', 'RELEASED', 'DISPUTED', 'REFUNDED');
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "PENDING"
	EscrowStatusFunded   EscrowStatus = "FUNDED"
	EscrowStatusReleased EscrowStatus = "RELEASED"
	EscrowStatusDisputed EscrowStatus = "DISPUTED"
	EscrowStatusRefunded EscrowStatus = "REFUNDED"
)

// Released and refunded escrows hold no funds anymore
func (self EscrowStatus) IsTerminal() bool {
	return self == EscrowStatusReleased || self == EscrowStatusRefunded
}

func (self *EscrowStatus) Scan(value interface{}) error {
	s, err := scanString(value)
	*self = EscrowStatus(s)
	return err
}

func (self EscrowStatus) Value() (driver.Value, error) {
	return string(self), nil
}

// CREATE TYPE obligation_status AS ENUM ('active', 'burned', 'disputed');
type ObligationStatus string

const (
	ObligationStatusActive   ObligationStatus = "active"
	ObligationStatusBurned   ObligationStatus = "burned"
	ObligationStatusDisputed ObligationStatus = "disputed"
)

func (self *ObligationStatus) Scan(value interface{}) error {
	s, err := scanString(value)
	*self = ObligationStatus(s)
	return err
}

func (self ObligationStatus) Value() (driver.Value, error) {
	return string(self), nil
}
