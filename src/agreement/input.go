package agreement

import (
	"strings"
	"time"

	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/ledger"
	"github.com/rentledger/syncer/src/utils/model"

	"github.com/shopspring/decimal"
)

var maxCommission = decimal.NewFromInt(100)

type CreateInput struct {
	PropertyId string
	LandlordId string
	TenantId   string
	AgentId    *string

	LandlordAddress string
	TenantAddress   string
	AgentAddress    *string

	MonthlyRent     decimal.Decimal
	SecurityDeposit decimal.Decimal

	// Percentage, 0 to 100
	CommissionRate decimal.Decimal

	StartDate time.Time
	EndDate   time.Time
	Terms     string
}

func (self *CreateInput) Validate() error {
	switch {
	case strings.TrimSpace(self.PropertyId) == "":
		return fault.Validation("property id is required")
	case strings.TrimSpace(self.LandlordId) == "" || strings.TrimSpace(self.TenantId) == "":
		return fault.Validation("landlord and tenant ids are required")
	case !ledger.IsValidAddress(self.LandlordAddress):
		return fault.Validation("invalid landlord address %q", self.LandlordAddress)
	case !ledger.IsValidAddress(self.TenantAddress):
		return fault.Validation("invalid tenant address %q", self.TenantAddress)
	case self.AgentAddress != nil && !ledger.IsValidAddress(*self.AgentAddress):
		return fault.Validation("invalid agent address %q", *self.AgentAddress)
	case !self.MonthlyRent.IsPositive():
		return fault.Validation("monthly rent must be positive")
	case self.SecurityDeposit.IsNegative():
		return fault.Validation("security deposit can't be negative")
	case self.CommissionRate.IsNegative() || self.CommissionRate.GreaterThan(maxCommission):
		return fault.Validation("commission rate must be between 0 and 100")
	}
	return validateWindow(self.StartDate, self.EndDate)
}

func validateWindow(start, end time.Time) error {
	if !end.After(start) {
		return fault.Validation("end date must be after start date")
	}
	return nil
}

// Partial update, nil fields are left untouched
type Patch struct {
	PropertyId      *string
	MonthlyRent     *decimal.Decimal
	SecurityDeposit *decimal.Decimal
	CommissionRate  *decimal.Decimal
	StartDate       *time.Time
	EndDate         *time.Time
	Terms           *string
	Status          *model.AgreementStatus
}

func (self *Patch) apply(a *model.Agreement) error {
	switch {
	case self.MonthlyRent != nil && !self.MonthlyRent.IsPositive():
		return fault.Validation("monthly rent must be positive")
	case self.SecurityDeposit != nil && self.SecurityDeposit.IsNegative():
		return fault.Validation("security deposit can't be negative")
	case self.CommissionRate != nil && (self.CommissionRate.IsNegative() || self.CommissionRate.GreaterThan(maxCommission)):
		return fault.Validation("commission rate must be between 0 and 100")
	case self.Status != nil && !self.Status.IsValid():
		return fault.Validation("unknown status %q", *self.Status)
	case self.Status != nil && *self.Status == model.AgreementStatusTerminated:
		return fault.Validation("agreements are terminated with a reason, not by an update")
	}

	if self.PropertyId != nil {
		a.PropertyId = *self.PropertyId
	}
	if self.MonthlyRent != nil {
		a.MonthlyRent = *self.MonthlyRent
	}
	if self.SecurityDeposit != nil {
		a.SecurityDeposit = *self.SecurityDeposit
	}
	if self.CommissionRate != nil {
		a.CommissionRate = *self.CommissionRate
	}
	if self.StartDate != nil {
		a.StartDate = *self.StartDate
	}
	if self.EndDate != nil {
		a.EndDate = *self.EndDate
	}
	if self.Terms != nil {
		a.Terms = *self.Terms
	}
	if self.Status != nil {
		a.Status = *self.Status
	}

	return validateWindow(a.StartDate, a.EndDate)
}

type PaymentInput struct {
	Amount decimal.Decimal

	// Zero means now
	PaymentDate time.Time
	Method      string
	Reference   string
}

func (self *PaymentInput) Validate() error {
	if !self.Amount.IsPositive() {
		return fault.Validation("payment amount must be positive")
	}
	if strings.TrimSpace(self.Method) == "" {
		return fault.Validation("payment method is required")
	}
	return nil
}
