package ledger

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// On-chain state of an agreement, as returned by get_agreement
type AgreementView struct {
	Id              string
	AgreementNumber string
	Landlord        string
	Tenant          string
	Agent           *string
	MonthlyRent     decimal.Decimal
	SecurityDeposit decimal.Decimal
	CommissionRate  decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
	Status          string
}

// On-chain state of an escrow, as returned by get_escrow
type EscrowView struct {
	Id          string
	AgreementId string
	Landlord    string
	Tenant      string
	Arbiter     string
	Amount      decimal.Decimal
	Status      string
	Approvals   uint32
	ReleasedTo  *string
}

// On-chain state of an obligation token, as returned by get_obligation
type ObligationView struct {
	AgreementId      string
	Owner            string
	OriginalLandlord string
	MintedAt         time.Time
	TransferCount    uint32
	Status           string
}

// Split of a rent payment between the parties, as returned by get_payment_split
type PaymentSplitView struct {
	Landlord decimal.Decimal
	Agent    decimal.Decimal
	Platform decimal.Decimal
}

// Field decoder. The first error sticks, later calls are no-ops.
type decoder struct {
	v        Value
	decimals int32
	err      error
}

func (self *decoder) field(name string) (out Value, ok bool) {
	if self.err != nil {
		return
	}
	out, self.err = self.v.Field(name)
	if self.err != nil {
		self.err = fmt.Errorf("%s: %w", name, self.err)
	}
	return out, self.err == nil
}

func (self *decoder) wrap(name string, err error) {
	if err != nil && self.err == nil {
		self.err = fmt.Errorf("%s: %w", name, err)
	}
}

func (self *decoder) id(name string) (out string) {
	v, ok := self.field(name)
	if !ok {
		return
	}
	out, err := decodeId(v)
	self.wrap(name, err)
	return
}

func (self *decoder) str(name string) (out string) {
	v, ok := self.field(name)
	if !ok {
		return
	}
	out, err := v.AsString()
	self.wrap(name, err)
	return
}

func (self *decoder) address(name string) (out string) {
	v, ok := self.field(name)
	if !ok {
		return
	}
	out, err := v.AsAddress()
	self.wrap(name, err)
	return
}

// Address or void
func (self *decoder) optionalAddress(name string) *string {
	v, ok := self.field(name)
	if !ok || v.IsVoid() {
		return nil
	}
	out, err := v.AsAddress()
	self.wrap(name, err)
	return &out
}

func (self *decoder) amount(name string) (out decimal.Decimal) {
	v, ok := self.field(name)
	if !ok {
		return
	}
	out, err := decodeAmount(v, self.decimals)
	self.wrap(name, err)
	return
}

func (self *decoder) time(name string) (out time.Time) {
	v, ok := self.field(name)
	if !ok {
		return
	}
	out, err := decodeTime(v)
	self.wrap(name, err)
	return
}

func (self *decoder) u32(name string) (out uint32) {
	v, ok := self.field(name)
	if !ok {
		return
	}
	out, err := v.AsU32()
	self.wrap(name, err)
	return
}

// Ledger ids are either numeric counters or strings
func decodeId(v Value) (string, error) {
	switch v.Kind() {
	case KindU32, KindU64:
		u, _ := v.AsU64()
		return strconv.FormatUint(u, 10), nil
	case KindString, KindSymbol:
		return v.AsString()
	}
	return "", v.mismatch(KindU64, KindString)
}

// Inverse of decodeId
func idArg(id string) Value {
	u, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return String(id)
	}
	return U64(u)
}

// Percentage with two decimal places, sent as basis points
func commissionArg(rate decimal.Decimal) Value {
	return U32(uint32(rate.Shift(2).Truncate(0).IntPart()))
}

func DecodeAgreementView(v Value, decimals int32) (out *AgreementView, err error) {
	d := &decoder{v: v, decimals: decimals}
	out = &AgreementView{
		Id:              d.id("id"),
		AgreementNumber: d.str("agreement_number"),
		Landlord:        d.address("landlord"),
		Tenant:          d.address("tenant"),
		Agent:           d.optionalAddress("agent"),
		MonthlyRent:     d.amount("monthly_rent"),
		SecurityDeposit: d.amount("security_deposit"),
		CommissionRate:  decimal.NewFromInt(int64(d.u32("commission_rate"))).Shift(-2),
		StartDate:       d.time("start_date"),
		EndDate:         d.time("end_date"),
		Status:          d.str("status"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return
}

func DecodeEscrowView(v Value, decimals int32) (out *EscrowView, err error) {
	d := &decoder{v: v, decimals: decimals}
	out = &EscrowView{
		Id:          d.id("id"),
		AgreementId: d.id("agreement_id"),
		Landlord:    d.address("landlord"),
		Tenant:      d.address("tenant"),
		Arbiter:     d.address("arbiter"),
		Amount:      d.amount("amount"),
		Status:      d.str("status"),
		Approvals:   d.u32("approvals"),
		ReleasedTo:  d.optionalAddress("released_to"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return
}

func DecodeObligationView(v Value) (out *ObligationView, err error) {
	d := &decoder{v: v}
	out = &ObligationView{
		AgreementId:      d.str("agreement_id"),
		Owner:            d.address("owner"),
		OriginalLandlord: d.address("original_landlord"),
		MintedAt:         d.time("minted_at"),
		TransferCount:    d.u32("transfer_count"),
		Status:           d.str("status"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return
}

func DecodePaymentSplitView(v Value, decimals int32) (out *PaymentSplitView, err error) {
	d := &decoder{v: v, decimals: decimals}
	out = &PaymentSplitView{
		Landlord: d.amount("landlord"),
		Agent:    d.amount("agent"),
		Platform: d.amount("platform"),
	}
	if d.err != nil {
		return nil, d.err
	}
	return
}
