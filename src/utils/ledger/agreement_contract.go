package ledger

import (
	"context"
	"time"

	"github.com/rentledger/syncer/src/utils/monitoring/report"

	"github.com/shopspring/decimal"
)

type CreateAgreementArgs struct {
	AgreementNumber string
	Landlord        string
	Tenant          string
	Agent           *string
	MonthlyRent     decimal.Decimal
	SecurityDeposit decimal.Decimal
	CommissionRate  decimal.Decimal
	StartDate       time.Time
	EndDate         time.Time
}

type AgreementContract struct {
	adapter
}

func NewAgreementContract(contract Contract, waiter Waiter, decimals int32, monitor *report.LedgerReport) *AgreementContract {
	return &AgreementContract{adapter: newAdapter(contract, waiter, decimals, monitor)}
}

// Creates the agreement on-chain. Returns the confirmed transaction hash and the ledger's agreement id.
func (self *AgreementContract) CreateAgreement(ctx context.Context, args CreateAgreementArgs) (hash, ledgerId string, err error) {
	agent := Void()
	if args.Agent != nil {
		agent = Address(*args.Agent)
	}

	receipt, err := self.write(ctx, "create_agreement",
		String(args.AgreementNumber),
		Address(args.Landlord),
		Address(args.Tenant),
		agent,
		Amount(args.MonthlyRent, self.decimals),
		Amount(args.SecurityDeposit, self.decimals),
		commissionArg(args.CommissionRate),
		Timestamp(args.StartDate),
		Timestamp(args.EndDate),
	)
	if err != nil {
		return
	}

	// Contracts that return nothing key agreements by their number
	ledgerId = args.AgreementNumber
	if !receipt.Result.IsVoid() {
		ledgerId, err = decodeId(receipt.Result)
		if err != nil {
			err = decodeFailed("create_agreement", err)
			return
		}
	}
	return receipt.TransactionHash, ledgerId, nil
}

func (self *AgreementContract) GetAgreement(ctx context.Context, ledgerId string) (*AgreementView, error) {
	v, err := self.read(ctx, "get_agreement", idArg(ledgerId))
	if err != nil {
		return nil, err
	}
	out, err := DecodeAgreementView(v, self.decimals)
	if err != nil {
		return nil, decodeFailed("get_agreement", err)
	}
	return out, nil
}

func (self *AgreementContract) HasAgreement(ctx context.Context, agreementNumber string) (bool, error) {
	v, err := self.read(ctx, "has_agreement", String(agreementNumber))
	if err != nil {
		return false, err
	}
	out, err := v.AsBool()
	if err != nil {
		return false, decodeFailed("has_agreement", err)
	}
	return out, nil
}

func (self *AgreementContract) GetAgreementCount(ctx context.Context) (uint64, error) {
	v, err := self.read(ctx, "get_agreement_count")
	if err != nil {
		return 0, err
	}
	out, err := v.AsU64()
	if err != nil {
		return 0, decodeFailed("get_agreement_count", err)
	}
	return out, nil
}

func (self *AgreementContract) GetPaymentSplit(ctx context.Context, ledgerId string, amount decimal.Decimal) (*PaymentSplitView, error) {
	v, err := self.read(ctx, "get_payment_split", idArg(ledgerId), Amount(amount, self.decimals))
	if err != nil {
		return nil, err
	}
	out, err := DecodePaymentSplitView(v, self.decimals)
	if err != nil {
		return nil, decodeFailed("get_payment_split", err)
	}
	return out, nil
}
