package ledger

import (
	"context"

	"github.com/rentledger/syncer/src/utils/monitoring/report"

	"github.com/shopspring/decimal"
)

type CreateEscrowArgs struct {
	AgreementLedgerId string
	Landlord          string
	Tenant            string
	Arbiter           string
	Amount            decimal.Decimal
}

type EscrowContract struct {
	adapter
}

func NewEscrowContract(contract Contract, waiter Waiter, decimals int32, monitor *report.LedgerReport) *EscrowContract {
	return &EscrowContract{adapter: newAdapter(contract, waiter, decimals, monitor)}
}

// Returns the confirmed transaction hash and the ledger's escrow id
func (self *EscrowContract) Create(ctx context.Context, args CreateEscrowArgs) (hash, ledgerId string, err error) {
	receipt, err := self.write(ctx, "create",
		idArg(args.AgreementLedgerId),
		Address(args.Landlord),
		Address(args.Tenant),
		Address(args.Arbiter),
		Amount(args.Amount, self.decimals),
	)
	if err != nil {
		return
	}

	// Escrows without their own id are keyed by the agreement
	ledgerId = args.AgreementLedgerId
	if !receipt.Result.IsVoid() {
		ledgerId, err = decodeId(receipt.Result)
		if err != nil {
			err = decodeFailed("create", err)
			return
		}
	}
	return receipt.TransactionHash, ledgerId, nil
}

func (self *EscrowContract) FundEscrow(ctx context.Context, ledgerId string) (string, error) {
	receipt, err := self.write(ctx, "fund_escrow", idArg(ledgerId))
	return receipt.TransactionHash, err
}

func (self *EscrowContract) ApproveRelease(ctx context.Context, ledgerId, releaseTo string) (string, error) {
	receipt, err := self.write(ctx, "approve_release", idArg(ledgerId), Address(releaseTo))
	return receipt.TransactionHash, err
}

func (self *EscrowContract) RaiseDispute(ctx context.Context, ledgerId, disputeId, reason string) (string, error) {
	receipt, err := self.write(ctx, "raise_dispute", idArg(ledgerId), String(disputeId), String(reason))
	return receipt.TransactionHash, err
}

// Arbiter decision. Refund returns the funds to the tenant, otherwise they go to releaseTo.
func (self *EscrowContract) ResolveDispute(ctx context.Context, ledgerId, releaseTo string, refund bool) (string, error) {
	receipt, err := self.write(ctx, "resolve_dispute", idArg(ledgerId), Address(releaseTo), Bool(refund))
	return receipt.TransactionHash, err
}

func (self *EscrowContract) GetEscrow(ctx context.Context, ledgerId string) (*EscrowView, error) {
	v, err := self.read(ctx, "get_escrow", idArg(ledgerId))
	if err != nil {
		return nil, err
	}
	out, err := DecodeEscrowView(v, self.decimals)
	if err != nil {
		return nil, decodeFailed("get_escrow", err)
	}
	return out, nil
}
