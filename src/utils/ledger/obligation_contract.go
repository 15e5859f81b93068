package ledger

import (
	"context"

	"github.com/rentledger/syncer/src/utils/monitoring/report"
)

// Obligation tokens are keyed by the agreement id
type ObligationContract struct {
	adapter
}

func NewObligationContract(contract Contract, waiter Waiter, monitor *report.LedgerReport) *ObligationContract {
	return &ObligationContract{adapter: newAdapter(contract, waiter, 0, monitor)}
}

func (self *ObligationContract) Mint(ctx context.Context, agreementId, landlord string) (string, error) {
	receipt, err := self.write(ctx, "mint_obligation", String(agreementId), Address(landlord))
	return receipt.TransactionHash, err
}

func (self *ObligationContract) Transfer(ctx context.Context, agreementId, from, to string) (string, error) {
	receipt, err := self.write(ctx, "transfer_obligation", String(agreementId), Address(from), Address(to))
	return receipt.TransactionHash, err
}

// Current owner, empty if the ledger knows no owner
func (self *ObligationContract) GetOwner(ctx context.Context, agreementId string) (string, error) {
	v, err := self.read(ctx, "get_obligation_owner", String(agreementId))
	if err != nil {
		return "", err
	}
	if v.IsVoid() {
		return "", nil
	}
	out, err := v.AsAddress()
	if err != nil {
		return "", decodeFailed("get_obligation_owner", err)
	}
	return out, nil
}

func (self *ObligationContract) GetObligation(ctx context.Context, agreementId string) (*ObligationView, error) {
	v, err := self.read(ctx, "get_obligation", String(agreementId))
	if err != nil {
		return nil, err
	}
	out, err := DecodeObligationView(v)
	if err != nil {
		return nil, decodeFailed("get_obligation", err)
	}
	return out, nil
}

func (self *ObligationContract) HasObligation(ctx context.Context, agreementId string) (bool, error) {
	v, err := self.read(ctx, "has_obligation", String(agreementId))
	if err != nil {
		return false, err
	}
	out, err := v.AsBool()
	if err != nil {
		return false, decodeFailed("has_obligation", err)
	}
	return out, nil
}

func (self *ObligationContract) GetObligationCount(ctx context.Context) (uint64, error) {
	v, err := self.read(ctx, "get_obligation_count")
	if err != nil {
		return 0, err
	}
	out, err := v.AsU64()
	if err != nil {
		return 0, decodeFailed("get_obligation_count", err)
	}
	return out, nil
}
