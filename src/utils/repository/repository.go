package repository

import (
	"context"

	"github.com/rentledger/syncer/src/utils/model"
)

type AgreementFilter struct {
	LandlordId string
	TenantId   string
	AgentId    string
	PropertyId string
	Status     model.AgreementStatus

	// Only agreements linked to the ledger
	OnChainOnly bool

	// Agreements created after this id, used for paging. Empty starts from the beginning.
	AfterId string
	Limit   int
}

type ObligationFilter struct {
	Owner string
}

// Capabilities the rental services need from the relational store.
// Get* methods fail with fault.NotFound, Create* with fault.Conflict on unique key violations.
type Repository interface {
	// Runs fn in one atomic unit of work. Everything fn did through the passed
	// repository is rolled back when fn returns an error.
	Transaction(ctx context.Context, fn func(tx Repository) error) error

	CreateAgreement(ctx context.Context, agreement *model.Agreement) error
	GetAgreement(ctx context.Context, id string) (*model.Agreement, error)
	ListAgreements(ctx context.Context, filter AgreementFilter) ([]*model.Agreement, error)
	CountAgreements(ctx context.Context) (int64, error)
	SaveAgreement(ctx context.Context, agreement *model.Agreement) error
	DeleteAgreement(ctx context.Context, id string) error

	CreatePayment(ctx context.Context, payment *model.Payment) error
	ListPayments(ctx context.Context, agreementId string) ([]*model.Payment, error)

	CreateEscrow(ctx context.Context, escrow *model.Escrow) error
	GetEscrow(ctx context.Context, id string) (*model.Escrow, error)
	GetEscrowByAgreement(ctx context.Context, agreementId string) (*model.Escrow, error)
	SaveEscrow(ctx context.Context, escrow *model.Escrow) error

	CreateObligationToken(ctx context.Context, token *model.ObligationToken) error
	GetObligationToken(ctx context.Context, agreementId string) (*model.ObligationToken, error)
	ListObligationTokens(ctx context.Context, filter ObligationFilter) ([]*model.ObligationToken, error)
	SaveObligationToken(ctx context.Context, token *model.ObligationToken) error

	CreateAuditRecords(ctx context.Context, records []*model.AuditRecord) error
}
