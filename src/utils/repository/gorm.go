package repository

import (
	"context"
	"errors"

	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/model"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

// Repository backed by Postgres
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (self *Gorm) DB() *gorm.DB {
	return self.db
}

func translate(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fault.NotFound("%s %s not found", entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fault.Conflict("%s %s already exists", entity, id)
	}
	return err
}

func (self *Gorm) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return self.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func (self *Gorm) CreateAgreement(ctx context.Context, agreement *model.Agreement) error {
	err := self.db.WithContext(ctx).Create(agreement).Error
	return translate(err, "agreement", agreement.AgreementNumber)
}

func (self *Gorm) GetAgreement(ctx context.Context, id string) (out *model.Agreement, err error) {
	out = new(model.Agreement)
	err = self.db.WithContext(ctx).
		Where("id = ?", id).
		First(out).
		Error
	if err != nil {
		return nil, translate(err, "agreement", id)
	}
	return
}

func (self *Gorm) ListAgreements(ctx context.Context, filter AgreementFilter) (out []*model.Agreement, err error) {
	query := self.db.WithContext(ctx).Model(&model.Agreement{})
	if filter.LandlordId != "" {
		query = query.Where("landlord_id = ?", filter.LandlordId)
	}
	if filter.TenantId != "" {
		query = query.Where("tenant_id = ?", filter.TenantId)
	}
	if filter.AgentId != "" {
		query = query.Where("agent_id = ?", filter.AgentId)
	}
	if filter.PropertyId != "" {
		query = query.Where("property_id = ?", filter.PropertyId)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OnChainOnly {
		query = query.Where("ledger_agreement_id IS NOT NULL")
	}
	if filter.AfterId != "" {
		query = query.Where("id > ?", filter.AfterId)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	err = query.Order("id ASC").Find(&out).Error
	return
}

func (self *Gorm) CountAgreements(ctx context.Context) (count int64, err error) {
	err = self.db.WithContext(ctx).Model(&model.Agreement{}).Count(&count).Error
	return
}

func (self *Gorm) SaveAgreement(ctx context.Context, agreement *model.Agreement) error {
	err := self.db.WithContext(ctx).Save(agreement).Error
	return translate(err, "agreement", agreement.Id)
}

func (self *Gorm) DeleteAgreement(ctx context.Context, id string) error {
	return self.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Agreement{}).
		Error
}

func (self *Gorm) CreatePayment(ctx context.Context, payment *model.Payment) error {
	err := self.db.WithContext(ctx).Create(payment).Error
	return translate(err, "payment", payment.Id)
}

func (self *Gorm) ListPayments(ctx context.Context, agreementId string) (out []*model.Payment, err error) {
	err = self.db.WithContext(ctx).
		Where("agreement_id = ?", agreementId).
		Order("payment_date DESC, created_at DESC").
		Find(&out).
		Error
	return
}

func (self *Gorm) CreateEscrow(ctx context.Context, escrow *model.Escrow) error {
	err := self.db.WithContext(ctx).Create(escrow).Error
	return translate(err, "escrow for agreement", escrow.AgreementId)
}

func (self *Gorm) GetEscrow(ctx context.Context, id string) (out *model.Escrow, err error) {
	out = new(model.Escrow)
	err = self.db.WithContext(ctx).
		Where("id = ?", id).
		First(out).
		Error
	if err != nil {
		return nil, translate(err, "escrow", id)
	}
	return
}

func (self *Gorm) GetEscrowByAgreement(ctx context.Context, agreementId string) (out *model.Escrow, err error) {
	out = new(model.Escrow)
	err = self.db.WithContext(ctx).
		Where("agreement_id = ?", agreementId).
		First(out).
		Error
	if err != nil {
		return nil, translate(err, "escrow for agreement", agreementId)
	}
	return
}

func (self *Gorm) SaveEscrow(ctx context.Context, escrow *model.Escrow) error {
	err := self.db.WithContext(ctx).Save(escrow).Error
	return translate(err, "escrow", escrow.Id)
}

func (self *Gorm) CreateObligationToken(ctx context.Context, token *model.ObligationToken) error {
	err := self.db.WithContext(ctx).Create(token).Error
	return translate(err, "obligation token for agreement", token.AgreementId)
}

func (self *Gorm) GetObligationToken(ctx context.Context, agreementId string) (out *model.ObligationToken, err error) {
	out = new(model.ObligationToken)
	err = self.db.WithContext(ctx).
		Where("agreement_id = ?", agreementId).
		First(out).
		Error
	if err != nil {
		return nil, translate(err, "obligation token for agreement", agreementId)
	}
	return
}

func (self *Gorm) ListObligationTokens(ctx context.Context, filter ObligationFilter) (out []*model.ObligationToken, err error) {
	query := self.db.WithContext(ctx).Model(&model.ObligationToken{})
	if filter.Owner != "" {
		query = query.Where("current_owner = ?", filter.Owner)
	}
	err = query.Order("minted_at ASC").Find(&out).Error
	return
}

func (self *Gorm) SaveObligationToken(ctx context.Context, token *model.ObligationToken) error {
	err := self.db.WithContext(ctx).Save(token).Error
	return translate(err, "obligation token", token.Id)
}

func (self *Gorm) CreateAuditRecords(ctx context.Context, records []*model.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}
	return self.db.WithContext(ctx).
		CreateInBatches(records, 100).
		Error
}
