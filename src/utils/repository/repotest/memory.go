// Package repotest provides an in-memory repository for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rentledger/syncer/src/utils/fault"
	"github.com/rentledger/syncer/src/utils/model"
	"github.com/rentledger/syncer/src/utils/repository"
)

// Transactional in-memory repository. A failed unit of work restores the state
// from before it started. Values are copied on the way in and out, so callers
// never share rows with the store.
type Memory struct {
	mtx sync.Mutex

	agreements map[string]model.Agreement
	payments   []model.Payment
	escrows    map[string]model.Escrow
	tokens     map[string]model.ObligationToken
	audit      []model.AuditRecord

	// Errors returned by the named method, e.g. "SaveAgreement"
	failures map[string]error
}

type snapshot struct {
	agreements map[string]model.Agreement
	payments   []model.Payment
	escrows    map[string]model.Escrow
	tokens     map[string]model.ObligationToken
	audit      []model.AuditRecord
}

var _ repository.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		agreements: make(map[string]model.Agreement),
		escrows:    make(map[string]model.Escrow),
		tokens:     make(map[string]model.ObligationToken),
		failures:   make(map[string]error),
	}
}

// Makes every subsequent call of the method fail with err. Nil err clears the failure.
func (self *Memory) FailOn(method string, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err == nil {
		delete(self.failures, method)
		return
	}
	self.failures[method] = err
}

func (self *Memory) failure(method string) error {
	return self.failures[method]
}

func (self *Memory) snapshot() (out snapshot) {
	out.agreements = make(map[string]model.Agreement, len(self.agreements))
	for k, v := range self.agreements {
		out.agreements[k] = v
	}
	out.escrows = make(map[string]model.Escrow, len(self.escrows))
	for k, v := range self.escrows {
		out.escrows[k] = v
	}
	out.tokens = make(map[string]model.ObligationToken, len(self.tokens))
	for k, v := range self.tokens {
		out.tokens[k] = v
	}
	out.payments = append([]model.Payment(nil), self.payments...)
	out.audit = append([]model.AuditRecord(nil), self.audit...)
	return
}

func (self *Memory) restore(s snapshot) {
	self.agreements = s.agreements
	self.escrows = s.escrows
	self.tokens = s.tokens
	self.payments = s.payments
	self.audit = s.audit
}

func (self *Memory) Transaction(ctx context.Context, fn func(tx repository.Repository) error) (err error) {
	self.mtx.Lock()
	if err = self.failure("Transaction"); err != nil {
		self.mtx.Unlock()
		return
	}
	s := self.snapshot()
	self.mtx.Unlock()

	defer func() {
		if p := recover(); p != nil {
			self.mtx.Lock()
			self.restore(s)
			self.mtx.Unlock()
			panic(p)
		}
	}()

	err = fn(self)
	if err != nil {
		self.mtx.Lock()
		self.restore(s)
		self.mtx.Unlock()
	}
	return
}

func (self *Memory) CreateAgreement(ctx context.Context, agreement *model.Agreement) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("CreateAgreement"); err != nil {
		return err
	}
	if err := agreement.Validate(); err != nil {
		return err
	}
	if _, ok := self.agreements[agreement.Id]; ok {
		return fault.Conflict("agreement %s already exists", agreement.Id)
	}
	for _, a := range self.agreements {
		if a.AgreementNumber == agreement.AgreementNumber {
			return fault.Conflict("agreement %s already exists", agreement.AgreementNumber)
		}
	}
	now := time.Now()
	if agreement.CreatedAt.IsZero() {
		agreement.CreatedAt = now
	}
	agreement.UpdatedAt = now
	self.agreements[agreement.Id] = *agreement
	return nil
}

func (self *Memory) GetAgreement(ctx context.Context, id string) (*model.Agreement, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("GetAgreement"); err != nil {
		return nil, err
	}
	a, ok := self.agreements[id]
	if !ok {
		return nil, fault.NotFound("agreement %s not found", id)
	}
	return &a, nil
}

func matches(a *model.Agreement, filter repository.AgreementFilter) bool {
	switch {
	case filter.LandlordId != "" && a.LandlordId != filter.LandlordId:
		return false
	case filter.TenantId != "" && a.TenantId != filter.TenantId:
		return false
	case filter.AgentId != "" && (a.AgentId == nil || *a.AgentId != filter.AgentId):
		return false
	case filter.PropertyId != "" && a.PropertyId != filter.PropertyId:
		return false
	case filter.Status != "" && a.Status != filter.Status:
		return false
	case filter.OnChainOnly && a.LedgerAgreementId == nil:
		return false
	case filter.AfterId != "" && strings.Compare(a.Id, filter.AfterId) <= 0:
		return false
	}
	return true
}

func (self *Memory) ListAgreements(ctx context.Context, filter repository.AgreementFilter) (out []*model.Agreement, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err = self.failure("ListAgreements"); err != nil {
		return
	}
	for _, a := range self.agreements {
		a := a
		if matches(&a, filter) {
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return
}

func (self *Memory) CountAgreements(ctx context.Context) (int64, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("CountAgreements"); err != nil {
		return 0, err
	}
	return int64(len(self.agreements)), nil
}

func (self *Memory) SaveAgreement(ctx context.Context, agreement *model.Agreement) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("SaveAgreement"); err != nil {
		return err
	}
	if err := agreement.Validate(); err != nil {
		return err
	}
	agreement.UpdatedAt = time.Now()
	self.agreements[agreement.Id] = *agreement
	return nil
}

func (self *Memory) DeleteAgreement(ctx context.Context, id string) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("DeleteAgreement"); err != nil {
		return err
	}
	delete(self.agreements, id)
	return nil
}

func (self *Memory) CreatePayment(ctx context.Context, payment *model.Payment) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("CreatePayment"); err != nil {
		return err
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now()
	}
	self.payments = append(self.payments, *payment)
	return nil
}

func (self *Memory) ListPayments(ctx context.Context, agreementId string) (out []*model.Payment, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err = self.failure("ListPayments"); err != nil {
		return
	}
	for _, p := range self.payments {
		p := p
		if p.AgreementId == agreementId {
			out = append(out, &p)
		}
	}
	// Newest first
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaymentDate.After(out[j].PaymentDate) })
	return
}

func (self *Memory) CreateEscrow(ctx context.Context, escrow *model.Escrow) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("CreateEscrow"); err != nil {
		return err
	}
	if err := escrow.Validate(); err != nil {
		return err
	}
	for _, e := range self.escrows {
		if e.AgreementId == escrow.AgreementId {
			return fault.Conflict("escrow for agreement %s already exists", escrow.AgreementId)
		}
	}
	now := time.Now()
	escrow.CreatedAt = now
	escrow.UpdatedAt = now
	self.escrows[escrow.Id] = *escrow
	return nil
}

func (self *Memory) GetEscrow(ctx context.Context, id string) (*model.Escrow, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("GetEscrow"); err != nil {
		return nil, err
	}
	e, ok := self.escrows[id]
	if !ok {
		return nil, fault.NotFound("escrow %s not found", id)
	}
	return &e, nil
}

func (self *Memory) GetEscrowByAgreement(ctx context.Context, agreementId string) (*model.Escrow, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("GetEscrowByAgreement"); err != nil {
		return nil, err
	}
	for _, e := range self.escrows {
		if e.AgreementId == agreementId {
			return &e, nil
		}
	}
	return nil, fault.NotFound("escrow for agreement %s not found", agreementId)
}

func (self *Memory) SaveEscrow(ctx context.Context, escrow *model.Escrow) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("SaveEscrow"); err != nil {
		return err
	}
	if err := escrow.Validate(); err != nil {
		return err
	}
	escrow.UpdatedAt = time.Now()
	self.escrows[escrow.Id] = *escrow
	return nil
}

func (self *Memory) CreateObligationToken(ctx context.Context, token *model.ObligationToken) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("CreateObligationToken"); err != nil {
		return err
	}
	if _, ok := self.tokens[token.AgreementId]; ok {
		return fault.Conflict("obligation token for agreement %s already exists", token.AgreementId)
	}
	now := time.Now()
	token.CreatedAt = now
	token.UpdatedAt = now
	self.tokens[token.AgreementId] = *token
	return nil
}

func (self *Memory) GetObligationToken(ctx context.Context, agreementId string) (*model.ObligationToken, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("GetObligationToken"); err != nil {
		return nil, err
	}
	t, ok := self.tokens[agreementId]
	if !ok {
		return nil, fault.NotFound("obligation token for agreement %s not found", agreementId)
	}
	return &t, nil
}

func (self *Memory) ListObligationTokens(ctx context.Context, filter repository.ObligationFilter) (out []*model.ObligationToken, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err = self.failure("ListObligationTokens"); err != nil {
		return
	}
	for _, t := range self.tokens {
		t := t
		if filter.Owner == "" || t.CurrentOwner == filter.Owner {
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgreementId < out[j].AgreementId })
	return
}

func (self *Memory) SaveObligationToken(ctx context.Context, token *model.ObligationToken) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("SaveObligationToken"); err != nil {
		return err
	}
	token.UpdatedAt = time.Now()
	self.tokens[token.AgreementId] = *token
	return nil
}

func (self *Memory) CreateAuditRecords(ctx context.Context, records []*model.AuditRecord) error {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if err := self.failure("CreateAuditRecords"); err != nil {
		return err
	}
	for _, r := range records {
		self.audit = append(self.audit, *r)
	}
	return nil
}

// Audit records stored so far
func (self *Memory) AuditRecords() []model.AuditRecord {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return append([]model.AuditRecord(nil), self.audit...)
}

// Number of payments stored so far, for all agreements
func (self *Memory) PaymentCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.payments)
}
