package ledgertest

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/rentledger/syncer/src/utils/ledger"
)

var (
	ErrNotFound     = errors.New("not found on ledger")
	ErrExists       = errors.New("already exists on ledger")
	ErrNotOwner     = errors.New("caller is not the owner")
	ErrInvalidState = errors.New("invalid state for this call")
)

// On-chain escrow statuses
const (
	EscrowPending  = "Pending"
	EscrowFunded   = "Funded"
	EscrowReleased = "Released"
	EscrowDisputed = "Disputed"
	EscrowRefunded = "Refunded"
)

type agreement struct {
	id         uint64
	number     string
	landlord   string
	tenant     string
	agent      *string
	rent       *big.Int
	deposit    *big.Int
	commission uint32
	start      uint64
	end        uint64
	status     string
}

type escrow struct {
	id          uint64
	agreementId ledger.Value
	landlord    string
	tenant      string
	arbiter     string
	amount      *big.Int
	status      string
	approvals   uint32
	releasedTo  *string
}

type obligation struct {
	agreementId string
	owner       string
	landlord    string
	mintedAt    uint64
	transfers   uint32
	status      string
}

// Ledger with working agreement, escrow and obligation contracts
type Ledger struct {
	Agreements  *Contract
	Escrows     *Contract
	Obligations *Contract

	mtx         sync.Mutex
	agreements  map[uint64]*agreement
	escrows     map[uint64]*escrow
	obligations map[string]*obligation
	now         uint64
}

func New() (self *Ledger) {
	self = &Ledger{
		agreements:  make(map[uint64]*agreement),
		escrows:     make(map[uint64]*escrow),
		obligations: make(map[string]*obligation),
		now:         1_700_000_000,
	}

	self.Agreements = NewContract("agreement").
		Handle("create_agreement", self.createAgreement).
		Handle("get_agreement", self.getAgreement).
		Handle("has_agreement", self.hasAgreement).
		Handle("get_agreement_count", self.getAgreementCount).
		Handle("get_payment_split", self.getPaymentSplit)

	self.Escrows = NewContract("escrow").
		Handle("create", self.createEscrow).
		Handle("fund_escrow", self.fundEscrow).
		Handle("approve_release", self.approveRelease).
		Handle("raise_dispute", self.raiseDispute).
		Handle("resolve_dispute", self.resolveDispute).
		Handle("get_escrow", self.getEscrow)

	self.Obligations = NewContract("obligation").
		Handle("mint_obligation", self.mintObligation).
		Handle("transfer_obligation", self.transferObligation).
		Handle("get_obligation_owner", self.getObligationOwner).
		Handle("get_obligation", self.getObligation).
		Handle("has_obligation", self.hasObligation).
		Handle("get_obligation_count", self.getObligationCount)

	return
}

func arg(args []ledger.Value, i int) ledger.Value {
	if i >= len(args) {
		return ledger.Void()
	}
	return args[i]
}

// Decodes positional arguments, the first error sticks
type argReader struct {
	args []ledger.Value
	err  error
}

func (self *argReader) u64(i int) (out uint64) {
	if self.err == nil {
		out, self.err = arg(self.args, i).AsU64()
	}
	return
}

func (self *argReader) u32(i int) (out uint32) {
	if self.err == nil {
		out, self.err = arg(self.args, i).AsU32()
	}
	return
}

func (self *argReader) str(i int) (out string) {
	if self.err == nil {
		out, self.err = arg(self.args, i).AsString()
	}
	return
}

func (self *argReader) address(i int) (out string) {
	if self.err == nil {
		out, self.err = arg(self.args, i).AsAddress()
	}
	return
}

func (self *argReader) optionalAddress(i int) *string {
	v := arg(self.args, i)
	if self.err != nil || v.IsVoid() {
		return nil
	}
	out, err := v.AsAddress()
	self.err = err
	return &out
}

func (self *argReader) i128(i int) (out *big.Int) {
	if self.err == nil {
		out, self.err = arg(self.args, i).AsI128()
	}
	return
}

func (self *argReader) boolean(i int) (out bool) {
	if self.err == nil {
		out, self.err = arg(self.args, i).AsBool()
	}
	return
}

func optional(v *string) ledger.Value {
	if v == nil {
		return ledger.Void()
	}
	return ledger.Address(*v)
}

func (self *agreement) value() ledger.Value {
	return ledger.Map(
		ledger.Entry("id", ledger.U64(self.id)),
		ledger.Entry("agreement_number", ledger.String(self.number)),
		ledger.Entry("landlord", ledger.Address(self.landlord)),
		ledger.Entry("tenant", ledger.Address(self.tenant)),
		ledger.Entry("agent", optional(self.agent)),
		ledger.Entry("monthly_rent", ledger.I128(self.rent)),
		ledger.Entry("security_deposit", ledger.I128(self.deposit)),
		ledger.Entry("commission_rate", ledger.U32(self.commission)),
		ledger.Entry("start_date", ledger.U64(self.start)),
		ledger.Entry("end_date", ledger.U64(self.end)),
		ledger.Entry("status", ledger.Symbol(self.status)),
	)
}

func (self *escrow) value() ledger.Value {
	return ledger.Map(
		ledger.Entry("id", ledger.U64(self.id)),
		ledger.Entry("agreement_id", self.agreementId),
		ledger.Entry("landlord", ledger.Address(self.landlord)),
		ledger.Entry("tenant", ledger.Address(self.tenant)),
		ledger.Entry("arbiter", ledger.Address(self.arbiter)),
		ledger.Entry("amount", ledger.I128(self.amount)),
		ledger.Entry("status", ledger.Symbol(self.status)),
		ledger.Entry("approvals", ledger.U32(self.approvals)),
		ledger.Entry("released_to", optional(self.releasedTo)),
	)
}

func (self *obligation) value() ledger.Value {
	return ledger.Map(
		ledger.Entry("agreement_id", ledger.String(self.agreementId)),
		ledger.Entry("owner", ledger.Address(self.owner)),
		ledger.Entry("original_landlord", ledger.Address(self.landlord)),
		ledger.Entry("minted_at", ledger.U64(self.mintedAt)),
		ledger.Entry("transfer_count", ledger.U32(self.transfers)),
		ledger.Entry("status", ledger.Symbol(self.status)),
	)
}

func (self *Ledger) createAgreement(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	a := &agreement{
		number:     r.str(0),
		landlord:   r.address(1),
		tenant:     r.address(2),
		agent:      r.optionalAddress(3),
		rent:       r.i128(4),
		deposit:    r.i128(5),
		commission: r.u32(6),
		start:      r.u64(7),
		end:        r.u64(8),
		status:     "Active",
	}
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()

	for _, existing := range self.agreements {
		if existing.number == a.number {
			return ledger.Value{}, fmt.Errorf("%w: agreement %s", ErrExists, a.number)
		}
	}
	a.id = uint64(len(self.agreements) + 1)
	if commit {
		self.agreements[a.id] = a
	}
	return ledger.U64(a.id), nil
}

func (self *Ledger) getAgreement(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	id := r.u64(0)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	a, ok := self.agreements[id]
	if !ok {
		return ledger.Value{}, fmt.Errorf("%w: agreement %d", ErrNotFound, id)
	}
	return a.value(), nil
}

func (self *Ledger) hasAgreement(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	number := r.str(0)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	for _, a := range self.agreements {
		if a.number == number {
			return ledger.Bool(true), nil
		}
	}
	return ledger.Bool(false), nil
}

func (self *Ledger) getAgreementCount(args []ledger.Value, commit bool) (ledger.Value, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return ledger.U64(uint64(len(self.agreements))), nil
}

// Agent takes the commission, the landlord the rest
func (self *Ledger) getPaymentSplit(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	id := r.u64(0)
	amount := r.i128(1)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	a, ok := self.agreements[id]
	if !ok {
		return ledger.Value{}, fmt.Errorf("%w: agreement %d", ErrNotFound, id)
	}

	agent := new(big.Int)
	if a.agent != nil {
		agent.Mul(amount, big.NewInt(int64(a.commission)))
		agent.Quo(agent, big.NewInt(10_000))
	}
	landlord := new(big.Int).Sub(amount, agent)

	return ledger.Map(
		ledger.Entry("landlord", ledger.I128(landlord)),
		ledger.Entry("agent", ledger.I128(agent)),
		ledger.Entry("platform", ledger.I128(new(big.Int))),
	), nil
}

func (self *Ledger) createEscrow(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	e := &escrow{
		agreementId: arg(args, 0),
		landlord:    r.address(1),
		tenant:      r.address(2),
		arbiter:     r.address(3),
		amount:      r.i128(4),
		status:      EscrowPending,
	}
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	e.id = uint64(len(self.escrows) + 1)
	if commit {
		self.escrows[e.id] = e
	}
	return ledger.U64(e.id), nil
}

// Runs f on the escrow given as the first argument
func (self *Ledger) withEscrow(args []ledger.Value, f func(e *escrow) error) (ledger.Value, error) {
	r := &argReader{args: args}
	id := r.u64(0)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	e, ok := self.escrows[id]
	if !ok {
		return ledger.Value{}, fmt.Errorf("%w: escrow %d", ErrNotFound, id)
	}
	return ledger.Void(), f(e)
}

func (self *Ledger) fundEscrow(args []ledger.Value, commit bool) (ledger.Value, error) {
	return self.withEscrow(args, func(e *escrow) error {
		if e.status != EscrowPending {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.status)
		}
		if commit {
			e.status = EscrowFunded
		}
		return nil
	})
}

func (self *Ledger) approveRelease(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	releaseTo := r.address(1)
	if r.err != nil {
		return ledger.Value{}, r.err
	}
	return self.withEscrow(args, func(e *escrow) error {
		if e.status == EscrowDisputed || e.status == EscrowReleased || e.status == EscrowRefunded {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.status)
		}
		if !commit {
			return nil
		}
		e.approvals++
		if e.approvals >= 2 {
			e.status = EscrowReleased
			e.releasedTo = &releaseTo
		}
		return nil
	})
}

func (self *Ledger) raiseDispute(args []ledger.Value, commit bool) (ledger.Value, error) {
	return self.withEscrow(args, func(e *escrow) error {
		if e.status == EscrowReleased || e.status == EscrowRefunded {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.status)
		}
		if commit {
			e.status = EscrowDisputed
		}
		return nil
	})
}

func (self *Ledger) resolveDispute(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	releaseTo := r.address(1)
	refund := r.boolean(2)
	if r.err != nil {
		return ledger.Value{}, r.err
	}
	return self.withEscrow(args, func(e *escrow) error {
		if e.status != EscrowDisputed {
			return fmt.Errorf("%w: escrow is %s", ErrInvalidState, e.status)
		}
		if !commit {
			return nil
		}
		if refund {
			e.status = EscrowRefunded
			e.releasedTo = &e.tenant
		} else {
			e.status = EscrowReleased
			e.releasedTo = &releaseTo
		}
		return nil
	})
}

func (self *Ledger) getEscrow(args []ledger.Value, commit bool) (out ledger.Value, err error) {
	_, err = self.withEscrow(args, func(e *escrow) error {
		out = e.value()
		return nil
	})
	return
}

func (self *Ledger) mintObligation(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	agreementId := r.str(0)
	landlord := r.address(1)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	if _, ok := self.obligations[agreementId]; ok {
		return ledger.Value{}, fmt.Errorf("%w: obligation %s", ErrExists, agreementId)
	}
	if commit {
		self.now++
		self.obligations[agreementId] = &obligation{
			agreementId: agreementId,
			owner:       landlord,
			landlord:    landlord,
			mintedAt:    self.now,
			status:      "Active",
		}
	}
	return ledger.Void(), nil
}

func (self *Ledger) transferObligation(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	agreementId := r.str(0)
	from := r.address(1)
	to := r.address(2)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	o, ok := self.obligations[agreementId]
	if !ok {
		return ledger.Value{}, fmt.Errorf("%w: obligation %s", ErrNotFound, agreementId)
	}
	if !ledger.SameAddress(o.owner, from) {
		return ledger.Value{}, ErrNotOwner
	}
	if commit {
		o.owner = to
		o.transfers++
	}
	return ledger.Void(), nil
}

func (self *Ledger) getObligationOwner(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	agreementId := r.str(0)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	o, ok := self.obligations[agreementId]
	if !ok {
		return ledger.Void(), nil
	}
	return ledger.Address(o.owner), nil
}

func (self *Ledger) getObligation(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	agreementId := r.str(0)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	o, ok := self.obligations[agreementId]
	if !ok {
		return ledger.Value{}, fmt.Errorf("%w: obligation %s", ErrNotFound, agreementId)
	}
	return o.value(), nil
}

func (self *Ledger) hasObligation(args []ledger.Value, commit bool) (ledger.Value, error) {
	r := &argReader{args: args}
	agreementId := r.str(0)
	if r.err != nil {
		return ledger.Value{}, r.err
	}

	self.mtx.Lock()
	defer self.mtx.Unlock()
	_, ok := self.obligations[agreementId]
	return ledger.Bool(ok), nil
}

func (self *Ledger) getObligationCount(args []ledger.Value, commit bool) (ledger.Value, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return ledger.U64(uint64(len(self.obligations))), nil
}

// Changes the owner behind the service's back, as a transfer made elsewhere would
func (self *Ledger) SetObligationOwner(agreementId, owner string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if o, ok := self.obligations[agreementId]; ok {
		o.owner = owner
	}
}

func (self *Ledger) SetEscrowStatus(ledgerId uint64, status string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if e, ok := self.escrows[ledgerId]; ok {
		e.status = status
	}
}

func (self *Ledger) SetAgreementStatus(ledgerId uint64, status string) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if a, ok := self.agreements[ledgerId]; ok {
		a.status = status
	}
}

func (self *Ledger) EscrowStatus(ledgerId uint64) string {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	if e, ok := self.escrows[ledgerId]; ok {
		return e.status
	}
	return ""
}

func (self *Ledger) AgreementCount() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return len(self.agreements)
}

// Simulates a transaction that is accepted and never confirmed
func (self *Ledger) NeverFinal(c *Contract, method string) {
	c.SetFinalStatus(method, ledger.TransactionStatusPending)
}
