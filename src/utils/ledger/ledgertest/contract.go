// Package ledgertest provides a scriptable in-memory ledger for tests.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rentledger/syncer/src/utils/ledger"
)

var ErrUnknownMethod = errors.New("unknown contract method")

// Executes a contract method. State may only change when commit is true.
type Handler func(args []ledger.Value, commit bool) (ledger.Value, error)

type Call struct {
	Method string
	Args   []ledger.Value

	// False for simulations
	Sent bool
}

type transaction struct {
	status    ledger.TransactionStatus
	remaining int
	result    ledger.Value
}

// Fake contract client. Calls are recorded, every stage of a call can be made to fail.
type Contract struct {
	id string

	mtx         sync.Mutex
	handlers    map[string]Handler
	simulateErr map[string]error
	sendErr     map[string]error
	finalStatus map[string]ledger.TransactionStatus
	statusErr   error
	pending     int
	statusCalls int
	calls       []Call
	txs         map[string]*transaction
	nextTx      int
}

var _ ledger.Contract = (*Contract)(nil)

func NewContract(id string) *Contract {
	return &Contract{
		id:          id,
		handlers:    make(map[string]Handler),
		simulateErr: make(map[string]error),
		sendErr:     make(map[string]error),
		finalStatus: make(map[string]ledger.TransactionStatus),
		txs:         make(map[string]*transaction),
	}
}

func (self *Contract) Id() string {
	return self.id
}

func (self *Contract) Handle(method string, h Handler) *Contract {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.handlers[method] = h
	return self
}

// Simulation of the method fails. Nil err clears the failure.
func (self *Contract) FailSimulate(method string, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	set(self.simulateErr, method, err)
}

// Submission of the method is rejected. Nil err clears the failure.
func (self *Contract) FailSend(method string, err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	set(self.sendErr, method, err)
}

// Transactions of the method end with the given status. PENDING never reaches finality.
func (self *Contract) SetFinalStatus(method string, status ledger.TransactionStatus) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.finalStatus[method] = status
}

// Number of status checks that report PENDING before the final status
func (self *Contract) SetPendingChecks(n int) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.pending = n
}

// Status checks fail with err. Nil err clears the failure.
func (self *Contract) FailStatusChecks(err error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	self.statusErr = err
}

func set(m map[string]error, method string, err error) {
	if err == nil {
		delete(m, method)
		return
	}
	m[method] = err
}

func (self *Contract) Calls(method string) (out []Call) {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	for _, c := range self.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return
}

// Number of submitted transactions of the method
func (self *Contract) SentCount(method string) (n int) {
	for _, c := range self.Calls(method) {
		if c.Sent {
			n++
		}
	}
	return
}

func (self *Contract) StatusChecks() int {
	self.mtx.Lock()
	defer self.mtx.Unlock()
	return self.statusCalls
}

func (self *Contract) record(method string, args []ledger.Value, sent bool) (Handler, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.calls = append(self.calls, Call{Method: method, Args: args, Sent: sent})

	errs := self.simulateErr
	if sent {
		errs = self.sendErr
	}
	if err, ok := errs[method]; ok {
		return nil, err
	}

	h, ok := self.handlers[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
	return h, nil
}

func (self *Contract) Simulate(ctx context.Context, method string, args ...ledger.Value) (out ledger.Value, err error) {
	h, err := self.record(method, args, false)
	if err != nil {
		return
	}
	return h(args, false)
}

func (self *Contract) Send(ctx context.Context, method string, args ...ledger.Value) (out ledger.TxHandle, err error) {
	h, err := self.record(method, args, true)
	if err != nil {
		return
	}

	self.mtx.Lock()
	status, ok := self.finalStatus[method]
	if !ok {
		status = ledger.TransactionStatusSuccess
	}
	self.nextTx++
	hash := fmt.Sprintf("%064x", self.nextTx)
	pending := self.pending
	self.mtx.Unlock()

	// State changes only when the transaction succeeds
	var result ledger.Value
	if status == ledger.TransactionStatusSuccess {
		result, err = h(args, true)
		if err != nil {
			return
		}
	}

	self.mtx.Lock()
	self.txs[hash] = &transaction{status: status, remaining: pending, result: result}
	self.mtx.Unlock()

	return ledger.TxHandle{Hash: hash}, nil
}

func (self *Contract) GetTransaction(ctx context.Context, hash string) (*ledger.TransactionInfo, error) {
	self.mtx.Lock()
	defer self.mtx.Unlock()

	self.statusCalls++
	if self.statusErr != nil {
		return nil, self.statusErr
	}

	tx, ok := self.txs[hash]
	if !ok {
		return &ledger.TransactionInfo{Hash: hash, Status: ledger.TransactionStatusPending}, nil
	}
	if tx.remaining > 0 {
		tx.remaining--
		return &ledger.TransactionInfo{Hash: hash, Status: ledger.TransactionStatusPending}, nil
	}

	info := &ledger.TransactionInfo{Hash: hash, Status: tx.status}
	if tx.status == ledger.TransactionStatusSuccess {
		result := tx.result
		info.ReturnValue = &result
	}
	return info, nil
}
