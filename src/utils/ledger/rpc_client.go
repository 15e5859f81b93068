package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/rentledger/syncer/src/utils/config"
	"github.com/rentledger/syncer/src/utils/logger"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrRpc          = errors.New("ledger rpc error")
	ErrBadResponse  = errors.New("bad ledger rpc response")
	ErrUnauthorized = errors.New("ledger gateway rejected credentials")

	// The contract itself refused the call, e.g. it panicked for an unknown key
	ErrSimulationRejected = errors.New("simulation rejected by contract")
)

type rpcRequest struct {
	JsonRpc string `json:"jsonrpc"`
	Id      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse[T any] struct {
	Id     uint64    `json:"id"`
	Result *T        `json:"result"`
	Error  *rpcError `json:"error"`
}

type invokeParams struct {
	ContractId string  `json:"contractId"`
	Method     string  `json:"method"`
	Args       []Value `json:"args"`
}

type simulateResult struct {
	Result Value  `json:"result"`
	Error  string `json:"error,omitempty"`
}

type sendResult struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type transactionParams struct {
	Hash string `json:"hash"`
}

// JSON-RPC client of the ledger gateway. The gateway builds, signs and submits transactions.
type RpcClient struct {
	// Simulations and submissions, never retried
	client *resty.Client

	// Transaction status reads, retried on 5xx and network errors
	statusClient *resty.Client

	config *config.Ledger
	log    *logrus.Entry
	auth   *tokenSource

	nextId atomic.Uint64

	mtx      sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewRpcClient(config *config.Ledger) (self *RpcClient) {
	self = new(RpcClient)
	self.config = config
	self.log = logger.NewSublogger("ledger-rpc")
	self.limiters = make(map[string]*rate.Limiter)

	if config.AuthSecret != "" {
		self.auth = newTokenSource(config.AuthSecret, config.AuthTokenTTL)
	}

	self.client = self.newRestyClient().
		SetRetryCount(0)

	self.statusClient = self.newRestyClient().
		SetRetryCount(config.RetryCount).
		AddRetryCondition(self.onRetryCondition)

	return
}

func (self *RpcClient) newRestyClient() *resty.Client {
	return resty.New().
		SetBaseURL(self.config.Url).
		SetTimeout(self.config.RequestTimeout).
		SetHeader("Content-Type", "application/json").
		SetLogger(newRestyLogger()).
		OnBeforeRequest(self.onRateLimit).
		OnBeforeRequest(self.onAuthorize).
		OnAfterResponse(self.onStatusToError)
}

// Client of a single contract
func (self *RpcClient) Contract(id string) Contract {
	return &rpcContract{client: self, id: id}
}

func (self *RpcClient) onRateLimit(c *resty.Client, req *resty.Request) (err error) {
	host := self.config.Url
	u, err := url.Parse(self.config.Url)
	if err == nil {
		host = u.Host
	}

	self.mtx.Lock()
	limiter, ok := self.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(self.config.LimiterInterval), self.config.LimiterBurstSize)
		self.limiters[host] = limiter
	}
	self.mtx.Unlock()

	// Blocks till the request is possible or ctx gets canceled
	err = limiter.Wait(req.Context())
	if err != nil {
		self.log.WithField("host", host).WithError(err).Error("Rate limiting failed")
	}
	return
}

func (self *RpcClient) onAuthorize(c *resty.Client, req *resty.Request) error {
	if self.auth == nil {
		return nil
	}
	token, err := self.auth.Token()
	if err != nil {
		return fmt.Errorf("failed to sign gateway token: %w", err)
	}
	req.SetAuthToken(token)
	return nil
}

// Returns true if request should be retried
func (self *RpcClient) onRetryCondition(resp *resty.Response, err error) bool {
	if resp == nil || resp.RawResponse == nil {
		// Network error, retried unless the caller gave up
		return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}

	// Server side errors may be retried
	return resp.StatusCode() >= 500
}

func (self *RpcClient) onStatusToError(c *resty.Client, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	self.log.WithField("status", resp.StatusCode()).
		WithField("resp", string(resp.Body())).
		WithField("url", resp.Request.URL).
		Debug("Bad response")
	return fmt.Errorf("%w: unexpected status %s", ErrRpc, resp.Status())
}

func call[T any](ctx context.Context, self *RpcClient, client *resty.Client, method string, params any) (out *T, err error) {
	req := rpcRequest{
		JsonRpc: "2.0",
		Id:      self.nextId.Add(1),
		Method:  method,
		Params:  params,
	}

	resp, err := client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rpcResponse[T]{}).
		Post("")
	if err != nil {
		return
	}

	body, ok := resp.Result().(*rpcResponse[T])
	if !ok {
		return nil, ErrBadResponse
	}
	if body.Error != nil {
		return nil, fmt.Errorf("%w: %s (%d)", ErrRpc, body.Error.Message, body.Error.Code)
	}
	if body.Result == nil {
		return nil, fmt.Errorf("%w: empty result", ErrBadResponse)
	}
	return body.Result, nil
}

type rpcContract struct {
	client *RpcClient
	id     string
}

func (self *rpcContract) Id() string {
	return self.id
}

func (self *rpcContract) params(method string, args []Value) invokeParams {
	if args == nil {
		args = []Value{}
	}
	return invokeParams{ContractId: self.id, Method: method, Args: args}
}

func (self *rpcContract) Simulate(ctx context.Context, method string, args ...Value) (out Value, err error) {
	result, err := call[simulateResult](ctx, self.client, self.client.client, "simulateTransaction", self.params(method, args))
	if err != nil {
		return
	}
	if result.Error != "" {
		err = fmt.Errorf("%w: %w: %s", ErrRpc, ErrSimulationRejected, result.Error)
		return
	}
	return result.Result, nil
}

func (self *rpcContract) Send(ctx context.Context, method string, args ...Value) (out TxHandle, err error) {
	result, err := call[sendResult](ctx, self.client, self.client.client, "sendTransaction", self.params(method, args))
	if err != nil {
		return
	}
	if result.Status == "ERROR" || result.Error != "" {
		err = fmt.Errorf("%w: %s", ErrRpc, result.Error)
		return
	}
	if result.Hash == "" {
		err = fmt.Errorf("%w: missing transaction hash", ErrBadResponse)
		return
	}
	return TxHandle{Hash: result.Hash}, nil
}

func (self *rpcContract) GetTransaction(ctx context.Context, hash string) (out *TransactionInfo, err error) {
	out, err = call[TransactionInfo](ctx, self.client, self.client.statusClient, "getTransaction", transactionParams{Hash: hash})
	if err != nil {
		return
	}
	if out.Hash == "" {
		out.Hash = hash
	}
	if out.Status == TransactionStatusNotFound || out.Status == "" {
		out.Status = TransactionStatusPending
	}
	return
}
