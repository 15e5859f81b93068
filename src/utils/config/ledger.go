package config

import (
	"time"

	"github.com/spf13/viper"
)

type Ledger struct {
	// URL of the JSON-RPC gateway that simulates, signs and submits contract calls
	Url string

	// Contract ids
	AgreementContractId  string
	EscrowContractId     string
	ObligationContractId string

	// HMAC secret used to sign gateway bearer tokens. Empty disables auth.
	AuthSecret string

	// Lifetime of a single bearer token
	AuthTokenTTL time.Duration

	// Number of decimal places of the ledger's fixed-point amounts
	Decimals int32

	// Single request timeout
	RequestTimeout time.Duration

	// Number of retries of transaction status reads on 5xx responses. Simulations and submissions are never retried.
	RetryCount int

	// Requests per second allowed towards the gateway, with burst
	LimiterInterval  time.Duration
	LimiterBurstSize int
}

func setLedgerDefaults() {
	viper.SetDefault("Ledger.Url", "http://localhost:8000")
	viper.SetDefault("Ledger.AgreementContractId", "")
	viper.SetDefault("Ledger.EscrowContractId", "")
	viper.SetDefault("Ledger.ObligationContractId", "")
	viper.SetDefault("Ledger.AuthSecret", "")
	viper.SetDefault("Ledger.AuthTokenTTL", "1m")
	viper.SetDefault("Ledger.Decimals", "7")
	viper.SetDefault("Ledger.RequestTimeout", "30s")
	viper.SetDefault("Ledger.RetryCount", "2")
	viper.SetDefault("Ledger.LimiterInterval", "100ms")
	viper.SetDefault("Ledger.LimiterBurstSize", "10")
}
