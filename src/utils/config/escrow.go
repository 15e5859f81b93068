package config

import (
	"github.com/spf13/viper"
)

type Escrow struct {
	// Number of approvals that releases the deposit
	ReleaseThreshold int

	// Arbiter used for escrows created on behalf of new agreements
	ArbiterAddress string
}

func setEscrowDefaults() {
	viper.SetDefault("Escrow.ReleaseThreshold", "2")
	viper.SetDefault("Escrow.ArbiterAddress", "0x0000000000000000000000000000000000000a0b")
}
