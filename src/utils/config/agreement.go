package config

import (
	"github.com/spf13/viper"
)

type Agreement struct {
	// Prefix of the human readable agreement number, e.g. AGR-2024-0001
	NumberPrefix string

	// Workers creating escrows in the background after an agreement is created
	EscrowWorkers int

	// Max number of pending escrow creations
	EscrowWorkerQueueSize int
}

func setAgreementDefaults() {
	viper.SetDefault("Agreement.NumberPrefix", "AGR")
	viper.SetDefault("Agreement.EscrowWorkers", "4")
	viper.SetDefault("Agreement.EscrowWorkerQueueSize", "100")
}
