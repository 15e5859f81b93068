package config

import (
	"time"

	"github.com/spf13/viper"
)

type Audit struct {
	// Records buffered before a flush is forced
	BatchSize int

	// Max time a record waits in the buffer
	FlushInterval time.Duration

	// Flush retries
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration
}

func setAuditDefaults() {
	viper.SetDefault("Audit.BatchSize", "50")
	viper.SetDefault("Audit.FlushInterval", "2s")
	viper.SetDefault("Audit.MaxElapsedTime", "1m")
	viper.SetDefault("Audit.MaxInterval", "10s")
}
