package config

import (
	"time"

	"github.com/spf13/viper"
)

type Finality struct {
	// Time between two transaction status checks
	Interval time.Duration

	// Number of status checks before giving up with a timeout
	MaxAttempts int
}

func setFinalityDefaults() {
	viper.SetDefault("Finality.Interval", "2s")
	viper.SetDefault("Finality.MaxAttempts", "15")
}
