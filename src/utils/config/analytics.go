package config

import (
	"time"

	"github.com/spf13/viper"
)

type Analytics struct {
	// How long computed views stay cached
	CacheTTL time.Duration

	// Number of holders returned in the overview
	TopHolders int
}

func setAnalyticsDefaults() {
	viper.SetDefault("Analytics.CacheTTL", "1m")
	viper.SetDefault("Analytics.TopHolders", "10")
}
