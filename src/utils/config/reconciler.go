package config

import (
	"github.com/spf13/viper"
)

type Reconciler struct {
	// Is the periodic sweep enabled
	Enabled bool

	// Cron spec of the sweep, with seconds
	Schedule string

	// Agreements reconciled per second
	PerSecond int

	// Agreements loaded from the database in one page
	BatchSize int
}

func setReconcilerDefaults() {
	viper.SetDefault("Reconciler.Enabled", "true")
	viper.SetDefault("Reconciler.Schedule", "0 */10 * * * *")
	viper.SetDefault("Reconciler.PerSecond", "5")
	viper.SetDefault("Reconciler.BatchSize", "100")
}
