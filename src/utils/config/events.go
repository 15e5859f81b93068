package config

import (
	"time"

	"github.com/spf13/viper"
)

type Events struct {
	// Is the Redis event subscriber started
	Enabled bool

	Redis Redis

	// Pub/sub channels carrying ledger notifications
	MintedChannel      string
	TransferredChannel string

	// Channel that receives agreement.expired notifications
	ExpiredChannel string

	// Size of the buffer between the subscriber and the processor
	BufferSize int

	// Backoff for a single event handling
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration
}

func setEventsDefaults() {
	viper.SetDefault("Events.Enabled", "true")
	viper.SetDefault("Events.MintedChannel", "obligation.minted")
	viper.SetDefault("Events.TransferredChannel", "obligation.transferred")
	viper.SetDefault("Events.ExpiredChannel", "agreement.expired")
	viper.SetDefault("Events.BufferSize", "100")
	viper.SetDefault("Events.MaxElapsedTime", "1m")
	viper.SetDefault("Events.MaxInterval", "5s")
	setRedisDefaults("Events.Redis")
}
