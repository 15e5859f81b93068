package config

import (
	"time"

	"github.com/spf13/viper"
)

type Redis struct {
	Port     uint16
	Host     string
	User     string
	Password string
	DB       int

	// TLS configuration
	ClientKey  string
	ClientCert string
	CaCert     string

	// Connection configuration
	MinIdleConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration

	// Publish backoff configuration, 0 is no limit
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration
}

func setRedisDefaults(prefix string) {
	viper.SetDefault(prefix+".Port", "6379")
	viper.SetDefault(prefix+".Host", "localhost")
	viper.SetDefault(prefix+".User", "")
	viper.SetDefault(prefix+".Password", "")
	viper.SetDefault(prefix+".DB", "0")
	viper.SetDefault(prefix+".MinIdleConns", "1")
	viper.SetDefault(prefix+".MaxIdleConns", "5")
	viper.SetDefault(prefix+".ConnMaxIdleTime", "10m")
	viper.SetDefault(prefix+".MaxOpenConns", "15")
	viper.SetDefault(prefix+".ConnMaxLifetime", "1h")
	viper.SetDefault(prefix+".MaxElapsedTime", "10m")
	viper.SetDefault(prefix+".MaxInterval", "60s")
}
