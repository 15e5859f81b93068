package events

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/rentledger/syncer/src/utils/config"

	"github.com/redis/go-redis/v9"
)

func newRedisClient(name string, redisConfig *config.Redis) (*redis.Client, error) {
	opts := redis.Options{
		ClientName:      fmt.Sprintf("rental/%s", name),
		Addr:            fmt.Sprintf("%s:%d", redisConfig.Host, redisConfig.Port),
		Password:        redisConfig.Password,
		Username:        redisConfig.User,
		DB:              redisConfig.DB,
		MinIdleConns:    redisConfig.MinIdleConns,
		MaxIdleConns:    redisConfig.MaxIdleConns,
		ConnMaxIdleTime: redisConfig.ConnMaxIdleTime,
		PoolSize:        redisConfig.MaxOpenConns,
		ConnMaxLifetime: redisConfig.ConnMaxLifetime,
	}

	if redisConfig.ClientCert != "" && redisConfig.ClientKey != "" && redisConfig.CaCert != "" {
		cert, err := tls.X509KeyPair([]byte(redisConfig.ClientCert), []byte(redisConfig.ClientKey))
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM([]byte(redisConfig.CaCert)) {
			return nil, errors.New("failed to append CA cert to pool")
		}

		opts.TLSConfig = &tls.Config{
			RootCAs:      caCertPool,
			ClientCAs:    caCertPool,
			Certificates: []tls.Certificate{cert},
		}
	}

	return redis.NewClient(&opts), nil
}
