package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	config := Default()
	require.NotNil(t, config)

	require.Equal(t, 30*time.Second, config.StopTimeout)
	require.Equal(t, "AGR", config.Agreement.NumberPrefix)
	require.Equal(t, 2, config.Escrow.ReleaseThreshold)
	require.Equal(t, int32(7), config.Ledger.Decimals)
	require.Equal(t, 2*time.Second, config.Finality.Interval)
	require.Equal(t, 15, config.Finality.MaxAttempts)
	require.True(t, config.Events.Enabled)
	require.Equal(t, uint16(6379), config.Events.Redis.Port)
	require.Equal(t, "agreement.expired", config.Events.ExpiredChannel)
	require.Equal(t, "0 */10 * * * *", config.Reconciler.Schedule)
	require.Equal(t, time.Minute, config.Analytics.CacheTTL)
	require.Equal(t, 50, config.Audit.BatchSize)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("RENTAL_ESCROW_RELEASE_THRESHOLD", "3")
	t.Setenv("RENTAL_EVENTS_REDIS_HOST", "redis.internal")
	t.Setenv("RENTAL_FINALITY_INTERVAL", "250ms")

	config, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, config.Escrow.ReleaseThreshold)
	require.Equal(t, "redis.internal", config.Events.Redis.Host)
	require.Equal(t, 250*time.Millisecond, config.Finality.Interval)
}

func TestLoadFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(path, []byte(`{
		"Ledger": {"Url": "https://gateway.example", "AgreementContractId": "CAGR"},
		"Reconciler": {"Enabled": false}
	}`), 0o600)
	require.NoError(t, err)

	config, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://gateway.example", config.Ledger.Url)
	require.Equal(t, "CAGR", config.Ledger.AgreementContractId)
	require.False(t, config.Reconciler.Enabled)

	// Untouched sections keep defaults
	require.Equal(t, "rental", config.Database.Name)
}

func TestLoadMissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
