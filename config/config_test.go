package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("HTTP_BIND_ADDRESS", "")

	t.Run("reads a valid file", func(t *testing.T) {
		// Act
		cfg, err := FromFile(filepath.Join("testdata", "valid.yaml"))

		// Assert
		require.NoError(t, err)
		assert.NotNil(t, cfg.Logger)
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, ":9090", cfg.HTTP.BindAddress)
		assert.Equal(t, int32(4), cfg.Database.MaxConns)
		assert.True(t, cfg.Interest.PostAtPeriodEnd)
		assert.Equal(t, 4, cfg.Interest.FinancialYearBeginningMonth)
		assert.Equal(t, "Asia/Kolkata", cfg.Interest.Location().String())
		assert.Equal(t, "15 2 * * *", cfg.Posting.Schedule)
		assert.Equal(t, "30 0 * * *", cfg.Posting.MaturitySchedule)
		assert.Equal(t, "45 1 * * *", cfg.Posting.ChargeSchedule)
		assert.Equal(t, 50, cfg.Posting.BatchSize)
		assert.Equal(t, 10*time.Second, cfg.Posting.MaxRetryInterval)
	})

	t.Run("rejects an invalid file", func(t *testing.T) {
		// Act
		cfg, err := FromFile(filepath.Join("testdata", "invalid.yaml"))

		// Assert
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "interest:")
	})

	t.Run("missing file", func(t *testing.T) {
		// Act
		_, err := FromFile(filepath.Join("testdata", "missing.yaml"))

		// Assert
		require.Error(t, err)
	})
}

func TestReadConfig(t *testing.T) {
	t.Setenv("HTTP_BIND_ADDRESS", "")

	t.Run("environment overrides the file", func(t *testing.T) {
		// Arrange
		t.Setenv("DATABASE_URL", "postgres://env@localhost/savings")
		conf := []byte(`database:
  url: "postgres://file@localhost/savings"
`)

		// Act
		cfg, err := Read(conf)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "postgres://env@localhost/savings", cfg.Database.URL)
		assert.Equal(t, ":8080", cfg.HTTP.BindAddress)
		assert.Equal(t, "UTC", cfg.Interest.Location().String())
	})

	t.Run("bad cron schedule", func(t *testing.T) {
		// Arrange
		t.Setenv("DATABASE_URL", "")
		conf := []byte(`database:
  url: "postgres://file@localhost/savings"
posting:
  schedule: "every day"
`)

		// Act
		_, err := Read(conf)

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "posting: schedule")
	})

	t.Run("bad charge schedule", func(t *testing.T) {
		// Arrange
		t.Setenv("DATABASE_URL", "")
		conf := []byte(`database:
  url: "postgres://file@localhost/savings"
posting:
  chargeSchedule: "monthly"
`)

		// Act
		_, err := Read(conf)

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "posting: chargeSchedule")
	})

	t.Run("disabled posting skips schedule checks", func(t *testing.T) {
		// Arrange
		t.Setenv("DATABASE_URL", "")
		conf := []byte(`database:
  url: "postgres://file@localhost/savings"
posting:
  enabled: false
  schedule: "nonsense"
`)

		// Act
		cfg, err := Read(conf)

		// Assert
		require.NoError(t, err)
		assert.False(t, cfg.Posting.Enabled)
	})

	t.Run("missing database url", func(t *testing.T) {
		// Arrange
		t.Setenv("DATABASE_URL", "")

		// Act
		_, err := Read([]byte("http:\n  bindAddress: \":8081\"\n"))

		// Assert
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database: missing url")
	})
}
