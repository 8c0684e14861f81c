package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVICE_ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "be-hse-inspections", cfg.Service.Name)
	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, 9086, cfg.GRPC.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, 6, cfg.Workflow.FindingStages)
	assert.Equal(t, 4, cfg.Workflow.InspectionStages)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVICE_ENVIRONMENT", "production")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("HTTP_PORT", "8100")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "k3")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("HTTP_REQUEST_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "k3", cfg.Database.Database)
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("SERVICE_ENVIRONMENT", "production")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
}

func TestLoadRegistryDefault(t *testing.T) {
	reg, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Same(t, workflow.Default, reg)
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stages.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stages:
  - number: 1
    name: Report
    roles: [Inspector]
  - number: 2
    name: Repair
    roles: [Technician, Inspector]
`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "Repair", reg.StageName(2))
	assert.Equal(t, []string{"Report", "Repair"}, reg.StagesForRole("Inspector"))
}

func TestParseRegistryRejectsGaps(t *testing.T) {
	_, err := ParseRegistry([]byte(`
stages:
  - number: 1
    name: Report
  - number: 3
    name: Close
`))
	assert.ErrorContains(t, err, "invalid stage catalogue")

	_, err = ParseRegistry([]byte("stages: ["))
	assert.ErrorContains(t, err, "parse stage catalogue")

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read stage catalogue")
}

func TestLoadStorageDriver(t *testing.T) {
	t.Setenv("SERVICE_ENVIRONMENT", "development")

	t.Setenv("STORAGE_DRIVER", "Memory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)

	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "STORAGE_DRIVER")
}
