package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	GRPC     GRPCConfig
	Storage  StorageConfig
	Database DatabaseConfig
	NATS     NATSConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Workflow WorkflowConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// GRPCConfig configures the gRPC server.
type GRPCConfig struct {
	Port int
}

// StorageConfig selects the persistence backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string
}

// DatabaseConfig configures the Postgres pool.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	MaxConnTime time.Duration
	MaxIdleTime time.Duration
	HealthCheck time.Duration
}

// NATSConfig configures the notification publisher. An empty URL disables it.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// KafkaConfig configures the history event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// WorkflowConfig configures stage pipelines.
type WorkflowConfig struct {
	CatalogueFile    string
	FindingStages    int
	InspectionStages int
}

var defaults = map[string]any{
	"service.name":        "be-hse-inspections",
	"service.version":     "dev",
	"service.environment": "development",
	"log.level":           "info",

	"http.port":             8086,
	"http.read_timeout":     "15s",
	"http.write_timeout":    "15s",
	"http.idle_timeout":     "60s",
	"http.shutdown_timeout": "20s",
	"http.request_timeout":  "30s",

	"grpc.port": 9086,

	"storage.driver": "postgres",

	"db.host":          "localhost",
	"db.port":          5432,
	"db.user":          "postgres",
	"db.password":      "",
	"db.name":          "hse_inspections",
	"db.sslmode":       "disable",
	"db.max_conns":     10,
	"db.min_conns":     2,
	"db.max_conn_time": "1h",
	"db.max_idle_time": "30m",
	"db.health_check":  "1m",

	"nats.url":            "",
	"nats.subject_prefix": "notifications.hse",

	"kafka.brokers": "",
	"kafka.topic":   "hse.approval-history",

	"auth.jwt_secret": "",
	"auth.issuer":     "",

	"workflow.catalogue_file":    "",
	"workflow.finding_stages":    6,
	"workflow.inspection_stages": 4,
}

// Load reads configuration from the environment. Keys map to upper-case
// variables with dots replaced by underscores, e.g. db.host -> DB_HOST.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        v.GetString("service.name"),
			Version:     v.GetString("service.version"),
			Environment: v.GetString("service.environment"),
			LogLevel:    v.GetString("log.level"),
		},
		Server: ServerConfig{
			Port:            v.GetInt("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			RequestTimeout:  v.GetDuration("http.request_timeout"),
		},
		GRPC: GRPCConfig{
			Port: v.GetInt("grpc.port"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("storage.driver")),
		},
		Database: DatabaseConfig{
			Host:        v.GetString("db.host"),
			Port:        v.GetInt("db.port"),
			User:        v.GetString("db.user"),
			Password:    v.GetString("db.password"),
			Database:    v.GetString("db.name"),
			SSLMode:     v.GetString("db.sslmode"),
			MaxConns:    v.GetInt32("db.max_conns"),
			MinConns:    v.GetInt32("db.min_conns"),
			MaxConnTime: v.GetDuration("db.max_conn_time"),
			MaxIdleTime: v.GetDuration("db.max_idle_time"),
			HealthCheck: v.GetDuration("db.health_check"),
		},
		NATS: NATSConfig{
			URL:           v.GetString("nats.url"),
			SubjectPrefix: v.GetString("nats.subject_prefix"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Workflow: WorkflowConfig{
			CatalogueFile:    v.GetString("workflow.catalogue_file"),
			FindingStages:    v.GetInt("workflow.finding_stages"),
			InspectionStages: v.GetInt("workflow.inspection_stages"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("HTTP_PORT must be positive")
	}
	if c.GRPC.Port <= 0 {
		return fmt.Errorf("GRPC_PORT must be positive")
	}
	if c.Auth.JWTSecret == "" && c.Service.Environment != "development" {
		return fmt.Errorf("AUTH_JWT_SECRET is required outside development")
	}
	if c.Storage.Driver != "postgres" && c.Storage.Driver != "memory" {
		return fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Storage.Driver)
	}
	if c.Workflow.FindingStages <= 0 || c.Workflow.InspectionStages <= 0 {
		return fmt.Errorf("workflow stage counts must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
