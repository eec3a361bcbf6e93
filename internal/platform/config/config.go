package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every variable, e.g. LIFELINE_SERVER_ADDR.
const envPrefix = "LIFELINE"

// Config is the full process configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Policy   PolicyConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

// DatabaseConfig selects the ledger backend. An empty URL runs on memory stores.
type DatabaseConfig struct {
	URL             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	TxTimeout       time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`
}

// RedisConfig configures the tracking latch cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// KafkaConfig configures the event stream relay. No brokers disables it.
type KafkaConfig struct {
	Brokers           string        `envconfig:"BROKERS"`
	ClientID          string        `envconfig:"CLIENT_ID" default:"lifeline"`
	MaxBatchBytes     int           `envconfig:"MAX_BATCH_BYTES" default:"1048576"`
	TopicPartitions   int32         `envconfig:"TOPIC_PARTITIONS" default:"3"`
	TopicReplication  int16         `envconfig:"TOPIC_REPLICATION" default:"1"`
	RelayPollInterval time.Duration `envconfig:"RELAY_POLL_INTERVAL" default:"1s"`
	RelayBatchSize    int           `envconfig:"RELAY_BATCH_SIZE" default:"100"`
}

// BrokerList splits the comma separated broker list.
func (k KafkaConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// AuthConfig holds the key used to verify actor tokens issued by the
// authentication collaborator.
type AuthConfig struct {
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" default:"dev-secret-key-change-in-production"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"lifeline-auth"`
}

// PolicyConfig carries blood bank policy values.
type PolicyConfig struct {
	// File optionally points at a YAML document overriding ShelfLife.
	File string `envconfig:"FILE"`
	// AllowPrescreenedIntake lets intake register units that were screened elsewhere.
	AllowPrescreenedIntake bool   `envconfig:"ALLOW_PRESCREENED_INTAKE" default:"false"`
	DefaultLocation        string `envconfig:"DEFAULT_LOCATION" default:"Main Storage"`
	DefaultVolumeML        int    `envconfig:"DEFAULT_VOLUME_ML" default:"450"`
	// ReservationHoldTTL bounds how long an approved request may hold units
	// without delivery. Zero keeps reservations until released explicitly.
	ReservationHoldTTL time.Duration `envconfig:"RESERVATION_HOLD_TTL" default:"0"`
	SweepInterval      time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`
	ReserveMaxAttempts int           `envconfig:"RESERVE_MAX_ATTEMPTS" default:"4"`
	ShelfLife          ShelfLife     `ignored:"true"`
}

// ShelfLife maps a component name to its storage life.
type ShelfLife map[string]time.Duration

// DefaultShelfLife returns the stock storage lives per component.
func DefaultShelfLife() ShelfLife {
	return ShelfLife{
		"Whole Blood":      35 * 24 * time.Hour,
		"Packed Red Cells": 42 * 24 * time.Hour,
		"Plasma":           365 * 24 * time.Hour,
		"Platelets":        5 * 24 * time.Hour,
	}
}

type policyFile struct {
	ShelfLife map[string]string `yaml:"shelf_life"`
}

// FromEnv builds the configuration from LIFELINE_* environment variables and
// the optional policy file.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.Policy.ShelfLife = DefaultShelfLife()
	if cfg.Policy.File != "" {
		overrides, err := LoadShelfLife(cfg.Policy.File)
		if err != nil {
			return Config{}, err
		}
		for k, v := range overrides {
			cfg.Policy.ShelfLife[k] = v
		}
	}
	return cfg, nil
}

// LoadShelfLife reads shelf-life overrides from a YAML policy file:
//
//	shelf_life:
//	  Platelets: 120h
//	  Plasma: 8760h
func LoadShelfLife(path string) (ShelfLife, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParseShelfLife(raw)
}

// ParseShelfLife decodes the YAML policy document.
func ParseShelfLife(raw []byte) (ShelfLife, error) {
	var doc policyFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	out := make(ShelfLife, len(doc.ShelfLife))
	for component, value := range doc.ShelfLife {
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("shelf life for %q: %w", component, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("shelf life for %q must be positive", component)
		}
		out[component] = d
	}
	return out, nil
}
