package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
)

// Config aggregates application configuration values loaded from environment
// variables.
type Config struct {
	Env      string
	HTTPAddr string

	// STORE_MODE selects the chat store backend: memory, mongo or scylla.
	StoreMode string

	MongoURI       string
	MongoDB        string
	IdempotencyTTL time.Duration

	ScyllaHosts             []string
	ScyllaKeyspace          string
	ScyllaUsername          string
	ScyllaPassword          string
	ScyllaConsistency       gocql.Consistency
	ScyllaTimeout           time.Duration
	ScyllaReplicationFactor int

	KafkaBrokers       []string
	KafkaTopicPrefix   string
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration

	// DIRECTORY_MODE selects the property directory adapter: memory or http.
	DirectoryMode    string
	DirectoryURL     string
	DirectoryTimeout time.Duration
	PropertyFixtures string
}

const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreScylla = "scylla"

	DirectoryMemory = "memory"
	DirectoryHTTP   = "http"
)

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StoreMode:        strings.ToLower(getEnv("STORE_MODE", StoreMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "renthub"),
		ScyllaHosts:      splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost")),
		ScyllaKeyspace:   strings.TrimSpace(getEnv("SCYLLA_KEYSPACE", "renthub_chat")),
		ScyllaUsername:   strings.TrimSpace(os.Getenv("SCYLLA_USERNAME")),
		ScyllaPassword:   strings.TrimSpace(os.Getenv("SCYLLA_PASSWORD")),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		DirectoryMode:    strings.ToLower(getEnv("DIRECTORY_MODE", DirectoryMemory)),
		DirectoryURL:     getEnv("DIRECTORY_URL", ""),
		PropertyFixtures: getEnv("PROPERTY_FIXTURES", ""),
	}

	switch cfg.StoreMode {
	case StoreMemory, StoreMongo, StoreScylla:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_MODE: %q", cfg.StoreMode)
	}
	if cfg.StoreMode == StoreMongo && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required when STORE_MODE=mongo")
	}
	if cfg.StoreMode == StoreScylla && len(cfg.ScyllaHosts) == 0 {
		return Config{}, fmt.Errorf("SCYLLA_HOSTS is required when STORE_MODE=scylla")
	}
	switch cfg.DirectoryMode {
	case DirectoryMemory:
	case DirectoryHTTP:
		if cfg.DirectoryURL == "" {
			return Config{}, fmt.Errorf("DIRECTORY_URL is required when DIRECTORY_MODE=http")
		}
	default:
		return Config{}, fmt.Errorf("unsupported DIRECTORY_MODE: %q", cfg.DirectoryMode)
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}

	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 168*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	scyllaTimeout, err := parseDurationEnv("SCYLLA_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaTimeout = scyllaTimeout

	directoryTimeout, err := parseDurationEnv("DIRECTORY_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.DirectoryTimeout = directoryTimeout

	consistency, err := parseConsistency(getEnv("SCYLLA_CONSISTENCY", "quorum"))
	if err != nil {
		return Config{}, err
	}
	cfg.ScyllaConsistency = consistency

	cfg.ScyllaReplicationFactor = parseIntWithDefault(os.Getenv("SCYLLA_REPLICATION_FACTOR"), 1)
	if cfg.ScyllaReplicationFactor < 1 {
		cfg.ScyllaReplicationFactor = 1
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntWithDefault(raw string, def int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v == 0 {
		return def
	}
	return v
}

func parseConsistency(raw string) (gocql.Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "quorum":
		return gocql.Quorum, nil
	case "one":
		return gocql.One, nil
	case "local_quorum", "localquorum":
		return gocql.LocalQuorum, nil
	case "all":
		return gocql.All, nil
	default:
		return gocql.Quorum, fmt.Errorf("unsupported SCYLLA_CONSISTENCY: %s", raw)
	}
}
