package config

import (
	"testing"
	"time"

	"github.com/gocql/gocql"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreMode != StoreMemory {
		t.Errorf("store mode = %q, want memory", cfg.StoreMode)
	}
	if cfg.DirectoryMode != DirectoryMemory {
		t.Errorf("directory mode = %q, want memory", cfg.DirectoryMode)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.IdempotencyTTL != 168*time.Hour {
		t.Errorf("idempotency ttl = %v, want 168h", cfg.IdempotencyTTL)
	}
	if len(cfg.RetryBackoff) != 3 {
		t.Errorf("retry backoff = %v, want 3 steps", cfg.RetryBackoff)
	}
	if cfg.ScyllaConsistency != gocql.Quorum {
		t.Errorf("consistency = %v, want quorum", cfg.ScyllaConsistency)
	}
}

func TestLoadMongoRequiresURI(t *testing.T) {
	t.Setenv("STORE_MODE", "mongo")
	if _, err := Load(); err == nil {
		t.Error("mongo mode without MONGO_URI must fail")
	}

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreMode != StoreMongo || cfg.MongoDB != "renthub" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownModes(t *testing.T) {
	t.Setenv("STORE_MODE", "etcd")
	if _, err := Load(); err == nil {
		t.Error("unknown store mode must fail")
	}
}

func TestLoadHTTPDirectoryRequiresURL(t *testing.T) {
	t.Setenv("DIRECTORY_MODE", "http")
	if _, err := Load(); err == nil {
		t.Error("http directory without DIRECTORY_URL must fail")
	}

	t.Setenv("DIRECTORY_URL", "http://directory:8081")
	t.Setenv("DIRECTORY_TIMEOUT", "2s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DirectoryTimeout != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", cfg.DirectoryTimeout)
	}
}

func TestLoadParsesListsAndDurations(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092 ,")
	t.Setenv("RETRY_BACKOFF", "100ms, 1s")
	t.Setenv("SCYLLA_CONSISTENCY", "local_quorum")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("brokers = %v", cfg.KafkaBrokers)
	}
	if len(cfg.RetryBackoff) != 2 || cfg.RetryBackoff[0] != 100*time.Millisecond {
		t.Errorf("backoff = %v", cfg.RetryBackoff)
	}
	if cfg.ScyllaConsistency != gocql.LocalQuorum {
		t.Errorf("consistency = %v, want local_quorum", cfg.ScyllaConsistency)
	}

	t.Setenv("RETRY_BACKOFF", "soon")
	if _, err := Load(); err == nil {
		t.Error("bad backoff must fail")
	}
}
