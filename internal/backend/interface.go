package backend

import (
	"context"
	"time"

	"shiire/internal/cache"
	"shiire/internal/core"
	"shiire/internal/services"
	"shiire/internal/storage"
)

// CleanupFunc releases what a backend opened.
type CleanupFunc func() error

// Result holds the wired data layer. Publisher is nil when AMQP is disabled
// or unreachable; ReportCache is never nil.
type Result struct {
	Repository  storage.Repository
	Publisher   services.Publisher
	ReportCache cache.Cache[core.Report]
	// Cleaners are the in-process caches that need periodic expiry sweeps.
	Cleaners map[string]cache.Cleaner
	Cleanup  CleanupFunc
}

// Factory creates the data layer from configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend seed directory
	DataDirectory string

	// Optional AMQP publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Report cache
	Cache CacheConfig
}

type CacheConfig struct {
	Type          CacheType
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	MaxEntries    int
}

// BackendType names a data backend.
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// CacheType names a report cache implementation.
type CacheType string

const (
	MemoryCache CacheType = "memory"
	RedisCache  CacheType = "redis"
)

func (ct CacheType) IsValid() bool {
	return ct == MemoryCache || ct == RedisCache
}
