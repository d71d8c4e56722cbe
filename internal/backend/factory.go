package backend

import (
	"context"
	"errors"
	"fmt"

	"shiire/internal/amqp"
	"shiire/internal/cache"
	"shiire/internal/core"
	"shiire/internal/log"
	"shiire/internal/storage"
	"shiire/internal/storage/memory"
)

const reportCachePrefix = "shiire:report:"

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the repository, then the optional AMQP publisher and
// the report cache. AMQP failures are logged and publishing stays off;
// repository and cache failures abort.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}
	res := &Result{Repository: repo, Cleaners: map[string]cache.Cleaner{}}
	closers := []func() error{repo.Close}

	if client := f.connectAMQP(config); client != nil {
		// assigned only when non-nil so Publisher never holds a typed nil
		res.Publisher = client
		closers = append(closers, client.Close)
	}

	reportCache, closeCache, err := f.createReportCache(ctx, config.Cache)
	if err != nil {
		_ = runClosers(closers)
		return nil, err
	}
	res.ReportCache = reportCache
	if lru, ok := reportCache.(*cache.LRUCache[core.Report]); ok {
		res.Cleaners["reports"] = lru
	}
	if closeCache != nil {
		closers = append(closers, closeCache)
	}

	res.Cleanup = func() error { return runClosers(closers) }
	return res, nil
}

func (f *DefaultFactory) createRepository(config Config) (storage.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		f.logger.Info("Initialized memory backend", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, session changes stay in process")
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func (f *DefaultFactory) createReportCache(ctx context.Context, cc CacheConfig) (cache.Cache[core.Report], func() error, error) {
	if cc.Type == RedisCache {
		rc, err := cache.NewRedisCache[core.Report](ctx, cache.RedisOptions{
			Addr:     cc.RedisAddr,
			Password: cc.RedisPassword,
			DB:       cc.RedisDB,
			Prefix:   reportCachePrefix,
			TTL:      cc.TTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis cache: %w", err)
		}
		f.logger.Info("Initialized redis report cache", "addr", cc.RedisAddr, "ttl", cc.TTL)
		return rc, rc.Close, nil
	}
	maxEntries := cc.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultReportCacheEntries
	}
	f.logger.Info("Initialized in-memory report cache", "max_entries", maxEntries, "ttl", cc.TTL)
	return cache.NewLRUCache[core.Report](maxEntries, cc.TTL), nil, nil
}

// runClosers closes in reverse order of opening and joins the errors.
func runClosers(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
