package rbac

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/bohemiyan/insights-rbac")

// Config holds the configuration for the RBAC service
type Config struct {
	DB          *gorm.DB
	RedisClient *redis.Client // optional; nil disables the grants cache
	CacheTTL    time.Duration
	CachePrefix string
	AutoMigrate bool

	Logger  *zap.SugaredLogger
	Metrics *Metrics

	// Collaborators used by ProcessQuery. Nil values fall back to the built-in
	// store fetcher, template formatter, exact-name speaker resolver and keyword classifier.
	Fetcher         Fetcher
	Formatter       ResponseFormatter
	SpeakerResolver SpeakerResolver
	Classifier      IntentClassifier

	// BulkWorkers bounds CheckBulk concurrency.
	BulkWorkers int
}

// RBACService is the authorization core: permission evaluation, scope resolution,
// access decisions with audit logging, and result filtering.
type RBACService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cacheTTL    time.Duration
	cachePrefix string
	log         *zap.SugaredLogger
	metrics     *Metrics

	fetcher     Fetcher
	formatter   ResponseFormatter
	speakers    SpeakerResolver
	classifier  IntentClassifier
	bulkWorkers int

	rulesMu     sync.RWMutex
	filterRules map[ResourceType]FilterRule
}

// NewRBACService initializes a new RBAC service
func NewRBACService(cfg Config) (*RBACService, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("database is required")
	}

	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "rbac:"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = 10
	}

	if cfg.AutoMigrate {
		if err := Migrate(cfg.DB); err != nil {
			return nil, err
		}
	}

	s := &RBACService{
		db:          cfg.DB,
		redisClient: cfg.RedisClient,
		cacheTTL:    cfg.CacheTTL,
		cachePrefix: cfg.CachePrefix,
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		fetcher:     cfg.Fetcher,
		formatter:   cfg.Formatter,
		speakers:    cfg.SpeakerResolver,
		classifier:  cfg.Classifier,
		bulkWorkers: cfg.BulkWorkers,
	}
	if s.speakers == nil {
		s.speakers = NewExactNameResolver(cfg.DB)
	}
	if s.fetcher == nil {
		s.fetcher = NewStoreFetcher(cfg.DB, s.speakers)
	}
	if s.formatter == nil {
		s.formatter = TemplateFormatter{}
	}
	if s.classifier == nil {
		s.classifier = NewKeywordClassifier()
	}
	s.filterRules = defaultFilterRules()
	return s, nil
}

// Migrate creates or updates every table the service reads or writes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for collaborators that share the store.
func (s *RBACService) DB() *gorm.DB {
	return s.db
}

// Ping checks the store and, when configured, the cache.
func (s *RBACService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
	}
	return nil
}
