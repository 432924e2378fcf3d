package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"resource-auth-service/internal/bucketing"
	"resource-auth-service/internal/client"
	"resource-auth-service/internal/config"
	"resource-auth-service/internal/email"
	"resource-auth-service/internal/hashing"
	"resource-auth-service/internal/repository"
	"resource-auth-service/internal/repository/memory"
	redisrepo "resource-auth-service/internal/repository/redis"
	"resource-auth-service/internal/repository/scylla"
	"resource-auth-service/internal/service"
	"resource-auth-service/internal/tls"
	"resource-auth-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	// Clients
	redisClient   *client.RedisClient
	scyllaClient  *scylla.ScyllaClient
	eventProducer *client.AuthEventProducer

	// Managers
	hasher           *hashing.Hasher
	bucketingManager *bucketing.BucketingManager

	// Repositories and caches
	resourceRepository repository.ResourceRepository
	challengeCache     *redisrepo.ChallengeCache
	sessionCache       *redisrepo.SessionCache
	mailer             email.Sender

	serviceFactory *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewManager(cfg.Server)
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)

	return factory, nil
}

// initializeClients initializes all external service clients with health checks
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// Redis
	if c, err := client.NewRedisClient(f.config); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = c
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// ScyllaDB; a development run without a cluster falls back to the
	// in-memory store so the service stays usable on a laptop.
	if c, err := scylla.NewScyllaClient(f.config); err != nil {
		if f.config.IsProduction() {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			util.Warn("ScyllaDB unavailable, using in-memory resource store", util.ErrorField(err))
			f.resourceRepository = memory.NewResourceStore()
		}
	} else {
		f.scyllaClient = c
		if err := f.scyllaClient.HealthCheck(); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
		} else {
			util.Info("ScyllaDB client initialized and healthy")
		}
	}

	// Kafka is optional; auth events are best-effort audit, not a
	// serving dependency.
	if f.config.Kafka.Enabled {
		if producer, err := client.NewAuthEventProducer(f.config); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without Kafka", util.ErrorField(err))
		} else {
			f.eventProducer = producer
			util.Info("Kafka auth event producer initialized")
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, bucketing, caches, and the mailer
func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)

	if f.redisClient != nil {
		f.challengeCache = redisrepo.NewChallengeCache(f.redisClient, f.bucketingManager, f.config.Auth.OTPMaxAttempts)
		f.sessionCache = redisrepo.NewSessionCache(f.redisClient)
	}

	f.mailer = email.NewSMTPSender(f.config)

	util.Info("Managers initialized successfully",
		util.Bool("hashing_initialized", f.hasher != nil),
		util.Bool("bucketing_initialized", f.bucketingManager != nil),
		util.Bool("challenge_cache_initialized", f.challengeCache != nil),
	)
}

// ==============================
// Repository Initialization
// ==============================

func (f *Factory) ResourceRepository() repository.ResourceRepository {
	if f.resourceRepository == nil {
		f.resourceRepository = scylla.NewResourceRepository(f.scyllaClient)
	}
	return f.resourceRepository
}

// ==============================
// Service Factory
// ==============================

func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		var events service.EventPublisher
		if f.eventProducer != nil {
			events = f.eventProducer
		}
		f.serviceFactory = service.NewServiceFactory(
			f.ResourceRepository(),
			f.hasher,
			f.challengeCache,
			f.sessionCache,
			f.mailer,
			events,
			f.config,
		)
	}
	return f.serviceFactory
}

// ==============================
// Accessors
// ==============================

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.Manager {
	return f.tlsManager
}

// ==============================
// Health Checks
// ==============================

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}

	return healthErrors
}

// Close shuts down every client exactly once.
func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		close(f.closed)

		if f.eventProducer != nil {
			if err := f.eventProducer.Close(); err != nil {
				util.Warn("Error closing Kafka producer", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Warn("Error closing Redis client", util.ErrorField(err))
			}
		}

		util.Info("Factory closed")
	})
}
