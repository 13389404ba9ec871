// Package factory wires the admin auth subsystem together once, at process
// start. Consumers receive the Facade by reference; there is no ambient
// global state beyond the logger.
package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"admin-auth/internal/audit"
	"admin-auth/internal/auth"
	"admin-auth/internal/authority"
	"admin-auth/internal/client"
	"admin-auth/internal/config"
	"admin-auth/internal/seal"
	"admin-auth/internal/session"
	"admin-auth/internal/sessionstore"
	"admin-auth/internal/strategy"
	"admin-auth/internal/util"
	"admin-auth/internal/wallet"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config *config.Config

	redisClient   *client.RedisClient
	kafkaProducer *client.KafkaProducer

	sealManager *seal.Manager
	store       *sessionstore.Store
	provider    strategy.Provider
	auditor     audit.Emitter

	wallet  *wallet.Wallet
	roles   *session.RoleSelection
	manager *session.Manager
	facade  *auth.Facade

	unbind    func()
	closeOnce sync.Once
}

// NewFactory loads config and initializes all dependencies. The
// authentication strategy is selected here, exactly once.
func NewFactory() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	f := &Factory{config: cfg}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("initialize clients: %w", err)
	}
	if err := f.initializeAuth(); err != nil {
		return nil, fmt.Errorf("initialize auth: %w", err)
	}

	util.Info("Factory initialized",
		util.String("environment", cfg.Environment),
		util.String("auth_mode", cfg.Auth.Mode),
		util.String("session_backend", cfg.Session.Backend),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
		util.Bool("kafka_enabled", cfg.Kafka.Enabled),
	)
	return f, nil
}

func (f *Factory) initializeClients() error {
	if f.config.Session.Backend == config.SessionBackendRedis {
		rc, err := client.NewRedisClient(f.config)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		f.redisClient = rc
	}

	if f.config.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(f.config)
		if err != nil {
			// Audit is best-effort infrastructure; do not block startup.
			util.Warn("Kafka producer initialization failed - auditing to log only", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	return nil
}

func (f *Factory) initializeAuth() error {
	var kmsClient seal.KMSAPI
	if f.config.KMS.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			return fmt.Errorf("load AWS config: %w", err)
		}
		kmsClient = kms.NewFromConfig(awsCfg)
	}

	sealManager, err := seal.NewManager(f.config, kmsClient)
	if err != nil {
		return fmt.Errorf("seal manager: %w", err)
	}
	f.sealManager = sealManager

	var medium sessionstore.Medium
	switch f.config.Session.Backend {
	case config.SessionBackendRedis:
		medium = sessionstore.NewRedisMedium(f.redisClient, "default")
	default:
		medium = sessionstore.NewFileMedium(f.config.Session.FilePath)
	}
	f.store = sessionstore.NewStore(medium, sealManager)

	switch f.config.Auth.Mode {
	case config.AuthModeSimulated:
		provider, err := strategy.NewSimulated(f.config)
		if err != nil {
			return err
		}
		f.provider = provider
	default:
		f.provider = strategy.NewVerified(authority.NewClient(f.config))
	}

	if f.kafkaProducer != nil {
		f.auditor = audit.NewKafkaEmitter(f.kafkaProducer)
	} else {
		f.auditor = audit.LogEmitter{}
	}

	f.wallet = wallet.New()
	f.roles = session.NewRoleSelection()
	f.manager = session.NewManager(f.provider, f.store, f.auditor)
	f.unbind = f.manager.Bind(f.wallet, f.roles)
	f.facade = auth.NewFacade(f.manager)
	return nil
}

// HealthCheck reports per-dependency health.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)
	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	return healthErrors
}

// Close tears down dependencies in reverse order. Safe to call repeatedly.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		util.Info("Shutting down factory...")

		if f.unbind != nil {
			f.unbind()
		}
		if f.kafkaProducer != nil {
			_ = f.kafkaProducer.Close()
		}
		if f.redisClient != nil {
			_ = f.redisClient.Close()
		}
		if f.sealManager != nil {
			f.sealManager.ClearCache()
		}

		util.Sync()
	})
	return nil
}

func (f *Factory) Config() *config.Config { return f.config }

func (f *Factory) Facade() *auth.Facade { return f.facade }

func (f *Factory) Wallet() *wallet.Wallet { return f.wallet }

func (f *Factory) RoleSelection() *session.RoleSelection { return f.roles }

func (f *Factory) Manager() *session.Manager { return f.manager }
