package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"huntzen-care/config"
	"huntzen-care/logger"
	"huntzen-care/models"
	"huntzen-care/services"
	"huntzen-care/utils"
)

const (
	connectAttempts = 5
	connectDelay    = 3 * time.Second
)

// infra holds the process-wide connections. Optional backends stay nil when
// they are not configured or cannot be reached.
type infra struct {
	cfg      *config.Config
	log      *slog.Logger
	db       *gorm.DB
	redis    utils.RedisClient
	producer utils.KafkaProducer
	search   utils.ElasticsearchClient
	flush    func()
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(logger.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	})
	return cfg, log, nil
}

// connect retries dial a fixed number of times before giving up.
func connect[T any](log *slog.Logger, name string, dial func() (T, error)) (T, error) {
	var (
		client T
		err    error
	)
	for i := 0; i < connectAttempts; i++ {
		client, err = dial()
		if err == nil {
			return client, nil
		}
		log.Warn("connection attempt failed", "backend", name, "attempt", i+1, "error", err)
		if i < connectAttempts-1 {
			time.Sleep(connectDelay)
		}
	}
	return client, fmt.Errorf("failed to connect to %s after %d attempts: %w", name, connectAttempts, err)
}

func openDatabase(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	db, err := connect(log, "database", func() (*gorm.DB, error) {
		db, err := models.OpenDatabase(cfg.DBDriver, cfg.DSN(), cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		if err := models.Ping(db); err != nil {
			_ = models.CloseDatabase(db)
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		_ = models.CloseDatabase(db)
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	log.Info("database ready", "driver", cfg.DBDriver)
	return db, nil
}

// openInfra connects everything the API and the consumer need. Only the
// database is mandatory.
func openInfra(cfg *config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{cfg: cfg, log: log, flush: func() {}}

	db, err := openDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	in.db = db

	if cfg.RedisHost != "" {
		in.redis, err = connect(log, "redis", func() (utils.RedisClient, error) {
			return utils.NewRedisClient(cfg.RedisHost, cfg.RedisPassword)
		})
		if err != nil {
			log.Warn("running without cache", "error", err)
			in.redis = nil
		}
	}

	if cfg.KafkaBroker != "" {
		in.producer, err = connect(log, "kafka", func() (utils.KafkaProducer, error) {
			return utils.NewKafkaProducer(cfg.KafkaBroker)
		})
		if err != nil {
			log.Warn("running without event publishing", "error", err)
			in.producer = nil
		}
	}

	if cfg.ElasticsearchURL != "" {
		in.search, err = connect(log, "elasticsearch", func() (utils.ElasticsearchClient, error) {
			return utils.NewElasticsearchClient(cfg.ElasticsearchURL)
		})
		if err != nil {
			log.Warn("running without search index", "error", err)
			in.search = nil
		}
	}

	if cfg.SentryDSN != "" {
		flush, err := utils.InitSentry(cfg.SentryDSN, cfg.AppEnv, cfg.AppVersion, cfg.SentryTraceSampleRate)
		if err != nil {
			log.Warn("sentry disabled", "error", err)
		} else {
			in.flush = flush
		}
	}

	return in, nil
}

// buildServices builds the service layer. Absent backends are passed as untyped
// nils so the services see a nil interface.
func (in *infra) buildServices() *services.Services {
	opts := services.Options{
		DB:                in.db,
		Logger:            in.log,
		Tokens:            utils.NewTokenIssuer(in.cfg.JWTSecret, in.cfg.JWTTTL),
		PractitionerIndex: in.cfg.PractitionerIndex,
		CacheTTL:          in.cfg.CacheTTL,
		InvitationTTL:     in.cfg.InvitationTTL,
	}
	if in.redis != nil {
		opts.Cache = in.redis
	}
	if in.producer != nil {
		opts.Events = services.NewKafkaPublisher(in.producer, in.cfg.KafkaTopic)
	}
	if in.search != nil {
		opts.Search = in.search
	}
	return services.New(opts)
}

func (in *infra) Close() {
	if in.producer != nil {
		if err := in.producer.Close(); err != nil {
			in.log.Warn("error closing kafka producer", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.log.Warn("error closing redis", "error", err)
		}
	}
	if in.search != nil {
		_ = in.search.Close()
	}
	if err := models.CloseDatabase(in.db); err != nil {
		in.log.Warn("error closing database", "error", err)
	}
	in.flush()
}

// withTimeout is used by the one-shot commands.
func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
