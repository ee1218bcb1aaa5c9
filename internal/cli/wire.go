package cli

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jacentio/livewall/broadcast"
	"github.com/jacentio/livewall/gateway"
	"github.com/jacentio/livewall/internal/config"
	"github.com/jacentio/livewall/service"
	"github.com/jacentio/livewall/store"
	"github.com/jacentio/livewall/store/sqlstore"
)

// app is the fully wired server.
type app struct {
	service *service.Service
	linker  gateway.Linker

	broadcaster *broadcast.Broadcaster
	relay       *broadcast.RedisRelay
	redis       *redis.Client

	closers []func() error
}

func (a *app) Close() error {
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// loadAWS loads the default credential chain with the configured region.
func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

func endpoint(cfg *config.Config) *string {
	if cfg.AWS.Endpoint == "" {
		return nil
	}
	return aws.String(cfg.AWS.Endpoint)
}

func newDynamoClient(awsCfg aws.Config, cfg *config.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = endpoint(cfg)
	})
}

func storeConfig(cfg *config.Config) store.Config {
	sc := store.DefaultConfig()
	sc.TablePrefix = cfg.Store.TablePrefix
	return sc
}

// openBackend opens the configured entity store.
func openBackend(cfg *config.Config, awsCfg aws.Config, log *zap.SugaredLogger) (store.Backend, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.Warnw("using in-memory store; data is lost on restart")
		return store.NewMemory(), noop, nil
	case config.BackendDynamoDB:
		return store.NewDynamo(newDynamoClient(awsCfg, cfg), storeConfig(cfg)), noop, nil
	}

	var dialector gorm.Dialector
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		dialector = postgres.Open(cfg.Store.DSN)
	case config.BackendSQLite:
		dialector = sqlite.Open(cfg.Store.DSN)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Store.Backend, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.Store.Backend, err)
	}
	backend, err := sqlstore.New(gdb)
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return backend, sqlDB.Close, nil
}

// newBlobs returns the blob store and, for S3, a linker for direct downloads.
func newBlobs(cfg *config.Config, awsCfg aws.Config) (gateway.BlobStore, gateway.Linker) {
	if cfg.Blobs.Backend != "s3" {
		return gateway.NewMemoryBlobs(), nil
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if ep := endpoint(cfg); ep != nil {
			o.BaseEndpoint = ep
			o.UsePathStyle = true
		}
	})
	blobs := gateway.NewS3Blobs(client, s3.NewPresignClient(client), gateway.S3Config{
		Bucket:     cfg.Blobs.Bucket,
		Prefix:     cfg.Blobs.Prefix,
		PublicURL:  cfg.Blobs.PublicURL,
		LinkExpiry: cfg.Blobs.LinkExpiry,
	})
	return blobs, blobs
}

func newNotifier(cfg *config.Config, awsCfg aws.Config, log *zap.SugaredLogger) gateway.Notifier {
	if cfg.Email.Backend != "ses" {
		return gateway.NewLogNotifier(log)
	}
	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		o.BaseEndpoint = endpoint(cfg)
	})
	return gateway.NewSESNotifier(client, cfg.Email.Sender)
}

func newModerator(cfg *config.Config, awsCfg aws.Config, log *zap.SugaredLogger) gateway.Moderator {
	if !cfg.Moderation.Enabled {
		return gateway.AllowAll{}
	}
	client := rekognition.NewFromConfig(awsCfg, func(o *rekognition.Options) {
		o.BaseEndpoint = endpoint(cfg)
	})
	return gateway.NewRekognitionModerator(client, cfg.Moderation.MinConfidence, log)
}

// buildApp wires every component named by cfg. The caller must Close the
// result. When a Redis address is configured the relay is created but not
// started; serve runs it.
func buildApp(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*app, error) {
	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		var err error
		if awsCfg, err = loadAWS(ctx, cfg); err != nil {
			return nil, err
		}
	}

	a := &app{}
	backend, closeBackend, err := openBackend(cfg, awsCfg, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeBackend)

	blobs, linker := newBlobs(cfg, awsCfg)
	a.linker = linker

	a.broadcaster = broadcast.New(cfg.Events.BufferSize, log)
	var events service.Events = a.broadcaster
	if cfg.Events.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Events.RedisAddr,
			Password: cfg.Events.RedisPassword,
			DB:       cfg.Events.RedisDB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			_ = a.redis.Close()
			_ = a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, a.redis.Close)
		a.relay = broadcast.NewRedisRelay(a.redis, cfg.Events.RedisChannel, a.broadcaster, log)
		events = a.relay
	}

	a.service = service.New(backend, service.Deps{
		Blobs:     blobs,
		Notifier:  newNotifier(cfg, awsCfg, log),
		Moderator: newModerator(cfg, awsCfg, log),
		Events:    events,
	}, service.Config{
		BaseURL:          cfg.Server.BaseURL,
		PaymentDedupeTTL: cfg.Payments.DedupeTTL,
		MaxImageBytes:    cfg.Server.MaxImageBytes,
	}, log)

	return a, nil
}
