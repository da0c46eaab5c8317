package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"thirdcoast.systems/scribe/internal/artifacts"
	"thirdcoast.systems/scribe/internal/config"
	"thirdcoast.systems/scribe/internal/db"
	"thirdcoast.systems/scribe/internal/queue"
	"thirdcoast.systems/scribe/internal/queue/pgqueue"
	"thirdcoast.systems/scribe/internal/queue/sqsqueue"
	"thirdcoast.systems/scribe/internal/results"
	"thirdcoast.systems/scribe/internal/units"
	"thirdcoast.systems/scribe/internal/units/pgstore"
	"thirdcoast.systems/scribe/internal/units/redisstore"
)

// Backends bundles the shared stores every binary talks to, chosen by configuration.
type Backends struct {
	DB        *db.DatabaseConnection
	Units     units.Store
	Queue     queue.Queue
	Artifacts artifacts.Store
	Results   *results.Store

	pgQueue *pgqueue.Queue
	closers []func()
}

// Open connects to Postgres and whichever job store, queue and artifact backends conf selects.
func Open(ctx context.Context, conf config.Config) (*Backends, error) {
	b := &Backends{}

	pool, err := OpenDBPoolWithRetry(ctx, conf)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, pool.Close)

	b.DB, err = db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Results = results.New(b.DB)

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			c, err := LoadAWSConfig(ctx, conf)
			if err != nil {
				return aws.Config{}, err
			}
			awsCfg = &c
		}
		return *awsCfg, nil
	}

	switch conf.JobStoreBackend {
	case "redis":
		rdb, err := OpenRedisWithRetry(ctx, conf)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.Units = redisstore.New(rdb, conf.RedisKeyPrefix)
	case "memory":
		b.Units = units.NewMemoryStore()
	default:
		b.Units = pgstore.New(b.DB)
	}

	switch conf.QueueBackend {
	case "sqs":
		c, err := loadAWS()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Queue = sqsqueue.New(NewSQSClient(c, conf), map[string]string{
			queue.TopicWork:     conf.SQSWorkQueueURL,
			queue.TopicSegments: conf.SQSSegmentQueueURL,
		})
	case "memory":
		b.Queue = queue.NewMemory()
	default:
		b.pgQueue = pgqueue.New(b.DB)
		b.Queue = b.pgQueue
	}

	switch conf.ArtifactBackend {
	case "s3":
		c, err := loadAWS()
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Artifacts = artifacts.NewS3(NewS3Client(c, conf), conf.S3Bucket, conf.S3Prefix)
	default:
		b.Artifacts = artifacts.NewLocal(conf.ArtifactDir)
	}

	slog.Info("backends ready",
		"jobstore", conf.JobStoreBackend,
		"queue", conf.QueueBackend,
		"artifacts", conf.ArtifactBackend)
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// StartQueueMaintenance wakes idle consumers on new rows and dead-letters exhausted
// messages. Only the Postgres queue needs it; SQS handles both itself.
func (b *Backends) StartQueueMaintenance(ctx context.Context, conf config.Config) {
	if b.pgQueue == nil {
		return
	}
	b.pgQueue.Listen(ctx, conf.DatabaseDSN)
	go b.pgQueue.Reap(ctx, conf.QueueMaxAttempts, time.Minute)

	for _, topic := range []string{queue.TopicWork, queue.TopicSegments} {
		n, err := b.pgQueue.Pending(ctx, topic)
		if err != nil {
			slog.Warn("failed to count pending messages", "topic", topic, "error", err)
			continue
		}
		slog.Info("queue backlog", "topic", topic, "pending", n)
	}
}

// RequireShared rejects backends that cannot be shared between separate processes.
func RequireShared(conf config.Config) error {
	if conf.JobStoreBackend == "memory" || conf.QueueBackend == "memory" {
		return fmt.Errorf("memory backends only work when every stage runs in one process; set JOBSTORE_BACKEND and QUEUE_BACKEND")
	}
	return nil
}
