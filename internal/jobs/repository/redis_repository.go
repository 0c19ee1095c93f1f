package repository

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/models"
)

type jobRedisRepo struct {
	redisClient *redis.Client
	cfg         *config.Config
}

func NewJobRedisRepo(redisClient *redis.Client, cfg *config.Config) jobs.RecordRepository {
	return &jobRedisRepo{
		redisClient: redisClient,
		cfg:         cfg,
	}
}

func (r *jobRedisRepo) recordKey(jobID string) string {
	return r.cfg.Redis.RecordPrefix + jobID
}

func (r *jobRedisRepo) deliveredKey(jobID string) string {
	return r.cfg.Redis.RecordPrefix + "delivered:" + jobID
}

// SaveTerminal writes the terminal snapshot before any delivery callback can
// observe it, so a crash between the two cannot lose the record.
func (r *jobRedisRepo) SaveTerminal(ctx context.Context, job models.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "marshal job record")
	}

	pipe := r.redisClient.Pipeline()
	pipe.HSet(ctx, r.recordKey(job.JobID), "status", string(job.Status), "record", string(data))
	pipe.Expire(ctx, r.recordKey(job.JobID), r.cfg.Redis.RecordTTL)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "save terminal record")
	}
	return nil
}

func (r *jobRedisRepo) MarkDelivered(ctx context.Context, jobID string) (bool, error) {
	claimed, err := r.redisClient.SetNX(ctx, r.deliveredKey(jobID), 1, r.cfg.Redis.RecordTTL).Result()
	if err != nil {
		return false, errors.Wrap(err, "mark delivered")
	}
	return claimed, nil
}

func (r *jobRedisRepo) GetStatus(ctx context.Context, jobID string) (models.JobStatus, error) {
	status, err := r.redisClient.HGet(ctx, r.recordKey(jobID), "status").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errors.Wrap(jobs.ErrNotFound, jobID)
		}
		return "", errors.Wrap(err, "get job status")
	}
	return models.JobStatus(status), nil
}
