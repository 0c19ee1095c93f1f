package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/models"
	"github.com/amankumarsingh77/transcodebot/internal/platform"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

const popTimeout = 5 * time.Second

// OutboundMessage is what the platform frontend pops and relays to the chat.
type OutboundMessage struct {
	Conversation string         `json:"conversation"`
	Type         string         `json:"type"` // "media" or "status"
	Text         string         `json:"text,omitempty"`
	Caption      string         `json:"caption,omitempty"`
	Result       *models.Result `json:"result,omitempty"`
}

// redisBridge connects the pipeline to the platform frontend over two redis
// lists: the frontend LPUSHes inbound requests and pops outbound messages.
type redisBridge struct {
	redisClient *redis.Client
	cfg         *config.Config
	logger      logger.Logger
}

func NewRedisBridge(redisClient *redis.Client, cfg *config.Config, logger logger.Logger) platform.Client {
	return &redisBridge{
		redisClient: redisClient,
		cfg:         cfg,
		logger:      logger,
	}
}

func (b *redisBridge) Requests(ctx context.Context) (<-chan models.JobRequest, error) {
	out := make(chan models.JobRequest)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			res, err := b.redisClient.BRPop(ctx, popTimeout, b.cfg.Redis.RequestsKey).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				b.logger.Errorf("platform: pop request: %v", err)
				time.Sleep(time.Second)
				continue
			}
			if len(res) < 2 {
				continue
			}
			var req models.JobRequest
			if err := json.Unmarshal([]byte(res[1]), &req); err != nil {
				b.logger.Errorf("platform: unmarshal request: %v", err)
				continue
			}
			select {
			case out <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (b *redisBridge) SendMedia(ctx context.Context, conversation string, result models.Result, caption string) error {
	return b.push(ctx, &OutboundMessage{
		Conversation: conversation,
		Type:         "media",
		Caption:      caption,
		Result:       &result,
	})
}

func (b *redisBridge) SendStatus(ctx context.Context, conversation string, text string) error {
	return b.push(ctx, &OutboundMessage{
		Conversation: conversation,
		Type:         "status",
		Text:         text,
	})
}

func (b *redisBridge) push(ctx context.Context, msg *OutboundMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return &platform.Error{Op: "marshal outbound", Temporary: false, Err: err}
	}
	if err := b.redisClient.RPush(ctx, b.cfg.Redis.OutboundKey, data).Err(); err != nil {
		// Transport hiccups are worth a retry.
		return &platform.Error{Op: "push outbound", Temporary: true, Err: err}
	}
	return nil
}
