package redis

import (
	"context"
	"encoding/json"
	"sync"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/repository"
)

type changeFeed struct {
	client *redislib.Client
	prefix string
	logger *zap.Logger
}

// NewChangeFeed creates a ChangeFeed on Redis Pub/Sub. Channel names are namespaced with prefix.
func NewChangeFeed(client *redislib.Client, prefix string, logger *zap.Logger) repository.ChangeFeed {
	if prefix == "" {
		prefix = "habits:realtime:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &changeFeed{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (f *changeFeed) Publish(ctx context.Context, event domain.ChangeEvent) error {
	if event.Channel == "" {
		event.Channel = domain.DocumentsChannel(event.Collection)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.key(event.Channel), payload).Err()
}

// Subscribe blocks until Redis confirms the subscription, then delivers events on a
// dedicated goroutine until the returned function is called.
func (f *changeFeed) Subscribe(ctx context.Context, channel string, handler repository.ChangeHandler) (func(), error) {
	pubsub := f.client.Subscribe(ctx, f.key(channel))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			var event domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handler(event)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				f.logger.Debug("pubsub close", zap.Error(err))
			}
			<-done
		})
	}, nil
}

func (f *changeFeed) key(channel string) string {
	return f.prefix + channel
}
