package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"liaison/internal/models"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const channelPrefix = "liaison:notices:"

func Channel(relationshipID string) string {
	return channelPrefix + relationshipID
}

// RedisBroker publishes notices on a per-relationship channel so every
// API instance can relay them to its websocket clients.
type RedisBroker struct {
	client *goredis.Client
	log    *zap.Logger
}

var _ Broker = (*RedisBroker)(nil)

func NewRedisBroker(client *goredis.Client, log *zap.Logger) *RedisBroker {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBroker{client: client, log: log.Named("realtime")}
}

func (b *RedisBroker) PublishNotice(ctx context.Context, n models.Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notice %s: %w", n.ID, err)
	}
	return b.client.Publish(ctx, Channel(n.RelationshipID), payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context, relationshipID string) (<-chan models.Notice, func(), error) {
	ps := b.client.Subscribe(ctx, Channel(relationshipID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", relationshipID, err)
	}

	out := make(chan models.Notice, subscriberBuffer)
	var once sync.Once
	cancel := func() { once.Do(func() { _ = ps.Close() }) }

	go func() {
		defer close(out)
		defer cancel()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var n models.Notice
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					b.log.Warn("dropping undecodable notice", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- n:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
