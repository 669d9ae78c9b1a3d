package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publica eventos do feed no canal Pub/Sub, de onde cada
// instância do pool-service os repassa aos seus clientes WebSocket.
type RedisBroadcaster struct {
	r *redis.Client
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, upd FeedUpdate) error {
	payload, err := json.Marshal(upd)
	if err != nil {
		return err
	}
	return b.r.Publish(ctx, PubSubChannel, payload).Err()
}
