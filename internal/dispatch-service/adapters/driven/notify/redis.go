package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"haul-dispatch/internal/config"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "haul:feed:"

var _ ports.IFeedNotifier = (*RedisNotifier)(nil)

// RedisNotifier wakes local long-poll readers when any instance appends to
// their channel. One pattern subscription per process fans out to all local
// waiters.
type RedisNotifier struct {
	client *redis.Client
	mylog  mylogger.Logger

	mu      sync.Mutex
	waiters map[string]map[chan struct{}]struct{}
}

func NewRedisNotifier(ctx context.Context, cfg *config.Redisconfig, mylog mylogger.Logger) (*RedisNotifier, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis: address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	n := newNotifier(client, mylog)
	go n.listen(ctx)
	return n, nil
}

func newNotifier(client *redis.Client, mylog mylogger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		mylog:   mylog,
		waiters: map[string]map[chan struct{}]struct{}{},
	}
}

func (n *RedisNotifier) Notify(ctx context.Context, channel string, seq int64) error {
	return n.client.Publish(ctx, keyPrefix+channel, seq).Err()
}

func (n *RedisNotifier) Subscribe(_ context.Context, channel string) (<-chan struct{}, func(), error) {
	c := make(chan struct{}, 1)

	n.mu.Lock()
	set, ok := n.waiters[channel]
	if !ok {
		set = map[chan struct{}]struct{}{}
		n.waiters[channel] = set
	}
	set[c] = struct{}{}
	n.mu.Unlock()

	stop := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.waiters[channel], c)
		if len(n.waiters[channel]) == 0 {
			delete(n.waiters, channel)
		}
	}
	return c, stop, nil
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

func (n *RedisNotifier) listen(ctx context.Context) {
	log := n.mylog.Action("FeedNotifier")

	ps := n.client.PSubscribe(ctx, keyPrefix+"*")
	defer ps.Close()
	log.Info("listening for feed appends")

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Warn("redis subscription closed")
				return
			}
			n.wake(strings.TrimPrefix(msg.Channel, keyPrefix))
		}
	}
}

// wake never blocks: a waiter that already has a pending signal keeps just one.
func (n *RedisNotifier) wake(channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for c := range n.waiters[channel] {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}
