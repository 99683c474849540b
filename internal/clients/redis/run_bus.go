package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vigilhq/recallwatch-backend/internal/events"
	"github.com/vigilhq/recallwatch-backend/internal/pkg/logger"
)

// RunBus fans investigation lifecycle events out over a redis pub/sub
// channel so reviewer UIs can follow runs live.
type RunBus interface {
	events.Publisher
	StartForwarder(ctx context.Context, onEvent func(ev events.RunEvent)) error
	Close() error
}

type runBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRunBus connects to REDIS_ADDR and verifies the connection. Callers
// treat a missing REDIS_ADDR as "no bus" and fall back to a no-op
// publisher.
func NewRunBus(log *logger.Logger) (RunBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_RUN_CHANNEL"))
	if ch == "" {
		ch = "investigation_runs"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &runBus{
		log:     log.With("service", "RedisRunBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *runBus) PublishRunEvent(ctx context.Context, ev events.RunEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("run bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *runBus) StartForwarder(ctx context.Context, onEvent func(ev events.RunEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("run bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev events.RunEvent
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad run event payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

func (b *runBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
