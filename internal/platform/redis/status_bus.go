// Package redis fans campaign status transitions out over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/creatives-backend/internal/domain/campaign"
	"github.com/yungbote/creatives-backend/internal/platform/logger"
)

const DefaultChannel = "campaign-status"

type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type StatusBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewStatusBus(ctx context.Context, log *logger.Logger, cfg Config) (*StatusBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(cfg.Channel)
	if ch == "" {
		ch = DefaultChannel
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &StatusBus{
		log:     log.With("service", "RedisStatusBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *StatusBus) Channel() string { return b.channel }

func (b *StatusBus) PublishStatus(ctx context.Context, change campaign.StatusChange) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis status bus not initialized")
	}
	raw, err := encodeChange(change)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe delivers every change published on the channel until ctx ends.
func (b *StatusBus) Subscribe(ctx context.Context, onChange func(campaign.StatusChange)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis status bus not initialized")
	}
	if onChange == nil {
		return fmt.Errorf("onChange callback required")
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
				change, err := decodeChange(m.Payload)
				if err != nil {
					b.log.Warn("bad redis status payload", "error", err)
					continue
				}
				onChange(change)
			}
		}
	}()
	return nil
}

func (b *StatusBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}

func encodeChange(c campaign.StatusChange) ([]byte, error) {
	if strings.TrimSpace(c.CampaignID) == "" {
		return nil, fmt.Errorf("status change missing campaign id")
	}
	return json.Marshal(c)
}

func decodeChange(payload string) (campaign.StatusChange, error) {
	var c campaign.StatusChange
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, err
	}
	if !c.Status.Valid() {
		return c, fmt.Errorf("unknown status %q", c.Status)
	}
	return c, nil
}
