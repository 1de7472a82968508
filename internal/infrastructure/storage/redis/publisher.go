package redis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"tokentrader/internal/application/port"
	"tokentrader/internal/domain/model"
)

// Publisher pushes trade events to a Redis stream and a PubSub channel for
// dashboards and alerting. Losing an event never affects engine state; the
// caller logs and moves on.
type Publisher struct {
	rdb     *redis.Client
	stream  string
	channel string
}

func New(rdb *redis.Client, prefix, stream, channel string) *Publisher {
	if strings.TrimSpace(stream) == "" {
		stream = prefix + ":trades"
	}
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":trades:pub"
	}
	return &Publisher{rdb: rdb, stream: stream, channel: channel}
}

func (p *Publisher) PublishTradeEvent(ctx context.Context, ev *model.TradeEvent) error {
	// 1) Stream: XADD <stream> * type symbol ...
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":       ev.Type,
			"address":    ev.TokenAddress,
			"symbol":     ev.Symbol,
			"reason":     ev.Reason,
			"profit_pct": ev.ProfitPercent,
			"tier":       ev.Tier,
			"mode":       ev.Mode,
			"ts_ms":      ev.Ts,
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	b, _ := json.Marshal(ev)
	return p.rdb.Publish(ctx, p.channel, string(b)).Err()
}

var _ port.EventPublisher = (*Publisher)(nil)
