// Package redis announces finished sessions on Redis. Every event is a
// PUBLISH on a pub/sub channel; with a stream configured it is also
// appended via XADD so consumers that were offline can catch up.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/hbframe/adapter"
)

const (
	DefaultChannel      = "hbframe:session_completed"
	DefaultTimeout      = 5 * time.Second
	DefaultRetries      = 3
	DefaultStreamMaxLen = 10_000
)

// Config configures the Redis adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db]. Required.
	URL     string
	Channel string
	// PerLink publishes on <channel>:<detector>:<link>.
	PerLink bool
	// Stream, when set, also receives every event as a stream entry with
	// fields event, session_id, link and outcome.
	Stream string
	// StreamMaxLen caps the stream length. Zero selects
	// DefaultStreamMaxLen.
	StreamMaxLen int64
	// Timeout bounds one attempt.
	Timeout time.Duration
	Retries int
}

// Adapter implements adapter.Adapter over one go-redis client.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New validates cfg and connects lazily; no command is sent until Publish.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	cfg.Channel = cmp.Or(cfg.Channel, DefaultChannel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StreamMaxLen <= 0 {
		cfg.StreamMaxLen = DefaultStreamMaxLen
	}
	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Channel returns the pub/sub channel for event.
func (a *Adapter) Channel(event *adapter.SessionCompletedEvent) string {
	if a.config.PerLink {
		return fmt.Sprintf("%s:%s:%s", a.config.Channel, event.Detector, event.Link)
	}
	return a.config.Channel
}

// Publish sends event as JSON. PUBLISH and the optional XADD go out in one
// pipeline per attempt.
func (a *Adapter) Publish(ctx context.Context, event *adapter.SessionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := a.Channel(event)

	err = adapter.Retry(ctx, a.config.Retries, nil, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		_, err := a.client.Pipelined(ctx, func(p goredis.Pipeliner) error {
			p.Publish(ctx, channel, body)
			if a.config.Stream != "" {
				p.XAdd(ctx, a.streamArgs(event, body))
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *Adapter) streamArgs(event *adapter.SessionCompletedEvent, body []byte) *goredis.XAddArgs {
	return &goredis.XAddArgs{
		Stream: a.config.Stream,
		MaxLen: a.config.StreamMaxLen,
		Values: map[string]any{
			"event":      string(body),
			"session_id": event.SessionID,
			"link":       event.Link,
			"outcome":    event.Outcome,
		},
	}
}

// Close closes the client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
