package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/persistence"
)

const feedBuffer = 16

// Feed fans reservation changes out to live stream subscribers.
type Feed interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Subscription delivers feed events until closed. Slow readers miss events
// rather than block publishers; streams only use them as a nudge to re-read.
type Subscription struct {
	C     <-chan Event
	close func() error
	once  sync.Once
}

// Close stops delivery and releases the underlying resources.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() { err = s.close() })
	return err
}

// LocalFeed is a process-local Feed used when Redis is not configured.
type LocalFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewLocalFeed creates an empty feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[int]chan Event)}
}

func (f *LocalFeed) Publish(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (f *LocalFeed) Subscribe(_ context.Context) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan Event, feedBuffer)
	f.subs[id] = ch
	return &Subscription{C: ch, close: func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
		close(ch)
		return nil
	}}, nil
}

// RedisFeed shares the change feed between instances over Redis pub/sub.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisFeed publishes on "<prefix>reservations".
func NewRedisFeed(r *persistence.Redis, logger *zap.Logger) (*RedisFeed, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("redis client not configured")
	}
	return &RedisFeed{client: r.Client, channel: r.Key("reservations"), logger: logger}, nil
}

func (f *RedisFeed) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, payload).Err()
}

func (f *RedisFeed) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan Event, feedBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				f.logger.Warn("dropping malformed feed message", zap.Error(err))
				continue
			}
			select {
			case out <- event:
			default:
			}
		}
	}()

	return &Subscription{C: out, close: pubsub.Close}, nil
}
