package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/shopping-cart/internal/lock"
	"github.com/noah-isme/shopping-cart/internal/obs"
	"github.com/noah-isme/shopping-cart/internal/tenant"
)

const defaultKeyPrefix = "cart"

// StoreOptions configures a Store. Zero values select defaults: prefix
// "cart", no expiry, a 5s lock TTL and no logging.
type StoreOptions struct {
	Prefix    string
	TTL       time.Duration
	LockTTL   time.Duration
	LockRetry time.Duration
	Logger    *zerolog.Logger
	Metrics   *obs.CartStoreMetrics
	Now       func() time.Time
}

// Store persists carts in Redis as JSON documents keyed by tenant,
// instance and cart identifier.
type Store struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
	locker  lock.Locker
	logger  zerolog.Logger
	metrics *obs.CartStoreMetrics
	now     func() time.Time
}

type storedCart struct {
	Instance string     `json:"instance"`
	Items    []LineItem `json:"items"`
	SavedAt  time.Time  `json:"saved_at"`
}

// NewStore constructs a Redis cart store.
func NewStore(client *redis.Client, opts StoreOptions) *Store {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Store{
		client:  client,
		prefix:  prefix,
		ttl:     opts.TTL,
		lockTTL: lockTTL,
		locker:  lock.Locker{Client: client, RetryBackoff: opts.LockRetry, Logger: &logger},
		logger:  logger,
		metrics: opts.Metrics,
		now:     now,
	}
}

// Key returns the Redis key holding the cart.
func (s *Store) Key(ctx context.Context, identifier, instance string) string {
	return tenant.KeyFor(ctx, s.prefix+":"+normaliseInstance(instance)+":"+identifier)
}

// Save writes the cart under identifier, replacing any stored version.
func (s *Store) Save(ctx context.Context, identifier string, c *Cart) (err error) {
	if c == nil {
		return fmt.Errorf("save cart: %w", ErrInvalidInput)
	}
	if err := s.check(identifier); err != nil {
		return err
	}
	ctx, done := s.track(ctx, "save", identifier, c.Instance())
	defer func() { done(err) }()
	return s.save(ctx, s.Key(ctx, identifier, c.Instance()), c)
}

// Load reads the cart stored under identifier. ErrCartNotFound is returned
// when nothing is stored.
func (s *Store) Load(ctx context.Context, identifier, instance string) (c *Cart, err error) {
	if err := s.check(identifier); err != nil {
		return nil, err
	}
	ctx, done := s.track(ctx, "load", identifier, instance)
	defer func() { done(err) }()
	return s.load(ctx, s.Key(ctx, identifier, instance), instance)
}

// Delete removes the stored cart. Deleting a missing cart is not an error.
func (s *Store) Delete(ctx context.Context, identifier, instance string) (err error) {
	if err := s.check(identifier); err != nil {
		return err
	}
	ctx, done := s.track(ctx, "delete", identifier, instance)
	defer func() { done(err) }()
	if err := s.client.Del(ctx, s.Key(ctx, identifier, instance)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// Update loads the cart (an empty one when nothing is stored), applies fn
// and saves the result while holding the cart's lock. When fn fails nothing
// is written and its error is returned.
func (s *Store) Update(ctx context.Context, identifier, instance string, fn func(*Cart) error) (c *Cart, err error) {
	if err := s.check(identifier); err != nil {
		return nil, err
	}
	ctx, done := s.track(ctx, "update", identifier, instance)
	defer func() { done(err) }()
	if fn == nil {
		return nil, fmt.Errorf("update cart: callback not provided: %w", ErrInvalidInput)
	}
	key := s.Key(ctx, identifier, instance)
	err = s.locker.WithLock(ctx, "lock:"+key, s.lockTTL, func(ctx context.Context) error {
		current, err := s.load(ctx, key, instance)
		if errors.Is(err, ErrCartNotFound) {
			current = NewCart(instance)
		} else if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		if err := s.save(ctx, key, current); err != nil {
			return err
		}
		c = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) check(identifier string) error {
	if s == nil || s.client == nil {
		return errors.New("cart store: redis client not configured")
	}
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("cart identifier required: %w", ErrInvalidInput)
	}
	return nil
}

func (s *Store) save(ctx context.Context, key string, c *Cart) error {
	data, err := json.Marshal(storedCart{
		Instance: c.Instance(),
		Items:    c.Items(),
		SavedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, key, instance string) (*Cart, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var payload storedCart
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c := NewCart(instance)
	for _, item := range payload.Items {
		c.Put(item)
	}
	return c, nil
}

// track opens a span and returns a completion func that records the
// outcome in the span, the metrics and the log.
func (s *Store) track(ctx context.Context, op, identifier, instance string) (context.Context, func(error)) {
	ctx, span := otel.Tracer("cart.Store").Start(ctx, "CartStore."+op)
	span.SetAttributes(
		attribute.String("cart.identifier", identifier),
		attribute.String("cart.instance", normaliseInstance(instance)),
	)
	start := time.Now()
	return ctx, func(err error) {
		defer span.End()
		result := obs.ResultOK
		switch {
		case err == nil:
		case errors.Is(err, ErrCartNotFound):
			result = obs.ResultMiss
		default:
			result = obs.ResultError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Error().Err(err).
				Str("op", op).
				Str("cart_id", identifier).
				Str("instance", normaliseInstance(instance)).
				Msg("cart store operation failed")
		}
		s.metrics.Observe(op, result, time.Since(start))
	}
}

func normaliseInstance(instance string) string {
	instance = strings.TrimSpace(instance)
	if instance == "" {
		return DefaultInstance
	}
	return instance
}
