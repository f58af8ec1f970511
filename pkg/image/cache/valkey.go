package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valkey-io/valkey-go"
)

const DefaultTimeout = time.Second

var (
	// ErrMiss is returned by Get when the store holds no value for the key.
	ErrMiss = errors.New("cache miss")

	// ErrUnavailable wraps every failure to talk to the store.
	ErrUnavailable = errors.New("cache unavailable")
)

type Config struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	Timeout   time.Duration
}

type clientHolder struct {
	client valkey.Client
}

// ValkeyCache stores image bytes in a Redis-compatible store.
//
// The underlying valkey.Client pipelines concurrent commands over shared
// connections, so operations are not serialised. The client is dialled on first
// use; until that succeeds every operation fails with ErrUnavailable and the next
// one dials again.
type ValkeyCache struct {
	opts    valkey.ClientOption
	prefix  string
	ttl     time.Duration
	timeout time.Duration

	dial func(valkey.ClientOption) (valkey.Client, error)

	mu     sync.Mutex
	holder atomic.Pointer[clientHolder]
	closed bool
}

func NewValkeyCache(cfg Config) *ValkeyCache {
	opts := valkey.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &ValkeyCache{
		opts:    opts,
		prefix:  prefix,
		ttl:     cfg.TTL,
		timeout: timeout,
		dial:    valkey.NewClient,
	}
}

func (c *ValkeyCache) Key(key string) string {
	return c.prefix + key
}

func (c *ValkeyCache) client() (valkey.Client, error) {
	if h := c.holder.Load(); h != nil {
		return h.client, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("%w: client closed", ErrUnavailable)
	}

	if h := c.holder.Load(); h != nil {
		return h.client, nil
	}

	client, err := c.dial(c.opts)
	if err != nil {
		return nil, fmt.Errorf("%w: could not connect to %v: %v", ErrUnavailable, c.opts.InitAddress, err)
	}

	c.holder.Store(&clientHolder{client: client})

	return client, nil
}

// Get returns the bytes stored under key, or ErrMiss.
func (c *ValkeyCache) Get(ctx context.Context, key string) ([]byte, error) {
	client, err := c.client()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := client.Do(ctx, client.B().Get().Key(c.Key(key)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrMiss
		}

		return nil, fmt.Errorf("%w: GET %s: %v", ErrUnavailable, key, err)
	}

	return data, nil
}

// Set stores data under key, replacing any previous value.
func (c *ValkeyCache) Set(ctx context.Context, key string, data []byte) error {
	client, err := c.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	set := client.B().Set().Key(c.Key(key)).Value(valkey.BinaryString(data))

	if c.ttl > 0 {
		err = client.Do(ctx, set.Ex(c.ttl).Build()).Error()
	} else {
		err = client.Do(ctx, set.Build()).Error()
	}

	if err != nil {
		return fmt.Errorf("%w: SET %s: %v", ErrUnavailable, key, err)
	}

	return nil
}

func (c *ValkeyCache) Ping(ctx context.Context) error {
	client, err := c.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: PING: %v", ErrUnavailable, err)
	}

	return nil
}

func (c *ValkeyCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	if h := c.holder.Swap(nil); h != nil {
		h.client.Close()
	}
}
