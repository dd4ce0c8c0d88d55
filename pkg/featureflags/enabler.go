package featureflags

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Yiling-J/theine-go"
	"github.com/cespare/xxhash/v2"

	"github.com/openfga/scientist/pkg/experiment"
)

// DefaultFlagPrefix is prepended to the experiment name to form its flag name.
const DefaultFlagPrefix = "experiment."

var ErrInvalidPercent = errors.New("sampling percent must be between 0 and 100")

type samplingKey struct{}

// WithSamplingKey attaches the key used to sample experiments deterministically,
// for example a user or a store ID. Requests that share a key always get the
// same decision from a PercentEnabler.
func WithSamplingKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, samplingKey{}, key)
}

func SamplingKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(samplingKey{}).(string)
	return key, ok && key != ""
}

// FlagEnabler enables an experiment when the flag named after it is on.
type FlagEnabler struct {
	client Client
	prefix string
}

var _ experiment.Enabler = (*FlagEnabler)(nil)

type FlagEnablerOpt func(*FlagEnabler)

func WithFlagPrefix(prefix string) FlagEnablerOpt {
	return func(f *FlagEnabler) {
		f.prefix = prefix
	}
}

func NewFlagEnabler(client Client, opts ...FlagEnablerOpt) *FlagEnabler {
	f := &FlagEnabler{client: client, prefix: DefaultFlagPrefix}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FlagEnabler) Enabled(ctx context.Context, name string) (bool, error) {
	featureCtx := map[string]any{"experiment": name}
	if key, ok := SamplingKeyFromContext(ctx); ok {
		featureCtx["sampling_key"] = key
	}
	return f.client.Boolean(f.prefix+name, false, featureCtx), nil
}

// PercentEnabler runs a percentage of experiment invocations. With a sampling
// key in the context the decision is a hash of the experiment name and the
// key; without one it is random.
type PercentEnabler struct {
	// basis points, 0..10000
	threshold uint64
	shuffler  *experiment.Shuffler
}

var _ experiment.Enabler = (*PercentEnabler)(nil)

func NewPercentEnabler(percent float64) (*PercentEnabler, error) {
	return NewPercentEnablerWithShuffler(percent, experiment.DefaultShuffler())
}

func NewPercentEnablerWithShuffler(percent float64, shuffler *experiment.Shuffler) (*PercentEnabler, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidPercent, percent)
	}
	return &PercentEnabler{
		threshold: uint64(math.Round(percent * 100)),
		shuffler:  shuffler,
	}, nil
}

func (p *PercentEnabler) Enabled(ctx context.Context, name string) (bool, error) {
	switch p.threshold {
	case 0:
		return false, nil
	case 10000:
		return true, nil
	}

	if key, ok := SamplingKeyFromContext(ctx); ok {
		hasher := xxhash.New()
		_, _ = hasher.WriteString(name)
		_, _ = hasher.WriteString("/")
		_, _ = hasher.WriteString(key)
		return hasher.Sum64()%10000 < p.threshold, nil
	}

	return uint64(p.shuffler.Intn(10000)) < p.threshold, nil
}

const (
	defaultCacheSize = 10000
	defaultCacheTTL  = 10 * time.Second
)

// CachedEnabler remembers the decisions of another Enabler for a while.
// Decisions are keyed by experiment name and sampling key. Errors are never
// cached.
type CachedEnabler struct {
	delegate experiment.Enabler
	cache    *theine.Cache[string, bool]
	ttl      time.Duration
}

var _ experiment.Enabler = (*CachedEnabler)(nil)

type CachedEnablerOpt func(*cachedEnablerConfig)

type cachedEnablerConfig struct {
	size int64
	ttl  time.Duration
}

func WithCacheSize(size int64) CachedEnablerOpt {
	return func(c *cachedEnablerConfig) {
		c.size = size
	}
}

func WithCacheTTL(ttl time.Duration) CachedEnablerOpt {
	return func(c *cachedEnablerConfig) {
		c.ttl = ttl
	}
}

func NewCachedEnabler(delegate experiment.Enabler, opts ...CachedEnablerOpt) (*CachedEnabler, error) {
	cfg := cachedEnablerConfig{size: defaultCacheSize, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	cache, err := theine.NewBuilder[string, bool](cfg.size).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build enabler cache: %w", err)
	}

	return &CachedEnabler{
		delegate: delegate,
		cache:    cache,
		ttl:      cfg.ttl,
	}, nil
}

func (c *CachedEnabler) Enabled(ctx context.Context, name string) (bool, error) {
	cacheKey := name
	if key, ok := SamplingKeyFromContext(ctx); ok {
		cacheKey = name + "/" + key
	}

	if enabled, ok := c.cache.Get(cacheKey); ok {
		return enabled, nil
	}

	enabled, err := c.delegate.Enabled(ctx, name)
	if err != nil {
		return false, err
	}
	c.cache.SetWithTTL(cacheKey, enabled, 1, c.ttl)
	return enabled, nil
}

// Close releases the cache.
func (c *CachedEnabler) Close() {
	c.cache.Close()
}

type all []experiment.Enabler

// All enables an experiment only when every enabler does. It stops at the
// first enabler that says no or fails.
func All(enablers ...experiment.Enabler) experiment.Enabler {
	return all(enablers)
}

func (a all) Enabled(ctx context.Context, name string) (bool, error) {
	for _, e := range a {
		enabled, err := e.Enabled(ctx, name)
		if err != nil || !enabled {
			return false, err
		}
	}
	return true, nil
}
