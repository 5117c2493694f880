// Package orgconfig resolves an organization's send configuration.
package orgconfig

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/models"
)

// ErrNoConfig means no configuration exists for the org at any level of the
// fallback chain.
var ErrNoConfig = errors.New("no send configuration for organization")

// Provider resolves the send configuration for an org.
type Provider interface {
	Resolve(ctx context.Context, orgID uuid.UUID) (models.SendConfig, error)
}

// Static always returns the same process-wide configuration.
type Static struct {
	config models.SendConfig
}

func NewStatic(cfg models.SendConfig) *Static {
	return &Static{config: cfg}
}

func (s *Static) Resolve(_ context.Context, orgID uuid.UUID) (models.SendConfig, error) {
	cfg := s.config
	cfg.OrgID = orgID
	return cfg, nil
}

// Chain tries each provider in order and returns the first configuration
// found. Providers signal a miss with ErrNoConfig; any other error stops the
// chain.
type Chain struct {
	providers []Provider
}

// NewChain builds the fallback chain, skipping nil providers.
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

func (c *Chain) Resolve(ctx context.Context, orgID uuid.UUID) (models.SendConfig, error) {
	for _, p := range c.providers {
		cfg, err := p.Resolve(ctx, orgID)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, ErrNoConfig) {
			return models.SendConfig{}, err
		}
	}
	return models.SendConfig{}, ErrNoConfig
}

// TickCache memoizes resolutions for the lifetime of one tick.
type TickCache struct {
	provider Provider

	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
}

type cacheEntry struct {
	config models.SendConfig
	err    error
}

func NewTickCache(p Provider) *TickCache {
	return &TickCache{provider: p, entries: make(map[uuid.UUID]cacheEntry)}
}

// Resolve caches hits and ErrNoConfig misses; other errors are retried on
// the next call.
func (c *TickCache) Resolve(ctx context.Context, orgID uuid.UUID) (models.SendConfig, error) {
	c.mu.Lock()
	if e, ok := c.entries[orgID]; ok {
		c.mu.Unlock()
		return e.config, e.err
	}
	c.mu.Unlock()

	cfg, err := c.provider.Resolve(ctx, orgID)
	if err != nil && !errors.Is(err, ErrNoConfig) {
		return cfg, err
	}

	c.mu.Lock()
	c.entries[orgID] = cacheEntry{config: cfg, err: err}
	c.mu.Unlock()
	return cfg, err
}
