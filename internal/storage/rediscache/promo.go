package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/promo"
)

const (
	maxNegativeTTL     = 30 * time.Second
	defaultLoadTimeout = 5 * time.Second
)

type store interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
}

// entry is the cached answer for one code. Unknown codes are cached too, for a shorter time.
type entry struct {
	Found  bool          `json:"found"`
	Record *promo.Record `json:"record,omitempty"`
}

type PromoConfig struct {
	L   *logger.Logger
	TTL time.Duration
	// LoadTimeout bounds a shared load of the underlying catalog. Zero means five seconds.
	LoadTimeout time.Duration
}

// PromoCatalog serves promo lookups from Redis and falls through to next on a miss. Concurrent
// misses for one code share a single call to next. Redis failures degrade to uncached lookups.
type PromoCatalog struct {
	l           *logger.Logger
	store       store
	next        promo.Catalog
	ttl         time.Duration
	loadTimeout time.Duration
	group       singleflight.Group
}

func NewPromoCatalog(conf PromoConfig, store store, next promo.Catalog) *PromoCatalog {
	loadTimeout := conf.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}

	//nolint:exhaustruct
	return &PromoCatalog{
		l:           conf.L,
		store:       store,
		next:        next,
		ttl:         conf.TTL,
		loadTimeout: loadTimeout,
	}
}

func promoKey(code string) string {
	return fmt.Sprintf("promo:%s", promo.Normalize(code))
}

func (p *PromoCatalog) negativeTTL() time.Duration {
	return min(p.ttl, maxNegativeTTL)
}

func (p *PromoCatalog) LookupPromo(ctx context.Context, code string) (*promo.Code, error) {
	key := promoKey(code)

	var cached entry

	err := p.store.GetJSON(ctx, key, &cached)
	if err == nil {
		return cached.code()
	}

	if !errors.Is(err, ErrMiss) {
		p.l.LogWarnf("Promo cache read %s failed: %v", key, err)
	}

	// The shared load belongs to no single caller: cancelling one waiter must not fail the others.
	ch := p.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
		defer cancel()

		return p.load(loadCtx, key, code)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("lookup promo %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err //nolint:wrapcheck
		}

		e, _ := res.Val.(entry)

		return e.code()
	}
}

func (p *PromoCatalog) load(ctx context.Context, key, code string) (entry, error) {
	c, err := p.next.LookupPromo(ctx, code)

	switch {
	case errors.Is(err, promo.ErrNotFound):
		e := entry{Found: false, Record: nil}
		p.put(ctx, key, e, p.negativeTTL())

		return e, nil
	case err != nil:
		return entry{}, err //nolint:wrapcheck
	}

	r := c.Record()
	e := entry{Found: true, Record: &r}
	p.put(ctx, key, e, p.ttl)

	return e, nil
}

func (p *PromoCatalog) put(ctx context.Context, key string, e entry, ttl time.Duration) {
	if err := p.store.SetJSON(ctx, key, e, ttl); err != nil {
		p.l.LogWarnf("Promo cache write %s failed: %v", key, err)
	}
}

// Invalidate drops the cached answer for code.
func (p *PromoCatalog) Invalidate(ctx context.Context, code string) error {
	return p.store.Delete(ctx, promoKey(code)) //nolint:wrapcheck
}

func (e entry) code() (*promo.Code, error) {
	if !e.Found || e.Record == nil {
		return nil, promo.ErrNotFound
	}

	c, err := e.Record.ToCode()
	if err != nil {
		return nil, fmt.Errorf("cached %w", err)
	}

	return &c, nil
}
