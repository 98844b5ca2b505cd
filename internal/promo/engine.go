package promo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avstrong/staybook/internal/logger"
)

type Catalog interface {
	// LookupPromo returns the record stored under an already normalized code, or ErrNotFound.
	LookupPromo(ctx context.Context, code string) (*Code, error)
}

type Engine struct {
	l       *logger.Logger
	catalog Catalog
	now     func() time.Time
}

func NewEngine(l *logger.Logger, catalog Catalog, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		l:       l,
		catalog: catalog,
		now:     now,
	}
}

// Lookup normalizes raw and fetches its rule record.
func (e *Engine) Lookup(ctx context.Context, raw string) (*Code, error) {
	code := Normalize(raw)
	if code == "" {
		return nil, fmt.Errorf("empty code: %w", ErrNotFound)
	}

	c, err := e.catalog.LookupPromo(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", code, ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("lookup promo %s: %w", code, err)
	}

	return c, nil
}

// Apply looks the code up and evaluates it against q. Calling it again with a different subtotal
// computes a fresh discount; nothing is cached between calls. When the lookup succeeds but a rule
// rejects the code, the returned Applied still carries the code with a zero discount.
func (e *Engine) Apply(ctx context.Context, raw string, q Quote) (Applied, error) {
	c, err := e.Lookup(ctx, raw)
	if err != nil {
		return Applied{}, err
	}

	applied, err := Evaluate(*c, q, e.now())
	if err != nil {
		e.l.LogDebugf("Promo %s rejected for subtotal %.2f: %v", c.Code, q.Subtotal, err)

		return Applied{Code: *c, Discount: 0, Subtotal: q.Subtotal}, err
	}

	return applied, nil
}
