// Package census resolves county populations from the Census API or a
// pre-downloaded dataset.
package census

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/fetcher"
	"github.com/sells-group/locator-cli/internal/model"
)

// Resolver maps a (state, county) pair to a population. A miss is not an
// error: it resolves to the strategy's sentinel.
type Resolver interface {
	Population(ctx context.Context, state, county string) (model.Population, error)
}

// New builds the resolver selected by cfg.Strategy. The table strategy
// loads its dataset before returning.
func New(ctx context.Context, cfg config.CensusConfig, f fetcher.Fetcher) (Resolver, error) {
	switch cfg.Strategy {
	case "api":
		return NewAPIResolver(f, cfg), nil
	case "table":
		t, err := LoadTable(ctx, cfg.DatasetPath, f, cfg.TempDir)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, eris.Errorf("census: unknown strategy %q", cfg.Strategy)
	}
}

type pairKey struct {
	state, county string
}

// Memo caches resolved populations per (state, county) pair so each pair
// is resolved at most once per run. Errors are not cached.
type Memo struct {
	next Resolver

	mu    sync.Mutex
	pairs map[pairKey]*memoEntry
}

type memoEntry struct {
	once sync.Once
	pop  model.Population
	err  error
}

// NewMemo wraps next with a per-pair cache.
func NewMemo(next Resolver) *Memo {
	return &Memo{next: next, pairs: make(map[pairKey]*memoEntry)}
}

// Population implements Resolver.
func (m *Memo) Population(ctx context.Context, state, county string) (model.Population, error) {
	key := pairKey{strings.TrimSpace(state), strings.TrimSpace(county)}

	m.mu.Lock()
	e, ok := m.pairs[key]
	if !ok {
		e = &memoEntry{}
		m.pairs[key] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		e.pop, e.err = m.next.Population(ctx, state, county)
	})
	if e.err != nil {
		m.mu.Lock()
		if m.pairs[key] == e {
			delete(m.pairs, key)
		}
		m.mu.Unlock()
	}
	return e.pop, e.err
}
