package census

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/fetcher"
	"github.com/sells-group/locator-cli/internal/model"
	"github.com/sells-group/locator-cli/internal/resilience"
)

// APIResolver looks populations up in the Census Data API, one request per
// state. Rows for a state are fetched once and shared by all its counties.
type APIResolver struct {
	fetcher fetcher.Fetcher
	baseURL string
	fields  string
	apiKey  string
	breaker *resilience.CircuitBreaker
	log     *zap.Logger

	group singleflight.Group
	mu    sync.RWMutex
	rows  map[string][][]string // FIPS -> data rows (header dropped)
}

// NewAPIResolver creates a resolver against cfg.APIURL.
func NewAPIResolver(f fetcher.Fetcher, cfg config.CensusConfig) *APIResolver {
	fields := cfg.Fields
	if fields == "" {
		fields = "NAME,P1_001N"
	}
	log := zap.L().With(zap.String("component", "census.api"))

	cbCfg := resilience.DefaultCircuitBreakerConfig()
	cbCfg.OnStateChange = func(from, to resilience.CircuitState) {
		log.Warn("census API circuit breaker state change",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &APIResolver{
		fetcher: f,
		baseURL: cfg.APIURL,
		fields:  fields,
		apiKey:  cfg.APIKey,
		breaker: resilience.NewCircuitBreaker(cbCfg),
		log:     log,
		rows:    make(map[string][][]string),
	}
}

// Population implements Resolver. The first data row whose NAME starts with
// county wins.
func (r *APIResolver) Population(ctx context.Context, state, county string) (model.Population, error) {
	fips, ok := FIPS(state)
	if !ok {
		r.log.Debug("unknown state, skipping census lookup", zap.String("state", state))
		return model.Missing(model.PopulationDataNotFound), nil
	}

	rows, err := r.stateRows(ctx, fips)
	if err != nil {
		return model.Population{}, eris.Wrapf(err, "census: population for %s, %s", county, state)
	}

	for _, row := range rows {
		if len(row) < 2 || !strings.HasPrefix(row[0], county) {
			continue
		}
		raw := strings.TrimSpace(row[1])
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Non-numeric values ("n/a", annotations) pass through as the sentinel.
			r.log.Warn("non-integer population",
				zap.String("state", state),
				zap.String("county", row[0]),
				zap.String("value", raw),
			)
			return model.Missing(raw), nil
		}
		return model.CountOf(n), nil
	}

	return model.Missing(model.PopulationDataNotFound), nil
}

// QueryURL builds the county query for one state.
func (r *APIResolver) QueryURL(fips string) string {
	q := url.Values{}
	q.Set("get", r.fields)
	q.Set("for", "county:*")
	q.Set("in", "state:"+fips)
	if r.apiKey != "" {
		q.Set("key", r.apiKey)
	}
	return r.baseURL + "?" + q.Encode()
}

func (r *APIResolver) stateRows(ctx context.Context, fips string) ([][]string, error) {
	r.mu.RLock()
	rows, ok := r.rows[fips]
	r.mu.RUnlock()
	if ok {
		return rows, nil
	}

	v, err, _ := r.group.Do(fips, func() (any, error) {
		r.mu.RLock()
		cached, ok := r.rows[fips]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}

		rows, err := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) ([][]string, error) {
			return r.fetchState(ctx, fips)
		})
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.rows[fips] = rows
		r.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([][]string), nil
}

func (r *APIResolver) fetchState(ctx context.Context, fips string) ([][]string, error) {
	r.log.Info("fetching census counties", zap.String("state_fips", fips))

	body, err := r.fetcher.Download(ctx, r.QueryURL(fips))
	if err != nil {
		return nil, eris.Wrapf(err, "census: fetch state %s", fips)
	}
	defer body.Close() //nolint:errcheck

	var rows [][]string
	err = fetcher.DecodeRows(ctx, body, func(i int, row []string) error {
		if i > 0 {
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "census: decode state %s", fips)
	}

	r.log.Debug("census counties loaded", zap.String("state_fips", fips), zap.Int("rows", len(rows)))
	return rows, nil
}
