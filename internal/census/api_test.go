package census

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/locator-cli/internal/config"
	"github.com/sells-group/locator-cli/internal/fetcher"
	"github.com/sells-group/locator-cli/internal/model"
)

const californiaCounties = `[["NAME","P1_001N","state","county"],
["Alameda County, California","1682353","06","001"],
["Los Angeles County, California","10014009","06","037"],
["Orange County, California","3186989","06","059"]]`

type fakeCensus struct {
	srv      *httptest.Server
	requests atomic.Int32
	mu       sync.Mutex
	queries  []map[string]string
}

func newFakeCensus(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *fakeCensus {
	t.Helper()
	fc := &fakeCensus{}
	fc.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fc.requests.Add(1)
		q := r.URL.Query()
		fc.mu.Lock()
		fc.queries = append(fc.queries, map[string]string{
			"get": q.Get("get"),
			"for": q.Get("for"),
			"in":  q.Get("in"),
			"key": q.Get("key"),
		})
		fc.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(fc.srv.Close)
	return fc
}

func testFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		RatePerSec:     1000,
	})
}

func newTestAPIResolver(baseURL string) *APIResolver {
	return NewAPIResolver(testFetcher(), config.CensusConfig{
		APIURL: baseURL,
		APIKey: "test-key",
		Fields: "NAME,P1_001N",
	})
}

func TestAPIResolver_QueriesStateByFIPS(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(californiaCounties))
	})

	r := newTestAPIResolver(fc.srv.URL)
	pop, err := r.Population(context.Background(), "California", "Los Angeles")
	require.NoError(t, err)
	assert.Equal(t, model.CountOf(10014009), pop)

	require.Len(t, fc.queries, 1)
	assert.Equal(t, "state:06", fc.queries[0]["in"])
	assert.Equal(t, "county:*", fc.queries[0]["for"])
	assert.Equal(t, "NAME,P1_001N", fc.queries[0]["get"])
	assert.Equal(t, "test-key", fc.queries[0]["key"])
}

func TestAPIResolver_PrefixMatch(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(californiaCounties))
	})

	r := newTestAPIResolver(fc.srv.URL)
	pop, err := r.Population(context.Background(), "California", "Orange")
	require.NoError(t, err)
	assert.Equal(t, "3186989", pop.String())
}

func TestAPIResolver_MissReturnsSentinel(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(californiaCounties))
	})

	r := newTestAPIResolver(fc.srv.URL)
	pop, err := r.Population(context.Background(), "California", "Nowhere")
	require.NoError(t, err)
	assert.False(t, pop.Known)
	assert.Equal(t, "Population Data Not Found", pop.String())
}

func TestAPIResolver_UnknownStateSkipsRequest(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(californiaCounties))
	})

	r := newTestAPIResolver(fc.srv.URL)
	pop, err := r.Population(context.Background(), "Puerto Rico", "San Juan")
	require.NoError(t, err)
	assert.Equal(t, model.Missing(model.PopulationDataNotFound), pop)
	assert.Equal(t, int32(0), fc.requests.Load())
}

func TestAPIResolver_OneRequestPerState(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Write([]byte(californiaCounties))
	})

	r := newTestAPIResolver(fc.srv.URL)
	counties := []string{"Alameda", "Los Angeles", "Orange", "Alameda", "Nowhere", "Orange"}

	var wg sync.WaitGroup
	for _, county := range counties {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Population(context.Background(), "California", county)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err := r.Population(context.Background(), "California", "Alameda")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fc.requests.Load())
}

func TestAPIResolver_ServerErrorIsReturned(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	r := newTestAPIResolver(fc.srv.URL)
	_, err := r.Population(context.Background(), "Texas", "Travis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census: population for Travis, Texas")
}

func TestAPIResolver_FailureIsNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(californiaCounties))
	})

	r := newTestAPIResolver(fc.srv.URL)
	_, err := r.Population(context.Background(), "California", "Orange")
	require.Error(t, err)

	fail.Store(false)
	pop, err := r.Population(context.Background(), "California", "Orange")
	require.NoError(t, err)
	assert.True(t, pop.Known)
	assert.Equal(t, int32(2), fc.requests.Load())
}

func TestAPIResolver_MalformedResponse(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "invalid key"}`))
	})

	r := newTestAPIResolver(fc.srv.URL)
	_, err := r.Population(context.Background(), "California", "Orange")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census: decode state 06")
}

func TestAPIResolver_NonIntegerPopulation(t *testing.T) {
	fc := newFakeCensus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[["NAME","P1_001N"],["Orange County, California","n/a"]]`))
	})

	r := newTestAPIResolver(fc.srv.URL)
	pop, err := r.Population(context.Background(), "California", "Orange")
	require.NoError(t, err)
	assert.False(t, pop.Known)
	assert.Equal(t, "n/a", pop.String())
	assert.Equal(t, model.Missing("n/a"), pop)
}

func TestAPIResolver_QueryURLWithoutKey(t *testing.T) {
	r := NewAPIResolver(nil, config.CensusConfig{APIURL: "https://api.example.test/pl"})
	got := r.QueryURL("48")
	assert.Equal(t, fmt.Sprintf("https://api.example.test/pl?for=%s&get=%s&in=%s",
		"county%3A%2A", "NAME%2CP1_001N", "state%3A48"), got)
}
