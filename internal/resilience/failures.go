package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sells-group/locator-cli/internal/model"
)

// Failure is a crawl branch that was abandoned because a fetch or a
// population lookup failed.
type Failure struct {
	Level     string    `json:"level"`
	URL       string    `json:"url"`
	State     string    `json:"state,omitempty"`
	County    string    `json:"county,omitempty"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"` // "transient" or "permanent"
	FailedAt  time.Time `json:"failed_at"`
}

// Ledger collects abandoned branches. Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	failures []Failure
	nowFunc  func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{nowFunc: time.Now}
}

// Add records that the branch rooted at v failed with err.
func (l *Ledger) Add(v model.Visit, err error) {
	f := Failure{
		Level:     v.Level.String(),
		URL:       v.URL,
		State:     v.State,
		County:    v.County,
		Error:     err.Error(),
		ErrorType: ClassifyError(err),
		FailedAt:  l.nowFunc().UTC(),
	}
	l.mu.Lock()
	l.failures = append(l.failures, f)
	l.mu.Unlock()
}

// Len returns the number of recorded failures.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}

// Failures returns a copy of the recorded failures sorted by URL.
func (l *Ledger) Failures() []Failure {
	l.mu.Lock()
	out := make([]Failure, len(l.failures))
	copy(out, l.failures)
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}
