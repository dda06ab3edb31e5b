package locator

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type link struct {
	name string
	href string
}

type center struct {
	name   string
	street [2]string
	inside [3]string
}

// listPage renders links inside the nested container the default
// state and county selectors expect.
func listPage(links []link, withSpan bool) string {
	var items strings.Builder
	for _, l := range links {
		text := l.name
		if withSpan {
			text = "<span>" + l.name + "</span>"
		}
		fmt.Fprintf(&items, `<li><div><a class="ga-link" href="%s">%s</a></div></li>`, l.href, text)
	}
	return `<html><body><div id="main-container"><div><div>nav</div><div>crumbs</div>` +
		`<div><div><div><div><div><ul>` + items.String() + `</ul></div></div></div></div></div>` +
		`</div></div></body></html>`
}

// countyPage renders centers in the site's flat markup. Each
// .location-name carries four direct text nodes and three <strong>
// children, so a stride of 4 and a window of 5 fragments line up.
func countyPage(centers []center, phones int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i, c := range centers {
		b.WriteString(`<div class="location">`)
		fmt.Fprintf(&b, `<div class="address"><div>%s</div><div>%s</div></div>`, c.street[0], c.street[1])
		fmt.Fprintf(&b, "<div class=\"location-name\">\n  %s\n  <strong>%s</strong>\n  <strong>%s</strong>\n  <strong>%s</strong>\n</div>",
			c.name, c.inside[0], c.inside[1], c.inside[2])
		if i < phones {
			fmt.Fprintf(&b, `<div class="phone">(555) 000-%04d</div>`, i+1)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func centers(prefix string, n int) []center {
	out := make([]center, n)
	for i := range out {
		out[i] = center{
			name:   fmt.Sprintf("%s Store %d", prefix, i+1),
			street: [2]string{fmt.Sprintf("%d Main St", 100+i), "Springfield"},
			inside: [3]string{"Inside", fmt.Sprintf("%s Mall", prefix), "Level 1"},
		}
	}
	return out
}

// fakeSite serves fixed pages by path and counts hits.
type fakeSite struct {
	*httptest.Server
	mu     sync.Mutex
	pages  map[string]string
	status map[string]int
	hits   map[string]int
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	s := &fakeSite{
		pages:  make(map[string]string),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.pages[r.URL.Path]
		code := s.status[r.URL.Path]
		s.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeSite) page(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

func (s *fakeSite) fail(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = code
}

func (s *fakeSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// twoStateSite builds California/Los Angeles and Texas/Travis, each county
// listing three centers with only two phones.
func twoStateSite(t *testing.T) *fakeSite {
	t.Helper()
	s := newFakeSite(t)
	s.page("/us/en/", listPage([]link{
		{"California", "ca/"},
		{"Texas", "/us/en/tx/"},
	}, false))
	s.page("/us/en/ca/", listPage([]link{{"Los Angeles", "los-angeles/"}}, true))
	s.page("/us/en/tx/", listPage([]link{{"Travis", "travis/"}}, true))
	s.page("/us/en/ca/los-angeles/", countyPage(centers("LA", 3), 2))
	s.page("/us/en/tx/travis/", countyPage(centers("Austin", 3), 2))
	return s
}
