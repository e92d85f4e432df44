package report

import (
	"net/http"

	"github.com/rafabd1/Oleander/internal/utils"
)

// Statistics is the per-site stats document: whether cache evidence was
// ever seen, whether a full detection cycle completed, the per-URL probe
// trajectories and the run-wide error list.
type Statistics struct {
	Site         string               `json:"site"`
	CacheHeaders bool                 `json:"cache_headers"`
	Tested       bool                 `json:"tested"`
	URLs         map[string]*URLStats `json:"URLs"`
	Errors       []ErrorRecord        `json:"errors,omitempty"`
}

// URLStats records one admitted URL's probe trajectory. Dates accumulates
// the observed Date header values in probe order; fewer than three entries
// means the cycle stopped early.
type URLStats struct {
	CacheStatus string   `json:"cache_status"`
	Dates       []string `json:"date"`
	Providers   []string `json:"cache,omitempty"`
}

// ErrorRecord is one recovered per-URL failure. Context names the protocol
// step that failed.
type ErrorRecord struct {
	URL     string `json:"url"`
	Type    string `json:"type"`
	Message string `json:"error"`
	Context string `json:"context"`
}

// NewStatistics returns an empty Statistics document for a site.
func NewStatistics(site string) *Statistics {
	return &Statistics{
		Site: site,
		URLs: make(map[string]*URLStats),
	}
}

// MarkCacheHeaders records that some response of this site carried
// recognizable cache evidence.
func (s *Statistics) MarkCacheHeaders() {
	s.CacheHeaders = true
}

// MarkTested records that at least one URL completed the full busted
// comparison.
func (s *Statistics) MarkTested() {
	s.Tested = true
}

// StartURL opens the stats entry for an admitted URL.
func (s *Statistics) StartURL(url, cacheStatus string) {
	if s.URLs == nil {
		s.URLs = make(map[string]*URLStats)
	}
	if _, ok := s.URLs[url]; !ok {
		s.URLs[url] = &URLStats{CacheStatus: cacheStatus, Dates: []string{}}
	}
}

// SetProviders attaches the identified cache providers to a URL entry.
func (s *Statistics) SetProviders(url string, providers []string) {
	if entry, ok := s.URLs[url]; ok {
		entry.Providers = providers
	}
}

// AppendDate appends an observed Date header value to a URL entry.
func (s *Statistics) AppendDate(url, date string) {
	if entry, ok := s.URLs[url]; ok {
		entry.Dates = append(entry.Dates, date)
	}
}

// AppendError records a recovered per-URL failure.
func (s *Statistics) AppendError(rec ErrorRecord) {
	s.Errors = append(s.Errors, rec)
}

// Probe keys of the network trace document, in protocol order.
const (
	KeyRequest1 = "request1" // initial fetch
	KeyRequest2 = "request2" // re-fetch that confirmed a MISS turned HIT
	KeyFirst    = "first"    // baseline response of an admitted URL
	KeySecond   = "second"   // temporal re-fetch
	KeyThird    = "third"    // cache-busted fetch
)

// Exchange captures one request/response pair for the network trace.
// Multi-valued headers are flattened to comma-joined strings.
type Exchange struct {
	Request  map[string]string `json:"request"`
	Response ExchangeResponse  `json:"response"`
}

// ExchangeResponse is the response half of an Exchange.
type ExchangeResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
}

// NetworkTrace maps URL to probe key to the recorded exchange. It exists
// for manual review of runs, so raw header material is kept verbatim.
type NetworkTrace map[string]map[string]Exchange

// NewNetworkTrace returns an empty trace.
func NewNetworkTrace() NetworkTrace {
	return make(NetworkTrace)
}

// Record stores one exchange under the URL and probe key, replacing any
// previous recording of the same pair.
func (t NetworkTrace) Record(url, key string, sentHeaders http.Header, statusCode int, respHeaders http.Header) {
	if _, ok := t[url]; !ok {
		t[url] = make(map[string]Exchange)
	}
	t[url][key] = Exchange{
		Request: utils.FlattenHeaders(sentHeaders),
		Response: ExchangeResponse{
			StatusCode: statusCode,
			Headers:    utils.FlattenHeaders(respHeaders),
		},
	}
}
