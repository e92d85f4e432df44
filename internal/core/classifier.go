package core

import (
	"net/http"
	"strconv"
	"strings"
)

// Verdict is the ternary outcome of cache evidence classification.
type Verdict string

const (
	VerdictHit     Verdict = "HIT"
	VerdictMiss    Verdict = "MISS"
	VerdictUnknown Verdict = "UNKNOWN"
)

// SignalKind selects the evaluation rule for a cache signal header.
type SignalKind int

const (
	// SignalStatus headers carry an explicit verdict token, e.g.
	// "HIT", "miss", "TCP_MISS from squid" or "DYNAMIC".
	SignalStatus SignalKind = iota
	// SignalHitCounter headers carry per-node hit counts, e.g. "0, 3".
	SignalHitCounter
	// SignalAge headers carry the cache entry age in seconds.
	SignalAge
)

// Signal is one recognized cache evidence response header.
type Signal struct {
	Header string
	Kind   SignalKind
}

// DefaultSignals returns the built-in table of recognized cache headers.
// The set is data, not logic: adding a vendor means adding a row.
func DefaultSignals() []Signal {
	return []Signal{
		{"X-Cache", SignalStatus},
		{"CF-Cache-Status", SignalStatus},
		{"X-Cache-Status", SignalStatus},
		{"X-Cache-Lookup", SignalStatus},
		{"X-Proxy-Cache", SignalStatus},
		{"X-Drupal-Cache", SignalStatus},
		{"X-Rack-Cache", SignalStatus},
		{"X-Varnish-Cache", SignalStatus},
		{"X-Fastly-Cache", SignalStatus},
		{"X-Vercel-Cache", SignalStatus},
		{"X-CDN-Cache-Status", SignalStatus},
		{"X-Edge-Cache-Status", SignalStatus},
		{"X-Cache-Hits", SignalHitCounter},
		{"Age", SignalAge},
	}
}

// Classifier turns response headers into a cache verdict. UNKNOWN means no
// recognized cache evidence was present at all, which is a weaker statement
// than MISS.
type Classifier struct {
	signals []Signal
}

// NewClassifier builds a Classifier; a nil signal table selects the
// built-in DefaultSignals.
func NewClassifier(signals []Signal) *Classifier {
	if signals == nil {
		signals = DefaultSignals()
	}
	return &Classifier{signals: signals}
}

// Classify inspects the response headers for cache evidence.
//
// Explicit status tokens win over everything: any recognized status header
// containing "hit" yields HIT, otherwise one containing "miss" yields MISS.
// Failing that, a hit counter with a positive entry yields HIT and an
// all-zero one MISS, then a positive Age yields HIT and a zero Age MISS.
// A recognized signal that fits none of those rules still proves a cache
// sits in front of the origin, so it classifies as MISS rather than
// UNKNOWN.
func (c *Classifier) Classify(headers http.Header) Verdict {
	sawSignal := false
	sawMiss := false

	for _, sig := range c.signals {
		if sig.Kind != SignalStatus {
			continue
		}
		value := headers.Get(sig.Header)
		if value == "" {
			continue
		}
		sawSignal = true
		lowered := strings.ToLower(value)
		if strings.Contains(lowered, "hit") {
			return VerdictHit
		}
		if strings.Contains(lowered, "miss") {
			sawMiss = true
		}
	}
	if sawMiss {
		return VerdictMiss
	}

	for _, sig := range c.signals {
		if sig.Kind != SignalHitCounter {
			continue
		}
		value := headers.Get(sig.Header)
		if value == "" {
			continue
		}
		sawSignal = true
		parsedAny := false
		for _, part := range strings.Split(value, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if n > 0 {
				return VerdictHit
			}
			parsedAny = true
		}
		if parsedAny {
			return VerdictMiss
		}
	}

	for _, sig := range c.signals {
		if sig.Kind != SignalAge {
			continue
		}
		value := headers.Get(sig.Header)
		if value == "" {
			continue
		}
		sawSignal = true
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			if n > 0 {
				return VerdictHit
			}
			return VerdictMiss
		}
	}

	if sawSignal {
		return VerdictMiss
	}
	return VerdictUnknown
}
