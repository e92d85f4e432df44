package core

import (
	"net/http"
	"strings"
)

// ProviderKeywords holds the matchable substrings for one cache or CDN
// vendor. Names match against response header names, Values against their
// values, both case-insensitively.
type ProviderKeywords struct {
	Provider string
	Names    []string
	Values   []string
}

// Denylist lists header names and values that are excluded from provider
// matching because they embed vendor strings without implying that vendor
// runs a cache here (CSP directives, CORS origins and the like).
type Denylist struct {
	Names  []string
	Values []string
}

// DefaultKeywords returns the built-in provider fingerprint table.
func DefaultKeywords() []ProviderKeywords {
	return []ProviderKeywords{
		{
			Provider: "akamai",
			Names:    []string{"x-akamai-"},
			Values:   []string{"akamai", "akamaitechnologies", "akamaiedge", "AkamaiGHost"},
		},
		{
			Provider: "cdn77",
			Names:    []string{"x-cdn77", "x-77"},
			Values:   []string{"cdn77"},
		},
		{
			Provider: "cloudflare",
			Names:    []string{"cf-cache-status", "cf-ray", "cf-request-id"},
			Values:   []string{"cloudflare"},
		},
		{
			Provider: "cloudfront",
			Names:    []string{"x-amz-cf-pop", "x-amz-cf-id", "x-amz-"},
			Values:   []string{"cloudfront", "cloudfront.net"},
		},
		{
			Provider: "fastly",
			Values:   []string{"fastly"},
		},
		{
			Provider: "google",
			Names:    []string{"x-google-", "x-goog-"},
			Values:   []string{"1.1 google"},
		},
		{
			Provider: "keycdn",
			Values:   []string{"keycdn"},
		},
		{
			Provider: "azure",
			Names:    []string{"x-msedge-"},
			Values:   []string{"azure"},
		},
		{
			Provider: "apache, ats",
			Values:   []string{"apache", "ATS/"},
		},
		{
			Provider: "nginx",
			Names:    []string{"x-nginx"},
			Values:   []string{"nginx"},
		},
		{
			Provider: "rack_cache",
			Names:    []string{"x-rack-cache"},
			Values:   []string{"rack-cache"},
		},
		{
			Provider: "squid",
			Values:   []string{"squid"},
		},
		{
			Provider: "varnish",
			Names:    []string{"x-varnish"},
			Values:   []string{"varnish"},
		},
	}
}

// DefaultDenylist returns the built-in matching exclusions.
func DefaultDenylist() Denylist {
	return Denylist{
		Names: []string{
			"content-security-policy",
			"content-security-policy-report-only",
			"access-control-allow-origin",
		},
	}
}

// Fingerprinter attributes response headers to known cache providers.
type Fingerprinter struct {
	keywords []ProviderKeywords
	denylist Denylist
}

// NewFingerprinter builds a Fingerprinter with the built-in tables.
func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{
		keywords: DefaultKeywords(),
		denylist: DefaultDenylist(),
	}
}

// Identify returns every provider whose fingerprints occur in the headers,
// deduplicated. Multiple providers can legitimately appear at once when the
// response crossed several cache layers. An empty result means no known
// provider left a trace, not that no cache exists. Output order follows
// the keyword table, so the same headers always produce the same list.
func (f *Fingerprinter) Identify(headers http.Header) []string {
	var providers []string

	for _, kw := range f.keywords {
		for name, values := range headers {
			if f.denylistedName(name) {
				continue
			}
			if f.denylistedValue(values) {
				continue
			}
			if matchKeywords(strings.ToLower(name), values, kw) {
				providers = append(providers, kw.Provider)
				break
			}
		}
	}
	return providers
}

func matchKeywords(loweredName string, values []string, kw ProviderKeywords) bool {
	for _, sub := range kw.Names {
		if sub != "" && strings.Contains(loweredName, strings.ToLower(sub)) {
			return true
		}
	}
	for _, value := range values {
		loweredValue := strings.ToLower(value)
		if loweredValue == "" {
			continue
		}
		for _, sub := range kw.Values {
			if sub != "" && strings.Contains(loweredValue, strings.ToLower(sub)) {
				return true
			}
		}
	}
	return false
}

func (f *Fingerprinter) denylistedName(name string) bool {
	for _, deny := range f.denylist.Names {
		if strings.EqualFold(name, deny) {
			return true
		}
	}
	return false
}

func (f *Fingerprinter) denylistedValue(values []string) bool {
	for _, deny := range f.denylist.Values {
		for _, value := range values {
			if strings.EqualFold(value, deny) {
				return true
			}
		}
	}
	return false
}
