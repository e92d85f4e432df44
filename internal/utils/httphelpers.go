package utils

import (
	"net/http"
	"sort"
	"strings"
)

// FlattenHeaders collapses an http.Header into a plain name -> value map,
// joining repeated fields with ", " the way they would appear merged on the
// wire. Used when recording exchanges into the network trace document.
func FlattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for name, values := range headers {
		flat[name] = strings.Join(values, ", ")
	}
	return flat
}

// CookieHeaderValue serializes a cookie map into a Cookie header value with
// deterministic (sorted) ordering, e.g. "a=1; b=2".
func CookieHeaderValue(cookies map[string]string) string {
	if len(cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+cookies[name])
	}
	return strings.Join(pairs, "; ")
}

// CopyStringMap returns a shallow copy of a string map; nil maps produce an
// empty, non-nil copy so callers can add entries safely.
func CopyStringMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
