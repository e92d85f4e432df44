package utils

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NormalizeURL canonicalizes a URL for frontier deduplication: the scheme
// and host are lowercased, the fragment is dropped, and an empty path
// becomes "/". Only absolute http(s) URLs are accepted; "www." prefixes are
// kept because subdomains are tracked as distinct domains.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q in URL %q", u.Scheme, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host in URL %q", rawURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}

// RegistrableDomain extracts the registrable domain (eTLD+1) for a host,
// e.g. "example.com" for "app.example.com". IP addresses and dotless hosts
// such as "localhost" are returned as-is.
func RegistrableDomain(host string) (string, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}
	if !strings.Contains(host, ".") {
		return host, nil
	}

	eTLDPlusOne, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// Fall back to the last two labels when the public suffix list
		// cannot place the host (private TLDs, test domains).
		parts := strings.Split(host, ".")
		if len(parts) >= 2 {
			return strings.Join(parts[len(parts)-2:], "."), nil
		}
		return "", fmt.Errorf("failed to get eTLD+1 for host %q: %w", host, err)
	}
	return eTLDPlusOne, nil
}

// SameSite reports whether host belongs to the same site as site: both
// resolve to the same registrable domain. Hosts where no registrable domain
// can be derived compare by exact name.
func SameSite(host, site string) bool {
	host = strings.ToLower(host)
	site = strings.ToLower(site)
	if host == site {
		return true
	}

	hostBase, errHost := RegistrableDomain(host)
	siteBase, errSite := RegistrableDomain(site)
	if errHost != nil || errSite != nil {
		return false
	}
	return hostBase == siteBase
}

// HostOf returns the hostname (without port) of a URL string, lowercased.
func HostOf(urlString string) (string, error) {
	u, err := url.Parse(urlString)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing host in URL %q", urlString)
	}
	return host, nil
}

// AppendQueryParam adds or updates a query parameter on a URL string.
// Returns the modified URL or an error if the original URL is invalid.
func AppendQueryParam(urlString, paramName, paramValue string) (string, error) {
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return "", err
	}

	query := parsedURL.Query()
	query.Set(paramName, paramValue)
	parsedURL.RawQuery = query.Encode()

	return parsedURL.String(), nil
}
