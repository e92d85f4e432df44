package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rafabd1/Oleander/internal/utils"
)

// Config holds all the configuration for the Oleander scanner.
// Fields are populated by Viper from flags, environment and defaults.
type Config struct {
	Target     string // site host to crawl and test
	URL        string // single URL to test instead of crawling
	Retest     bool   // discard persisted state and start over
	CookieFile string // JSON file with session cookies

	MaxURLsPerDomain int
	MaxDomains       int
	Exclude          string // comma-separated URL exclusion regexes
	TestAll          bool   // keep probing after the first cached URL

	OutputDir          string
	RequestTimeout     time.Duration
	Proxy              string
	InsecureSkipVerify bool
	UserAgent          string
	ExcludedExtensions []string

	Reproducible bool
	Debug        bool
	NoColor      bool
	Silent       bool

	// Delays between the protocol probes.
	ConfirmDelayFirst  time.Duration
	ConfirmDelaySecond time.Duration
	ProbeDelay         time.Duration

	// Cookies holds the session cookies loaded from CookieFile.
	Cookies map[string]string

	// Derived by Validate.
	Site           string
	ExcludeRegexes []*regexp.Regexp
	ProxyURL       *url.URL
}

// GetDefaultConfig returns a Config with default values.
func GetDefaultConfig() *Config {
	return &Config{
		MaxURLsPerDomain: 10,
		MaxDomains:       2,
		OutputDir:        ".",
		RequestTimeout:   30 * time.Second,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
		ExcludedExtensions: []string{
			".css", ".js", ".map",
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp", ".avif",
			".woff", ".woff2", ".ttf", ".otf", ".eot",
			".mp3", ".mp4", ".webm", ".avi", ".mov", ".wav", ".ogg",
			".pdf", ".zip", ".tar", ".gz", ".rar",
		},
		ConfirmDelayFirst:  1 * time.Second,
		ConfirmDelaySecond: 2 * time.Second,
		ProbeDelay:         1500 * time.Millisecond,
		Cookies:            map[string]string{},
	}
}

// ProfileHeaders returns the browser-profile request headers sent with every
// probe. The User-Agent reflects the configured value.
func (c *Config) ProfileHeaders() map[string]string {
	return map[string]string{
		"User-Agent":                c.UserAgent,
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.5",
		"Upgrade-Insecure-Requests": "1",
		"Sec-Fetch-Dest":            "document",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Site":            "none",
		"Sec-Fetch-User":            "?1",
		"DNT":                       "1",
		"Sec-GPC":                   "1",
	}
}

// SingleURL reports whether the run probes one URL instead of crawling.
func (c *Config) SingleURL() bool {
	return c.URL != ""
}

// Validate checks the configuration, resolves the site anchor and compiles
// the derived fields. It must run before the Config is used.
func (c *Config) Validate() error {
	if c.Target == "" && c.URL == "" {
		return fmt.Errorf("either a target site or a single URL is required")
	}
	if c.Target != "" && c.URL != "" {
		return fmt.Errorf("target and URL are mutually exclusive")
	}

	if c.URL != "" {
		u, err := url.Parse(strings.TrimSpace(c.URL))
		if err != nil {
			return fmt.Errorf("invalid URL %q: %w", c.URL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
			return fmt.Errorf("URL %q must be an absolute http(s) URL", c.URL)
		}
		c.URL = u.String()
		c.Site = strings.ToLower(u.Hostname())
	} else {
		target := strings.TrimSpace(c.Target)
		if strings.Contains(target, "://") {
			u, err := url.Parse(target)
			if err != nil || u.Hostname() == "" {
				return fmt.Errorf("invalid target %q", c.Target)
			}
			target = u.Hostname()
		}
		if target == "" {
			return fmt.Errorf("invalid target %q", c.Target)
		}
		c.Site = strings.ToLower(target)
	}

	if c.MaxURLsPerDomain <= 0 {
		return fmt.Errorf("max URLs per domain must be positive, got %d", c.MaxURLsPerDomain)
	}
	if c.MaxDomains <= 0 {
		return fmt.Errorf("max domains must be positive, got %d", c.MaxDomains)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	c.ExcludeRegexes = nil
	if c.Exclude != "" {
		for _, raw := range strings.Split(c.Exclude, ",") {
			pattern := strings.TrimSpace(raw)
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return fmt.Errorf("invalid exclusion regex %q: %w", pattern, err)
			}
			c.ExcludeRegexes = append(c.ExcludeRegexes, re)
		}
	}

	proxyURL, err := utils.ParseProxyURL(c.Proxy)
	if err != nil {
		return err
	}
	c.ProxyURL = proxyURL

	return nil
}

// String returns a loggable summary of the effective configuration.
func (c *Config) String() string {
	mode := fmt.Sprintf("site=%s", c.Site)
	if c.SingleURL() {
		mode = fmt.Sprintf("url=%s", c.URL)
	}
	return fmt.Sprintf("%s, max_urls=%d, max_domains=%d, timeout=%v, retest=%v, test_all=%v, reproducible=%v, output=%s",
		mode, c.MaxURLsPerDomain, c.MaxDomains, c.RequestTimeout, c.Retest, c.TestAll, c.Reproducible, c.OutputDir)
}
