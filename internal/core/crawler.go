package core

import (
	"net/url"
	"strings"

	"github.com/rafabd1/Oleander/internal/utils"
)

// Crawler owns the URL frontier and the visited ledger. It performs no
// network I/O itself: callers fetch pages and feed the discovered links
// back through AddToQueue.
//
// Budget enforcement happens at insertion time only. A URL admitted while
// within budget stays admitted even if limits would reject it later.
type Crawler struct {
	site string

	maxURLsPerDomain int
	maxDomains       int
	excludedExts     []string
	logger           utils.Logger

	queue        []string
	seen         map[string]struct{}
	visitedSet   map[string]struct{}
	visitedList  []string
	domainCounts map[string]int
}

// NewCrawler builds a Crawler anchored to site (a bare host). Links whose
// registrable domain differs from the site's are never admitted.
func NewCrawler(site string, maxURLsPerDomain, maxDomains int, excludedExtensions []string, logger utils.Logger) *Crawler {
	if logger == nil {
		logger = &utils.NoOpLogger{}
	}
	return &Crawler{
		site:             strings.ToLower(site),
		maxURLsPerDomain: maxURLsPerDomain,
		maxDomains:       maxDomains,
		excludedExts:     excludedExtensions,
		logger:           logger,
		seen:             make(map[string]struct{}),
		visitedSet:       make(map[string]struct{}),
		domainCounts:     make(map[string]int),
	}
}

// AddToQueue admits a URL to the frontier. Duplicates, already visited
// URLs, unparsable URLs and URLs beyond the domain or per-domain budgets
// are silently dropped; admission must be safe to call on every link of
// every fetched page.
func (c *Crawler) AddToQueue(rawURL string) {
	normalized, err := utils.NormalizeURL(rawURL)
	if err != nil {
		c.logger.Debugf("Not queueing %q: %v", rawURL, err)
		return
	}
	if _, ok := c.seen[normalized]; ok {
		return
	}

	host, err := utils.HostOf(normalized)
	if err != nil {
		c.logger.Debugf("Not queueing %q: %v", normalized, err)
		return
	}

	if _, tracked := c.domainCounts[host]; !tracked && len(c.domainCounts) >= c.maxDomains {
		c.logger.Debugf("Domain budget reached, not queueing %s", normalized)
		return
	}
	if c.domainCounts[host] >= c.maxURLsPerDomain {
		c.logger.Debugf("URL budget for %s reached, not queueing %s", host, normalized)
		return
	}

	c.seen[normalized] = struct{}{}
	c.domainCounts[host]++
	c.queue = append(c.queue, normalized)
}

// GetURLFromQueue pops the oldest frontier entry, or "" when the frontier
// is empty.
func (c *Crawler) GetURLFromQueue() string {
	if len(c.queue) == 0 {
		return ""
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	return next
}

// ShouldContinue reports whether frontier entries remain.
func (c *Crawler) ShouldContinue() bool {
	return len(c.queue) > 0
}

// IsVisited reports whether a URL was already probed.
func (c *Crawler) IsVisited(rawURL string) bool {
	_, ok := c.visitedSet[normalizeOrRaw(rawURL)]
	return ok
}

// AddToVisited marks a URL as probed. Marking is idempotent. Redirect
// targets arrive here without ever passing AddToQueue; they are counted
// against their domain but admission budgets are not re-checked.
func (c *Crawler) AddToVisited(rawURL string) {
	key := normalizeOrRaw(rawURL)
	if _, ok := c.visitedSet[key]; ok {
		return
	}
	c.visitedSet[key] = struct{}{}
	c.visitedList = append(c.visitedList, key)

	if _, ok := c.seen[key]; !ok {
		c.seen[key] = struct{}{}
		if host, err := utils.HostOf(key); err == nil {
			c.domainCounts[host]++
		}
	}
}

// GetLinks extracts the links of a fetched page that belong to the target
// site and do not carry an excluded static-asset extension. The result is
// deduplicated but not yet budget-checked; AddToQueue does that.
func (c *Crawler) GetLinks(baseURL string, body []byte) []string {
	var links []string
	for _, link := range utils.ExtractLinks(baseURL, body, c.logger) {
		host, err := utils.HostOf(link)
		if err != nil {
			continue
		}
		if !utils.SameSite(host, c.site) {
			continue
		}
		if c.HasExcludedExtension(link) {
			continue
		}
		links = append(links, link)
	}
	return links
}

// HasExcludedExtension reports whether the URL path ends in one of the
// excluded static-asset extensions. Query strings do not count.
func (c *Crawler) HasExcludedExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range c.excludedExts {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// SetVisited replaces the visited ledger, rebuilding the dedupe and domain
// accounting. Used when resuming a persisted run.
func (c *Crawler) SetVisited(urls []string) {
	c.visitedSet = make(map[string]struct{})
	c.visitedList = nil
	for _, u := range urls {
		c.AddToVisited(u)
	}
}

// SetQueue replaces the frontier with a persisted one. Entries already
// visited or duplicated are dropped; domain accounting is rebuilt so
// budgets keep holding across resumed runs.
func (c *Crawler) SetQueue(urls []string) {
	c.queue = nil
	for _, u := range urls {
		key := normalizeOrRaw(u)
		if _, ok := c.seen[key]; ok {
			continue
		}
		c.seen[key] = struct{}{}
		if host, err := utils.HostOf(key); err == nil {
			c.domainCounts[host]++
		}
		c.queue = append(c.queue, key)
	}
}

// Queue returns a snapshot of the frontier for persistence.
func (c *Crawler) Queue() []string {
	out := make([]string, len(c.queue))
	copy(out, c.queue)
	return out
}

// Visited returns a snapshot of the visited ledger, in visit order.
func (c *Crawler) Visited() []string {
	out := make([]string, len(c.visitedList))
	copy(out, c.visitedList)
	return out
}

// normalizeOrRaw canonicalizes a URL for ledger keys, falling back to the
// raw string for URLs that do not parse (redirect targets can be odd).
func normalizeOrRaw(rawURL string) string {
	if normalized, err := utils.NormalizeURL(rawURL); err == nil {
		return normalized
	}
	return rawURL
}
