package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rafabd1/Oleander/internal/config"
	"github.com/rafabd1/Oleander/internal/networking"
	"github.com/rafabd1/Oleander/internal/report"
	"github.com/rafabd1/Oleander/internal/utils"
)

// Fetcher is the transport surface the detection protocol drives. It is
// satisfied by networking.Client.
type Fetcher interface {
	Get(ctx context.Context, req networking.Request) (*networking.Response, error)
}

// DetectionResult is the outcome of one URL's probe cycle.
type DetectionResult struct {
	URL       string
	Verdict   Verdict
	Providers []string
	Dates     []string
	// DefeatsCache is nil when the cycle ended before the busted
	// comparison could run. True means the busted probe produced a new
	// cache entry, so the cache is keyed on the full request.
	DefeatsCache *bool
}

// Detector walks the crawler frontier and runs the full probe protocol on
// each URL: fetch, classify, confirm caching for misses, then compare Date
// headers across delayed and cache-busted re-fetches.
//
// It is single-threaded on purpose. The protocol's delays are load-bearing
// (they separate cache entries in time) and concurrent probing of one site
// would let probes warm each other's cache entries.
type Detector struct {
	cfg     *config.Config
	client  Fetcher
	crawler *Crawler

	classifier    *Classifier
	fingerprinter *Fingerprinter
	buster        *Buster

	stats  *report.Statistics
	trace  report.NetworkTrace
	logger utils.Logger

	sleep func(ctx context.Context, d time.Duration)
}

// NewDetector wires a Detector over an existing crawler, client and report
// documents.
func NewDetector(cfg *config.Config, client Fetcher, crawler *Crawler, stats *report.Statistics, trace report.NetworkTrace, logger utils.Logger) *Detector {
	if logger == nil {
		logger = &utils.NoOpLogger{}
	}
	return &Detector{
		cfg:           cfg,
		client:        client,
		crawler:       crawler,
		classifier:    NewClassifier(nil),
		fingerprinter: NewFingerprinter(),
		buster:        NewBuster(cfg.Reproducible),
		stats:         stats,
		trace:         trace,
		logger:        logger,
		sleep:         sleepWithContext,
	}
}

// SetSleep replaces the inter-probe delay function. Tests use this to run
// the protocol without real waiting.
func (d *Detector) SetSleep(sleep func(ctx context.Context, d time.Duration)) {
	if sleep != nil {
		d.sleep = sleep
	}
}

// Run drains the frontier until it empties, the context is canceled, or,
// unless configured to test everything, the first URL finishes a probe
// cycle. Transport failures are recorded and skip to the next URL.
func (d *Detector) Run(ctx context.Context) []DetectionResult {
	var results []DetectionResult

	for d.crawler.ShouldContinue() {
		if ctx.Err() != nil {
			break
		}
		url := d.crawler.GetURLFromQueue()
		if url == "" {
			break
		}
		if d.crawler.IsVisited(url) {
			continue
		}
		if d.excluded(url) {
			d.logger.Debugf("Skipping excluded URL: %s", url)
			continue
		}
		if d.crawler.HasExcludedExtension(url) {
			d.logger.Debugf("Skipping static asset: %s", url)
			continue
		}

		result, admitted, completed := d.probe(ctx, url)
		if admitted {
			results = append(results, result)
			if completed && !d.cfg.TestAll {
				break
			}
		}
	}

	return results
}

// probe runs the full protocol on one URL. admitted reports whether the
// URL proved cacheable and entered the stats document; completed reports
// whether its cycle ran to the end without a transport failure.
func (d *Detector) probe(ctx context.Context, url string) (result DetectionResult, admitted, completed bool) {
	d.logger.Infof("Visiting URL: %s", url)
	d.crawler.AddToVisited(url)

	resp, err := d.client.Get(ctx, networking.Request{URL: url, FollowRedirects: true})
	if err != nil {
		d.recordError(url, "fetch", err)
		return result, false, false
	}

	if !d.cfg.SingleURL() {
		for _, link := range d.crawler.GetLinks(resp.URL, resp.Body) {
			d.crawler.AddToQueue(link)
		}
	}

	// A followed redirect lands on a different URL; that is the one that
	// was actually probed, so it carries the ledger entry and the stats.
	if resp.URL != "" && resp.URL != url {
		d.logger.Debugf("Redirected to %s", resp.URL)
		url = resp.URL
		d.crawler.AddToVisited(url)
	}

	d.trace.Record(url, report.KeyRequest1, resp.SentHeaders, resp.StatusCode, resp.Headers)

	baseline := resp
	switch verdict := d.classify(resp); verdict {
	case VerdictHit:
		d.logger.Infof("The response gets cached (cache status %s)", verdict)
	case VerdictMiss:
		confirmed, err := d.confirmMiss(ctx, url)
		if err != nil {
			d.recordError(url, "confirm_miss", err)
			return result, false, false
		}
		if confirmed == nil {
			return result, false, false
		}
		baseline = confirmed
	default:
		d.logger.Infof("The response does not get cached (no cache evidence)")
		return result, false, false
	}

	result = DetectionResult{URL: url, Verdict: VerdictHit}
	admitted = true
	d.stats.StartURL(url, string(VerdictHit))
	d.trace.Record(url, report.KeyFirst, baseline.SentHeaders, baseline.StatusCode, baseline.Headers)

	date1 := baseline.Headers.Get("Date")
	if date1 == "" {
		d.logger.Warnf("No Date header on %s, skipping the temporal comparison", url)
		return result, true, true
	}

	providers := d.fingerprinter.Identify(baseline.Headers)
	if len(providers) > 0 {
		d.stats.SetProviders(url, providers)
		result.Providers = providers
		d.logger.Infof("Identified cache: %s", strings.Join(providers, ", "))
	}

	d.logger.Infof("Found Date header: %s", date1)
	d.stats.AppendDate(url, date1)
	result.Dates = append(result.Dates, date1)

	d.sleep(ctx, d.cfg.ProbeDelay)
	if ctx.Err() != nil {
		return result, true, false
	}
	second, err := d.client.Get(ctx, networking.Request{URL: url, FollowRedirects: true})
	if err != nil {
		d.recordError(url, "temporal_check", err)
		return result, true, false
	}
	d.trace.Record(url, report.KeySecond, second.SentHeaders, second.StatusCode, second.Headers)

	date2 := second.Headers.Get("Date")
	if date2 == "" {
		d.logger.Warnf("Lost the Date header on re-fetch of %s", url)
		return result, true, true
	}
	d.stats.AppendDate(url, date2)
	result.Dates = append(result.Dates, date2)
	if date2 != date1 {
		d.logger.Infof("The Date header is changing")
	} else {
		d.logger.Infof("The Date header is not changing")
	}

	d.sleep(ctx, d.cfg.ProbeDelay)
	if ctx.Err() != nil {
		return result, true, false
	}
	bustedURL, bustedHeaders, bustedCookies, err := d.buster.Bust(url, d.cfg.ProfileHeaders(), d.cfg.Cookies, baseline.Headers.Get("Vary"))
	if err != nil {
		d.recordError(url, "cache_bust", err)
		return result, true, false
	}
	third, err := d.client.Get(ctx, networking.Request{
		URL:             bustedURL,
		Headers:         bustedHeaders,
		Cookies:         bustedCookies,
		FollowRedirects: false,
	})
	if err != nil {
		d.recordError(url, "cache_bust", err)
		return result, true, false
	}
	d.trace.Record(url, report.KeyThird, third.SentHeaders, third.StatusCode, third.Headers)

	date3 := third.Headers.Get("Date")
	if date3 == "" {
		d.logger.Warnf("No Date header on the cache-busted fetch of %s", url)
		return result, true, true
	}
	d.stats.AppendDate(url, date3)
	result.Dates = append(result.Dates, date3)

	defeats := date3 != date1
	result.DefeatsCache = &defeats
	d.stats.MarkTested()
	if defeats {
		d.logger.Infof("The Date header is changing after cache busting")
	} else {
		d.logger.Warnf("The Date header is not changing after cache busting, the cache ignores the busted key")
	}

	return result, true, true
}

// confirmMiss re-fetches a URL that classified MISS to see whether the
// first request warmed a cache entry. It returns the confirming response
// when the re-fetch classifies HIT, nil when the URL stays uncached, and
// an error on transport failure.
func (d *Detector) confirmMiss(ctx context.Context, url string) (*networking.Response, error) {
	d.sleep(ctx, d.cfg.ConfirmDelayFirst)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if _, err := d.client.Get(ctx, networking.Request{URL: url, FollowRedirects: true}); err != nil {
		return nil, err
	}

	d.sleep(ctx, d.cfg.ConfirmDelaySecond)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	resp, err := d.client.Get(ctx, networking.Request{URL: url, FollowRedirects: true})
	if err != nil {
		return nil, err
	}
	d.trace.Record(url, report.KeyRequest2, resp.SentHeaders, resp.StatusCode, resp.Headers)

	if verdict := d.classify(resp); verdict != VerdictHit {
		d.logger.Infof("The response does not get cached (cache status %s after retries)", verdict)
		return nil, nil
	}
	d.logger.Infof("The response gets cached (MISS turned HIT)")
	return resp, nil
}

// classify wraps the classifier and flags the stats document whenever any
// cache evidence shows up for the site.
func (d *Detector) classify(resp *networking.Response) Verdict {
	verdict := d.classifier.Classify(resp.Headers)
	if verdict != VerdictUnknown {
		d.stats.MarkCacheHeaders()
	}
	return verdict
}

func (d *Detector) excluded(url string) bool {
	for _, re := range d.cfg.ExcludeRegexes {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// recordError files a recovered per-URL failure. Context cancellation is
// not an error of the URL, so it is never recorded.
func (d *Detector) recordError(url, step string, err error) {
	if errors.Is(err, context.Canceled) || networking.KindOf(err) == networking.ErrKindCanceled {
		return
	}
	d.logger.Errorf("Request to %s failed during %s: %v", url, step, err)
	d.stats.AppendError(report.ErrorRecord{
		URL:     url,
		Type:    string(networking.KindOf(err)),
		Message: err.Error(),
		Context: step,
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
