package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rafabd1/Oleander/internal/config"
	"github.com/rafabd1/Oleander/internal/core"
	"github.com/rafabd1/Oleander/internal/input"
	"github.com/rafabd1/Oleander/internal/networking"
	"github.com/rafabd1/Oleander/internal/report"
	"github.com/rafabd1/Oleander/internal/utils"
)

const envPrefix = "OLEANDER"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	defaults := config.GetDefaultConfig()

	cmd := &cobra.Command{
		Use:   "oleander",
		Short: "Web Cache Deception detector",
		Long: "Oleander crawls a target website and checks whether responses get cached,\n" +
			"which cache products sit in front of the origin, and whether a cache-busted\n" +
			"request still reaches the stored entry, using timed Date header comparisons.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("target", "t", "", "Target website host to crawl and test")
	flags.StringP("url", "u", "", "Single URL to test instead of crawling")
	flags.BoolP("retest", "r", false, "Discard saved state for the site and start over")
	flags.StringP("cookie", "c", "", "JSON file with session cookies to send on every request")
	flags.IntP("max", "m", defaults.MaxURLsPerDomain, "Maximum URLs to take per domain or subdomain")
	flags.IntP("domains", "d", defaults.MaxDomains, "Maximum domains and subdomains to take URLs from")
	flags.StringP("exclude", "x", "", "Comma-separated regexes; matching URLs are skipped")
	flags.Bool("all", false, "Keep probing after the first cached URL finishes its cycle")
	flags.StringP("output", "o", defaults.OutputDir, "Directory receiving the logs/, stats/ and network/ documents")
	flags.Duration("timeout", defaults.RequestTimeout, "HTTP request timeout")
	flags.String("proxy", "", "Proxy URL for all requests (e.g. http://127.0.0.1:8080)")
	flags.BoolP("insecure", "k", false, "Skip TLS certificate verification")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header to send")
	flags.BoolP("reproducible", "R", false, "Fix the random seed so runs are reproducible")
	flags.BoolP("debug", "D", false, "Enable debug logging")
	flags.Bool("no-color", false, "Disable colored log output")
	flags.Bool("silent", false, "Suppress everything except errors")
	flags.String("config", "", "Optional config file (YAML or JSON)")

	cmd.MarkFlagsMutuallyExclusive("target", "url")

	return cmd
}

// loadConfig resolves the effective configuration: flags win over
// environment variables (OLEANDER_*), which win over the optional config
// file, which wins over built-in defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := config.GetDefaultConfig()
	cfg.Target = v.GetString("target")
	cfg.URL = v.GetString("url")
	cfg.Retest = v.GetBool("retest")
	cfg.CookieFile = v.GetString("cookie")
	cfg.MaxURLsPerDomain = v.GetInt("max")
	cfg.MaxDomains = v.GetInt("domains")
	cfg.Exclude = v.GetString("exclude")
	cfg.TestAll = v.GetBool("all")
	cfg.OutputDir = v.GetString("output")
	cfg.RequestTimeout = v.GetDuration("timeout")
	cfg.Proxy = v.GetString("proxy")
	cfg.InsecureSkipVerify = v.GetBool("insecure")
	cfg.Reproducible = v.GetBool("reproducible")
	cfg.Debug = v.GetBool("debug")
	cfg.NoColor = v.GetBool("no-color")
	cfg.Silent = v.GetBool("silent")
	if ua := v.GetString("user-agent"); ua != "" {
		cfg.UserAgent = ua
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	level := utils.LevelInfo
	if cfg.Debug {
		level = utils.LevelDebug
	}
	logger := utils.NewDefaultLogger(level, cfg.NoColor, cfg.Silent)

	logger.Debugf("Configuration: %s", cfg.String())

	if cfg.CookieFile != "" {
		cookies, err := input.LoadCookies(cfg.CookieFile)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		cfg.Cookies = cookies
		logger.Infof("Using %d provided cookie(s) as the victim session", len(cookies))
	}

	store := report.NewStore(cfg.OutputDir, logger)
	if err := store.EnsureDirs(); err != nil {
		return err
	}

	client, err := networking.NewClient(cfg, logger)
	if err != nil {
		return err
	}

	crawler := core.NewCrawler(cfg.Site, cfg.MaxURLsPerDomain, cfg.MaxDomains, cfg.ExcludedExtensions, logger)
	stats := report.NewStatistics(cfg.Site)
	trace := report.NewNetworkTrace()

	if !cfg.Retest {
		if state := store.LoadCrawlState(cfg.Site); state != nil {
			crawler.SetVisited(state.Visited)
			crawler.SetQueue(state.Queue)
			logger.Infof("Resumed state for %s: %d queued, %d visited", cfg.Site, len(state.Queue), len(state.Visited))
		}
		if saved := store.LoadStatistics(cfg.Site); saved != nil {
			stats = saved
		}
	}

	if cfg.Reproducible {
		logger.Infof("Using a fixed random seed, results are reproducible")
	}

	seedFrontier(crawler, cfg)
	if !crawler.ShouldContinue() {
		logger.Infof("Nothing left to test for %s. Exiting.", cfg.Site)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("Started testing site: %s", cfg.Site)
	detector := core.NewDetector(cfg, client, crawler, stats, trace, logger)
	results := detector.Run(ctx)

	if ctx.Err() != nil {
		logger.Warnf("Interrupted, saving state so the run can be resumed")
	}

	state := report.CrawlState{Queue: crawler.Queue(), Visited: crawler.Visited()}
	if err := store.Save(cfg.Site, state, stats, trace); err != nil {
		logger.Errorf("Failed to save run documents: %v", err)
		return err
	}

	summarize(logger, cfg.Site, results, stats)
	return nil
}

// seedFrontier queues the starting URLs: the single URL when one was
// given, otherwise both schemes of the site and its www variant.
func seedFrontier(crawler *core.Crawler, cfg *config.Config) {
	if cfg.SingleURL() {
		crawler.AddToQueue(cfg.URL)
		return
	}
	for _, scheme := range []string{"https", "http"} {
		crawler.AddToQueue(fmt.Sprintf("%s://%s/", scheme, cfg.Site))
		if !strings.HasPrefix(cfg.Site, "www.") {
			crawler.AddToQueue(fmt.Sprintf("%s://www.%s/", scheme, cfg.Site))
		}
	}
}

func summarize(logger utils.Logger, site string, results []core.DetectionResult, stats *report.Statistics) {
	for _, res := range results {
		switch {
		case res.DefeatsCache == nil:
			logger.Infof("%s: cached, busted comparison did not complete", res.URL)
		case *res.DefeatsCache:
			logger.Infof("%s: cache busting works, responses are keyed on the full request", res.URL)
		default:
			logger.Warnf("%s: cache busting defeated, the cache serves stored entries across keys", res.URL)
		}
	}
	logger.Infof("Finished testing site: %s (%d URL(s) admitted, %d error(s))", site, len(results), len(stats.Errors))
}
