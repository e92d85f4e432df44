package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rafabd1/Oleander/internal/utils"
)

// CrawlState is the persisted frontier document. Together with the stats
// document it lets an interrupted run resume where it stopped.
type CrawlState struct {
	Queue   []string `json:"queue"`
	Visited []string `json:"visited"`
}

// Store reads and writes the per-site JSON documents under the output
// directory: logs/<site>-logs.json, stats/<site>-stats.json and
// network/<site>-network.json.
type Store struct {
	baseDir string
	logger  utils.Logger
}

// NewStore returns a Store rooted at baseDir.
func NewStore(baseDir string, logger utils.Logger) *Store {
	if logger == nil {
		logger = &utils.NoOpLogger{}
	}
	return &Store{baseDir: baseDir, logger: logger}
}

// EnsureDirs creates the logs, stats and network directories.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{"logs", "stats", "network"} {
		if err := os.MkdirAll(filepath.Join(s.baseDir, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return nil
}

func (s *Store) logsPath(site string) string {
	return filepath.Join(s.baseDir, "logs", site+"-logs.json")
}

func (s *Store) statsPath(site string) string {
	return filepath.Join(s.baseDir, "stats", site+"-stats.json")
}

func (s *Store) networkPath(site string) string {
	return filepath.Join(s.baseDir, "network", site+"-network.json")
}

// LoadCrawlState returns the persisted frontier for site, or nil when no
// usable document exists. A corrupt document is logged and treated as
// absent so a damaged file never blocks a fresh run.
func (s *Store) LoadCrawlState(site string) *CrawlState {
	data, err := os.ReadFile(s.logsPath(site))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf("Could not read crawl log for %s: %v", site, err)
		}
		return nil
	}
	var state CrawlState
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warnf("Ignoring corrupt crawl log for %s: %v", site, err)
		return nil
	}
	return &state
}

// LoadStatistics returns the persisted statistics for site, or nil when no
// usable document exists.
func (s *Store) LoadStatistics(site string) *Statistics {
	data, err := os.ReadFile(s.statsPath(site))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf("Could not read stats for %s: %v", site, err)
		}
		return nil
	}
	var stats Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		s.logger.Warnf("Ignoring corrupt stats for %s: %v", site, err)
		return nil
	}
	if stats.URLs == nil {
		stats.URLs = make(map[string]*URLStats)
	}
	return &stats
}

// Save writes all three documents for site. It runs on normal completion
// and on interruption, so a run can always be resumed.
func (s *Store) Save(site string, state CrawlState, stats *Statistics, trace NetworkTrace) error {
	if state.Queue == nil {
		state.Queue = []string{}
	}
	if state.Visited == nil {
		state.Visited = []string{}
	}
	if err := s.writeJSON(s.logsPath(site), state); err != nil {
		return err
	}
	if err := s.writeJSON(s.statsPath(site), stats); err != nil {
		return err
	}
	return s.writeJSON(s.networkPath(site), trace)
}

func (s *Store) writeJSON(path string, doc interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
