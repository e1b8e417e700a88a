package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the console.
type Config struct {
	Listen  ListenConfig  `yaml:"listen"`
	Backend BackendConfig `yaml:"backend"`
	Cache   CacheConfig   `yaml:"cache"`
	Poll    PollConfig    `yaml:"poll"`
}

// ListenConfig defines the address the console API listens on and its auth.
type ListenConfig struct {
	APIPort int    `yaml:"api_port"`
	APIBind string `yaml:"api_bind"`
	// Bcrypt hash of the admin API token. Empty disables auth.
	APITokenHash string `yaml:"api_token_hash"`
	TLSCert      string `yaml:"tls_cert"`
	TLSKey       string `yaml:"tls_key"`
}

// BackendConfig points the console at the bot backend HTTP API.
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// Hard cap on any single backend request. Not the advisory threshold.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// Advisory threshold after which a still-pending user load is flagged
	// slow. Does not cancel the request.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
}

// CacheConfig controls the user-detail cache.
type CacheConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// PollConfig controls the periodic stats refresh tasks.
type PollConfig struct {
	StatsInterval    time.Duration `yaml:"stats_interval"`
	RealtimeInterval time.Duration `yaml:"realtime_interval"`
	// Bot info is refreshed every Nth realtime tick, BotInfoDelay after it.
	BotInfoEvery int           `yaml:"bot_info_every"`
	BotInfoDelay time.Duration `yaml:"bot_info_delay"`
	// The stats tasks only run when enabled; the sweep task always runs.
	StatsEnabled    *bool `yaml:"stats_enabled,omitempty"`
	RealtimeEnabled *bool `yaml:"realtime_enabled,omitempty"`
}

// StatsOn reports whether the dashboard stats task should run.
func (p PollConfig) StatsOn() bool {
	return p.StatsEnabled == nil || *p.StatsEnabled
}

// RealtimeOn reports whether the realtime stats task should run.
func (p PollConfig) RealtimeOn() bool {
	return p.RealtimeEnabled == nil || *p.RealtimeEnabled
}

// TLSEnabled returns true if both TLS cert and key paths are configured.
func (lc ListenConfig) TLSEnabled() bool {
	return lc.TLSCert != "" && lc.TLSKey != ""
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with env var substitution.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.APIPort == 0 {
		cfg.Listen.APIPort = 8090
	}
	if cfg.Listen.APIBind == "" {
		cfg.Listen.APIBind = "127.0.0.1"
	}
	if cfg.Backend.RequestTimeout == 0 {
		cfg.Backend.RequestTimeout = 30 * time.Second
	}
	if cfg.Backend.SlowThreshold == 0 {
		cfg.Backend.SlowThreshold = 5 * time.Second
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 5 * time.Minute
	}
	if cfg.Cache.SweepInterval == 0 {
		cfg.Cache.SweepInterval = 10 * time.Minute
	}
	if cfg.Poll.StatsInterval == 0 {
		cfg.Poll.StatsInterval = 10 * time.Second
	}
	if cfg.Poll.RealtimeInterval == 0 {
		cfg.Poll.RealtimeInterval = 5 * time.Second
	}
	if cfg.Poll.BotInfoEvery == 0 {
		cfg.Poll.BotInfoEvery = 3
	}
	if cfg.Poll.BotInfoDelay == 0 {
		cfg.Poll.BotInfoDelay = 500 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not a valid URL", cfg.Backend.BaseURL)
	}
	if cfg.Backend.SlowThreshold < 0 {
		return fmt.Errorf("backend.slow_threshold must not be negative")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if cfg.Poll.BotInfoEvery < 0 {
		return fmt.Errorf("poll.bot_info_every must not be negative")
	}
	return nil
}

// Watcher watches a config file for changes and calls the callback with the new config.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:     path,
		callback: callback,
		watcher:  w,
		stopCh:   make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	// Debounce timer to avoid rapid reloads
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cw.reload()
				})
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		log.Printf("[config] hot-reload failed: %v", err)
		return
	}

	log.Printf("[config] configuration reloaded from %s", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
