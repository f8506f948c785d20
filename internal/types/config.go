package types

import (
	"context"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DelayRange is a uniform random delay policy
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick draws a delay uniformly from [Min, Max]
func (d DelayRange) Pick(rng *rand.Rand) time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rng.Int63n(int64(d.Max-d.Min)+1))
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the default SleepFunc
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config holds the configuration for a scrape run
type Config struct {
	Timeout           time.Duration
	ProbeTimeout      time.Duration
	ProbeURL          string
	ProbeWorkers      int
	MaxPages          int
	PageDelay         DelayRange
	SearchDelay       DelayRange
	UserAgents        []string
	RequestsPerSecond float64
	CloudflareBypass  bool
	BaseURLs          map[Source]string
	OutputDir         string
	MetricsTextfile   string

	// Rand drives header, proxy and delay choices. Tests pass a seeded source.
	Rand  *rand.Rand
	Sleep SleepFunc
}

// DefaultUserAgents is the browser-like User-Agent pool
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		ProbeTimeout: 15 * time.Second,
		ProbeURL:     "http://httpbin.org/ip",
		ProbeWorkers: 8,
		MaxPages:     10,
		PageDelay:    DelayRange{Min: 3 * time.Second, Max: 8 * time.Second},
		SearchDelay:  DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
		UserAgents:   DefaultUserAgents,
		OutputDir:    ".",
		Rand:         rand.New(rand.NewSource(time.Now().UnixNano())),
		Sleep:        SleepContext,
	}
}

// BaseURL returns the configured origin for a source, or fallback
func (c *Config) BaseURL(s Source, fallback string) string {
	if u, ok := c.BaseURLs[s]; ok && u != "" {
		return u
	}
	return fallback
}

// Delay waits for a duration drawn from d, using the configured random source and sleeper
func (c *Config) Delay(ctx context.Context, d DelayRange) (time.Duration, error) {
	rng := c.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	wait := d.Pick(rng)
	return wait, sleep(ctx, wait)
}

// Clone returns a copy with its own random source, for concurrent runs
func (c *Config) Clone() *Config {
	cp := *c
	cp.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	cp.BaseURLs = make(map[Source]string, len(c.BaseURLs))
	for k, v := range c.BaseURLs {
		cp.BaseURLs[k] = v
	}
	return &cp
}

// LoadConfig reads .env (if present) and REVIEWS_* environment variables on top of DefaultConfig
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.Timeout = getEnvDuration("REVIEWS_TIMEOUT", cfg.Timeout)
	cfg.ProbeTimeout = getEnvDuration("REVIEWS_PROBE_TIMEOUT", cfg.ProbeTimeout)
	cfg.ProbeURL = getEnv("REVIEWS_PROBE_URL", cfg.ProbeURL)
	cfg.ProbeWorkers = getEnvInt("REVIEWS_PROBE_WORKERS", cfg.ProbeWorkers)
	cfg.MaxPages = getEnvInt("REVIEWS_MAX_PAGES", cfg.MaxPages)
	cfg.PageDelay.Min = getEnvDuration("REVIEWS_PAGE_DELAY_MIN", cfg.PageDelay.Min)
	cfg.PageDelay.Max = getEnvDuration("REVIEWS_PAGE_DELAY_MAX", cfg.PageDelay.Max)
	cfg.RequestsPerSecond = getEnvFloat("REVIEWS_RPS", cfg.RequestsPerSecond)
	cfg.CloudflareBypass = getEnvBool("REVIEWS_CLOUDFLARE_BYPASS", cfg.CloudflareBypass)
	cfg.OutputDir = getEnv("REVIEWS_OUTPUT_DIR", cfg.OutputDir)
	cfg.MetricsTextfile = getEnv("REVIEWS_METRICS_TEXTFILE", cfg.MetricsTextfile)
	return cfg
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
