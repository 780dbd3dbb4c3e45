package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultCasualtiesURL = "https://data.techforpalestine.org/api/v2/casualties_daily.min.json"
	DefaultKilledURL     = "https://data.techforpalestine.org/api/v2/killed-in-gaza.min.json"

	// MaxMovingAverageDays bounds the moving average window, both in config and per request.
	MaxMovingAverageDays = 30
	maxAge               = 110
)

// Common contains upstream and presentation parameters shared by every binary.
type Common struct {
	CasualtiesURL     string
	KilledURL         string
	UpstreamTimeout   time.Duration
	RequestsPerMinute float64
	ThemeFile         string
	MovingAverageDays int
	AgeBucketWidth    int
}

// Dashboard describes the HTTP server configuration.
type Dashboard struct {
	Common
	BindAddr string
}

// Snapshot configures the one-shot static render.
type Snapshot struct {
	Common
	OutputPath string
}

// LoadDotEnv reads .env style files into the process environment. Missing files are
// skipped and variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadDashboard builds a Dashboard config from environment variables.
func LoadDashboard() (*Dashboard, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Dashboard{
		Common:   *common,
		BindAddr: getEnv("DASHBOARD_BIND_ADDR", "0.0.0.0:8501"),
	}
	return c, nil
}

// LoadSnapshot builds a Snapshot config from environment variables.
func LoadSnapshot() (*Snapshot, error) {
	common, err := loadCommon()
	if err != nil {
		return nil, err
	}

	c := &Snapshot{
		Common:     *common,
		OutputPath: getEnv("SNAPSHOT_OUTPUT", "dashboard.html"),
	}
	return c, nil
}

func loadCommon() (*Common, error) {
	c := &Common{
		CasualtiesURL:     getEnv("CASUALTIES_URL", DefaultCasualtiesURL),
		KilledURL:         getEnv("KILLED_URL", DefaultKilledURL),
		UpstreamTimeout:   getDuration("UPSTREAM_TIMEOUT", "0s"),
		RequestsPerMinute: getFloat("UPSTREAM_RATE_PER_MIN", 0),
		ThemeFile:         strings.TrimSpace(os.Getenv("THEME_FILE")),
		MovingAverageDays: getInt("MOVING_AVERAGE_DAYS", 7),
		AgeBucketWidth:    getInt("AGE_BUCKET_WIDTH", 10),
	}

	// "none" turns off the per-person dataset; breakdowns then come from the daily totals.
	if strings.EqualFold(c.KilledURL, "none") {
		c.KilledURL = ""
	}

	if !strings.HasPrefix(c.CasualtiesURL, "http://") && !strings.HasPrefix(c.CasualtiesURL, "https://") {
		return nil, fmt.Errorf("CASUALTIES_URL must be an http(s) URL")
	}
	if c.KilledURL != "" && !strings.HasPrefix(c.KilledURL, "http://") && !strings.HasPrefix(c.KilledURL, "https://") {
		return nil, fmt.Errorf("KILLED_URL must be an http(s) URL or \"none\"")
	}
	if c.UpstreamTimeout < 0 {
		return nil, fmt.Errorf("UPSTREAM_TIMEOUT cannot be negative")
	}
	if c.RequestsPerMinute < 0 {
		return nil, fmt.Errorf("UPSTREAM_RATE_PER_MIN cannot be negative")
	}
	if c.MovingAverageDays < 1 || c.MovingAverageDays > MaxMovingAverageDays {
		return nil, fmt.Errorf("MOVING_AVERAGE_DAYS must be between 1 and %d", MaxMovingAverageDays)
	}
	if c.AgeBucketWidth < 1 || c.AgeBucketWidth > maxAge {
		return nil, fmt.Errorf("AGE_BUCKET_WIDTH must be between 1 and %d", maxAge)
	}

	return c, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key, fallback string) time.Duration {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		fd, ferr := time.ParseDuration(fallback)
		if ferr != nil {
			panic(fmt.Sprintf("invalid fallback duration %q: %v", fallback, ferr))
		}
		return fd
	}
	return d
}
