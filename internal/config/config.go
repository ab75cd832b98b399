package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the check/movies/combine pipelines recognize.
// Values come from built-in defaults, then an optional YAML file, then
// environment overrides (PLK_*), in that order.
type Config struct {
	// Paths
	ChannelsFile string   `yaml:"channels_file"` // channel catalog JSON (read/write)
	MoviesFile   string   `yaml:"movies_file"`   // movie catalog JSON (read/write)
	MovieSources []string `yaml:"movie_sources"` // read-only movie JSONs, latest-added wins across files
	M3USources   []string `yaml:"m3u_sources"`   // extra M3U inputs for combine; local path or http(s) URL
	OutputFile   string   `yaml:"output_file"`   // combined playlist
	ObsoleteDir  string   `yaml:"obsolete_dir"`  // offline / excluded-whitelisted exports
	MetricsFile  string   `yaml:"metrics_file"`  // prometheus textfile; "" = metrics disabled

	// Liveness probing
	FastMode           bool          `yaml:"fast_mode"`            // lighter/faster ffmpeg probe
	Retries            int           `yaml:"retries"`              // extra ffmpeg attempts on ambiguous failure
	MaxWorkers         int           `yaml:"max_workers"`          // probe pool size
	LaunchRate         float64       `yaml:"launch_rate"`          // probe launches per second; 0 = unpaced
	HeadRetries        int           `yaml:"head_retries"`         // HEAD/GET attempts per link
	HeadTimeout        time.Duration `yaml:"head_timeout"`         // per HEAD/GET attempt
	ResolveTimeout     time.Duration `yaml:"resolve_timeout"`      // redirect-following GET
	FFmpegTimeout      time.Duration `yaml:"ffmpeg_timeout"`       // whole ffmpeg subprocess
	FFmpegTestDuration time.Duration `yaml:"ffmpeg_test_duration"` // demux window (-t)
	MaxAllowedDuration time.Duration `yaml:"max_allowed_duration"` // above this, exit 0 classifies as slow
	MPVTimeout         time.Duration `yaml:"mpv_timeout"`          // whole mpv subprocess
	MovieWorkers       int           `yaml:"movie_workers"`        // movie probe pool size
	MovieFFmpegTimeout time.Duration `yaml:"movie_ffmpeg_timeout"`

	// External tools (PATH lookup unless overridden)
	FFmpegPath string `yaml:"ffmpeg_path"`
	MPVPath    string `yaml:"mpv_path"`

	// HTTP headers some origins/CDNs require
	UserAgent string `yaml:"user_agent"`
	Referer   string `yaml:"referer"`
	Origin    string `yaml:"origin"`

	// Operator overrides
	ExcludeList      []string `yaml:"exclude_list"`      // channel-name substrings forced online
	WhitelistDomains []string `yaml:"whitelist_domains"` // URL substrings trusted without probing

	// Catalog maintenance
	OfflineAgeDays int `yaml:"offline_age_days"` // clear url after this many offline days

	// Combine
	RecentDays  int      `yaml:"recent_days"` // rolling window for the recent tag
	RecentTag   string   `yaml:"recent_tag"`
	GroupOrder  []string `yaml:"group_order"`  // fixed bucket order; extras appended alphabetically
	MovieGroups []string `yaml:"movie_groups"` // groups sorted recent/year/name instead of name-only
	EPGURL      string   `yaml:"epg_url"`      // url-tvg / x-tvg-url in the playlist header

	// Logging
	LogLevel  string `yaml:"log_level"`
	PrettyLog bool   `yaml:"pretty_log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ChannelsFile: "static_channels.json",
		MoviesFile:   "static_movies.json",
		OutputFile:   "combined.m3u",
		ObsoleteDir:  "obsolete",

		FastMode:           false,
		Retries:            2,
		MaxWorkers:         120,
		LaunchRate:         0,
		HeadRetries:        3,
		HeadTimeout:        5 * time.Second,
		ResolveTimeout:     20 * time.Second,
		FFmpegTimeout:      20 * time.Second,
		FFmpegTestDuration: 2 * time.Second,
		MaxAllowedDuration: 12 * time.Second,
		MPVTimeout:         150 * time.Second,
		MovieWorkers:       64,
		MovieFFmpegTimeout: 30 * time.Second,

		FFmpegPath: "ffmpeg",
		MPVPath:    "mpv",

		UserAgent: "VLC/3.0.18 LibVLC/3.0.18",

		OfflineAgeDays: 10,
		RecentDays:     30,
		RecentTag:      " \U0001F195",

		GroupOrder: []string{
			"Bangla",
			"Bangla News",
			"International News",
			"India", "Pakistan",
			"Movies",
			"Educational",
			"Music",
			"International",
			"Travel",
			"Sports",
			"Religious",
			"Kids",
			"Movies - Bangla",
			"Movies - English",
			"Movies - Hindi",
			"Movies - Hindi Dubbed",
		},
		MovieGroups: []string{
			"Movies - Bangla",
			"Movies - English",
			"Movies - Hindi",
			"Movies - Hindi Dubbed",
		},

		LogLevel:  "info",
		PrettyLog: true,
	}
}

// Load builds the config: defaults, then the YAML file at path (optional;
// "" tries PLK_CONFIG, then ./playlist-keeper.yaml), then env overrides.
// Call LoadEnvFile(".env") before Load to use a .env file.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		path = os.Getenv("PLK_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("playlist-keeper.yaml"); err == nil {
			path = "playlist-keeper.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}
	c.applyEnv()
	c.clamp()
	return c, nil
}

func (c *Config) applyEnv() {
	c.ChannelsFile = getEnv("PLK_CHANNELS_FILE", c.ChannelsFile)
	c.MoviesFile = getEnv("PLK_MOVIES_FILE", c.MoviesFile)
	c.OutputFile = getEnv("PLK_OUTPUT_FILE", c.OutputFile)
	c.ObsoleteDir = getEnv("PLK_OBSOLETE_DIR", c.ObsoleteDir)
	c.MetricsFile = getEnv("PLK_METRICS_FILE", c.MetricsFile)
	c.MovieSources = getEnvList("PLK_MOVIE_SOURCES", c.MovieSources)
	c.M3USources = getEnvList("PLK_M3U_SOURCES", c.M3USources)

	c.FastMode = getEnvBool("PLK_FAST_MODE", c.FastMode)
	c.Retries = getEnvInt("PLK_RETRIES", c.Retries)
	c.MaxWorkers = getEnvInt("PLK_MAX_WORKERS", c.MaxWorkers)
	c.LaunchRate = getEnvFloat("PLK_LAUNCH_RATE", c.LaunchRate)
	c.HeadRetries = getEnvInt("PLK_HEAD_RETRIES", c.HeadRetries)
	c.HeadTimeout = getEnvDuration("PLK_HEAD_TIMEOUT", c.HeadTimeout)
	c.ResolveTimeout = getEnvDuration("PLK_RESOLVE_TIMEOUT", c.ResolveTimeout)
	c.FFmpegTimeout = getEnvDuration("PLK_FFMPEG_TIMEOUT", c.FFmpegTimeout)
	c.FFmpegTestDuration = getEnvDuration("PLK_FFMPEG_TEST_DURATION", c.FFmpegTestDuration)
	c.MaxAllowedDuration = getEnvDuration("PLK_MAX_ALLOWED_DURATION", c.MaxAllowedDuration)
	c.MPVTimeout = getEnvDuration("PLK_MPV_TIMEOUT", c.MPVTimeout)
	c.MovieWorkers = getEnvInt("PLK_MOVIE_WORKERS", c.MovieWorkers)
	c.MovieFFmpegTimeout = getEnvDuration("PLK_MOVIE_FFMPEG_TIMEOUT", c.MovieFFmpegTimeout)

	c.FFmpegPath = getEnv("FFMPEG_BIN", getEnv("PLK_FFMPEG_PATH", c.FFmpegPath))
	c.MPVPath = getEnv("MPV_PATH", getEnv("PLK_MPV_PATH", c.MPVPath))

	c.UserAgent = getEnv("PLK_USER_AGENT", c.UserAgent)
	c.Referer = getEnv("PLK_REFERER", c.Referer)
	c.Origin = getEnv("PLK_ORIGIN", c.Origin)

	c.ExcludeList = getEnvList("PLK_EXCLUDE_LIST", c.ExcludeList)
	c.WhitelistDomains = getEnvList("PLK_WHITELIST_DOMAINS", c.WhitelistDomains)

	c.OfflineAgeDays = getEnvInt("PLK_OFFLINE_AGE_DAYS", c.OfflineAgeDays)
	c.RecentDays = getEnvInt("PLK_RECENT_DAYS", c.RecentDays)
	c.EPGURL = getEnv("PLK_EPG_URL", c.EPGURL)

	c.LogLevel = getEnv("PLK_LOG_LEVEL", c.LogLevel)
	c.PrettyLog = getEnvBool("PLK_PRETTY_LOG", c.PrettyLog)
}

func (c *Config) clamp() {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 120
	}
	if c.MovieWorkers <= 0 {
		c.MovieWorkers = 64
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.HeadRetries <= 0 {
		c.HeadRetries = 3
	}
	if c.HeadTimeout <= 0 {
		c.HeadTimeout = 5 * time.Second
	}
	if c.FFmpegTimeout <= 0 {
		c.FFmpegTimeout = 20 * time.Second
	}
	if c.FFmpegTestDuration <= 0 {
		c.FFmpegTestDuration = 2 * time.Second
	}
	if c.MaxAllowedDuration <= 0 {
		c.MaxAllowedDuration = 12 * time.Second
	}
	if c.MPVTimeout <= 0 {
		c.MPVTimeout = 150 * time.Second
	}
	if c.OfflineAgeDays <= 0 {
		c.OfflineAgeDays = 10
	}
	if c.RecentDays <= 0 {
		c.RecentDays = 30
	}
}

// Headers returns the probe header set as a map; empty values are omitted.
func (c *Config) Headers() map[string]string {
	h := map[string]string{"Accept": "*/*"}
	if c.UserAgent != "" {
		h["User-Agent"] = c.UserAgent
	}
	if c.Referer != "" {
		h["Referer"] = c.Referer
	}
	if c.Origin != "" {
		h["Origin"] = c.Origin
	}
	return h
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
