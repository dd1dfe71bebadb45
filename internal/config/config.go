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
	"gopkg.in/yaml.v3"
)

type MQTT struct {
	Broker      string // empty disables the broadcast
	ClientID    string
	TopicPrefix string
	QoS         byte
}

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC listener

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/rollcall.db"

	// Attendance rules
	SiteTimezone   string // used for sites without a valid timezone
	MinDwell       time.Duration
	SuppressWindow time.Duration
	MatchThreshold float64
	SampleInterval time.Duration
	MaxClockSkew   time.Duration // how far a client "at" may drift from server time

	MQTT          MQTT
	CORSOrigins   []string
	KnownScanners []string

	// Scan event retention
	ScanEventRetentionDays int // 0 = keep forever
	PruneIntervalHours     int // how often the pruner runs (default 6)

	// ServerURL is where the scan command sends its events.
	ServerURL string
}

// Load reads a local .env (if any), the ROLLCALL_* environment and then the
// YAML file named by ROLLCALL_CONFIG_FILE (if set). Values in the file win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := FromEnv()
	if path := strings.TrimSpace(os.Getenv("ROLLCALL_CONFIG_FILE")); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func FromEnv() Config {
	env := strings.ToLower(getenvDefault("ROLLCALL_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: getenvDefault("ROLLCALL_HTTP_ADDR", ":8080"),
		GRPCAddr: os.Getenv("ROLLCALL_GRPC_ADDR"),
		Env:      env,
		DBPath:   getenvDefault("ROLLCALL_DB_PATH", "./data/rollcall.db"),

		SiteTimezone:   getenvDefault("ROLLCALL_SITE_TIMEZONE", "UTC"),
		MinDwell:       getenvDuration("ROLLCALL_MIN_DWELL", 5*time.Minute),
		SuppressWindow: getenvDuration("ROLLCALL_SUPPRESS_WINDOW", 30*time.Second),
		MatchThreshold: getenvFloat("ROLLCALL_MATCH_THRESHOLD", 0.4),
		SampleInterval: getenvDuration("ROLLCALL_SAMPLE_INTERVAL", 500*time.Millisecond),
		MaxClockSkew:   getenvDuration("ROLLCALL_MAX_CLOCK_SKEW", 2*time.Minute),

		MQTT: MQTT{
			Broker:      os.Getenv("ROLLCALL_MQTT_BROKER"),
			ClientID:    getenvDefault("ROLLCALL_MQTT_CLIENT_ID", "rollcall-server"),
			TopicPrefix: getenvDefault("ROLLCALL_MQTT_TOPIC_PREFIX", "rollcall"),
			QoS:         byte(min(getenvInt("ROLLCALL_MQTT_QOS", 1), 2)),
		},
		CORSOrigins:   splitCSV(os.Getenv("ROLLCALL_CORS_ORIGINS")),
		KnownScanners: splitCSV(os.Getenv("ROLLCALL_KNOWN_SCANNERS")),

		ScanEventRetentionDays: getenvInt("ROLLCALL_SCAN_EVENT_RETENTION_DAYS", 90),
		PruneIntervalHours:     getenvInt("ROLLCALL_PRUNE_INTERVAL_HOURS", 6),

		ServerURL: getenvDefault("ROLLCALL_SERVER_URL", "http://localhost:8080"),
	}
}

// fileConfig mirrors Config for the YAML overlay. Nil fields leave the
// current value alone.
type fileConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
	Env      string `yaml:"env"`
	DBPath   string `yaml:"db_path"`

	SiteTimezone   string   `yaml:"site_timezone"`
	MinDwell       string   `yaml:"min_dwell"`
	SuppressWindow string   `yaml:"suppress_window"`
	MatchThreshold *float64 `yaml:"match_threshold"`
	SampleInterval string   `yaml:"sample_interval"`
	MaxClockSkew   string   `yaml:"max_clock_skew"`

	MQTT struct {
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
		QoS         *byte  `yaml:"qos"`
	} `yaml:"mqtt"`

	CORSOrigins   []string `yaml:"cors_origins"`
	KnownScanners []string `yaml:"known_scanners"`

	ScanEventRetentionDays *int `yaml:"scan_event_retention_days"`
	PruneIntervalHours     *int `yaml:"prune_interval_hours"`

	ServerURL string `yaml:"server_url"`
}

// ApplyFile overlays the YAML file at path onto c.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.HTTPAddr, f.HTTPAddr)
	setString(&c.GRPCAddr, f.GRPCAddr)
	if env := strings.ToLower(f.Env); env == "dev" || env == "prod" {
		c.Env = env
	}
	setString(&c.DBPath, f.DBPath)
	setString(&c.SiteTimezone, f.SiteTimezone)

	for _, d := range []struct {
		dst *time.Duration
		raw string
		key string
	}{
		{&c.MinDwell, f.MinDwell, "min_dwell"},
		{&c.SuppressWindow, f.SuppressWindow, "suppress_window"},
		{&c.SampleInterval, f.SampleInterval, "sample_interval"},
		{&c.MaxClockSkew, f.MaxClockSkew, "max_clock_skew"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil || v < 0 {
			return fmt.Errorf("config file %s: %s: invalid duration %q", path, d.key, d.raw)
		}
		*d.dst = v
	}
	if f.MatchThreshold != nil {
		c.MatchThreshold = *f.MatchThreshold
	}

	setString(&c.MQTT.Broker, f.MQTT.Broker)
	setString(&c.MQTT.ClientID, f.MQTT.ClientID)
	setString(&c.MQTT.TopicPrefix, f.MQTT.TopicPrefix)
	if f.MQTT.QoS != nil && *f.MQTT.QoS <= 2 {
		c.MQTT.QoS = *f.MQTT.QoS
	}

	if f.CORSOrigins != nil {
		c.CORSOrigins = f.CORSOrigins
	}
	if f.KnownScanners != nil {
		c.KnownScanners = f.KnownScanners
	}
	if f.ScanEventRetentionDays != nil && *f.ScanEventRetentionDays >= 0 {
		c.ScanEventRetentionDays = *f.ScanEventRetentionDays
	}
	if f.PruneIntervalHours != nil && *f.PruneIntervalHours > 0 {
		c.PruneIntervalHours = *f.PruneIntervalHours
	}
	setString(&c.ServerURL, f.ServerURL)
	return nil
}

// Location resolves SiteTimezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if loc, err := time.LoadLocation(c.SiteTimezone); err == nil {
		return loc
	}
	return time.UTC
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
