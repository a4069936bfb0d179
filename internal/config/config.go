// Package config loads classmon settings from the environment, with an
// optional .env file, falling back to the classroom deployment defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultLogLevel = slog.LevelInfo

// Config is the full runtime configuration.
type Config struct {
	MQTTBroker string
	MQTTPort   int
	MQTTTopic  string

	ModelFile string
	CSVLog    string

	OWMAPIKey       string
	City            string
	WeatherTTL      time.Duration
	FallbackTempOut float64

	RefreshInterval time.Duration
	HTTPAddr        string
	OriginPatterns  []string

	LogFile  string
	LogLevel slog.Level
}

// Default returns the settings of the Sukabumi classroom deployment.
func Default() Config {
	return Config{
		MQTTBroker:      "broker.hivemq.com",
		MQTTPort:        1883,
		MQTTTopic:       "kelas/data",
		ModelFile:       "model.json",
		CSVLog:          "live_data_dashboard.csv",
		City:            "Sukabumi,ID",
		WeatherTTL:      10 * time.Minute,
		FallbackTempOut: 25.0,
		RefreshInterval: time.Second,
		HTTPAddr:        ":8080",
		LogFile:         "classmon.log",
		LogLevel:        DefaultLogLevel,
	}
}

// Load builds the configuration in layers: defaults, then the YAML file
// named by CLASSMON_CONFIG (or classmon.yaml when present), then .env and
// the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	c := Default()
	path, explicit := os.LookupEnv("CLASSMON_CONFIG")
	if !explicit {
		path = DefaultFile
	}
	if _, err := os.Stat(path); err == nil || explicit {
		fc, err := LoadFile(path, c)
		if err != nil {
			return c, err
		}
		c = fc
	}

	return ApplyEnv(c, os.LookupEnv)
}

// FromEnv builds a Config from a lookup function, starting from Default.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	return ApplyEnv(Default(), lookup)
}

// ApplyEnv overrides c with every variable lookup reports as set.
func ApplyEnv(c Config, lookup func(string) (string, bool)) (Config, error) {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			if d <= 0 {
				errs = append(errs, fmt.Errorf("%s: must be positive, got %s", key, d))
				return
			}
			*dst = d
		}
	}

	str("MQTT_BROKER", &c.MQTTBroker)
	num("MQTT_PORT", &c.MQTTPort)
	str("MQTT_TOPIC", &c.MQTTTopic)
	str("MODEL_FILE", &c.ModelFile)
	str("CSV_LOG_FILE", &c.CSVLog)
	str("OWM_API_KEY", &c.OWMAPIKey)
	str("CITY_NAME", &c.City)
	dur("WEATHER_TTL", &c.WeatherTTL)
	float("FALLBACK_TEMP_OUT", &c.FallbackTempOut)
	dur("REFRESH_INTERVAL", &c.RefreshInterval)
	str("HTTP_ADDR", &c.HTTPAddr)
	str("LOG_FILE", &c.LogFile)

	if v, ok := lookup("ORIGIN_PATTERNS"); ok && v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.OriginPatterns = append(c.OriginPatterns, p)
			}
		}
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}

	if c.MQTTPort <= 0 || c.MQTTPort > 65535 {
		errs = append(errs, fmt.Errorf("MQTT_PORT: out of range: %d", c.MQTTPort))
	}

	if len(errs) > 0 {
		return c, errors.Join(errs...)
	}
	return c, nil
}

// HTTPEnabled reports whether the dashboard HTTP surface should run.
func (c Config) HTTPEnabled() bool {
	return c.HTTPAddr != "" && c.HTTPAddr != "off"
}
