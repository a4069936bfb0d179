package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when present and CLASSMON_CONFIG is unset.
const DefaultFile = "classmon.yaml"

// fileConfig is the YAML layout. Empty fields keep the base value.
type fileConfig struct {
	MQTT struct {
		Broker string `yaml:"broker"`
		Port   int    `yaml:"port"`
		Topic  string `yaml:"topic"`
	} `yaml:"mqtt"`
	ModelFile  string `yaml:"model_file"`
	CSVLogFile string `yaml:"csv_log_file"`
	Weather    struct {
		APIKey          string   `yaml:"api_key"`
		City            string   `yaml:"city"`
		TTL             string   `yaml:"ttl"`
		FallbackTempOut *float64 `yaml:"fallback_temp_out"`
	} `yaml:"weather"`
	RefreshInterval string `yaml:"refresh_interval"`
	HTTP            struct {
		Addr           string   `yaml:"addr"`
		OriginPatterns []string `yaml:"origin_patterns"`
	} `yaml:"http"`
	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// LoadFile overlays the YAML file at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return base, fmt.Errorf("failed to parse config: %w", err)
	}

	c := base
	setString(&c.MQTTBroker, fc.MQTT.Broker)
	if fc.MQTT.Port != 0 {
		c.MQTTPort = fc.MQTT.Port
	}
	setString(&c.MQTTTopic, fc.MQTT.Topic)
	setString(&c.ModelFile, fc.ModelFile)
	setString(&c.CSVLog, fc.CSVLogFile)
	setString(&c.OWMAPIKey, fc.Weather.APIKey)
	setString(&c.City, fc.Weather.City)
	if fc.Weather.FallbackTempOut != nil {
		c.FallbackTempOut = *fc.Weather.FallbackTempOut
	}
	setString(&c.HTTPAddr, fc.HTTP.Addr)
	if len(fc.HTTP.OriginPatterns) > 0 {
		c.OriginPatterns = fc.HTTP.OriginPatterns
	}
	setString(&c.LogFile, fc.Log.File)

	if err := setDuration(&c.WeatherTTL, "weather.ttl", fc.Weather.TTL); err != nil {
		return base, err
	}
	if err := setDuration(&c.RefreshInterval, "refresh_interval", fc.RefreshInterval); err != nil {
		return base, err
	}
	if fc.Log.Level != "" {
		if err := c.LogLevel.UnmarshalText([]byte(fc.Log.Level)); err != nil {
			return base, fmt.Errorf("log.level: %w", err)
		}
	}

	return c, nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive, got %s", key, d)
	}
	*dst = d
	return nil
}
