package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Room struct {
		PointsPerCorrect  int    `yaml:"points_per_correct"`
		AnswerSlack       string `yaml:"answer_slack"`
		RevealGrace       string `yaml:"reveal_grace"`
		ReaperInterval    string `yaml:"reaper_interval"`
		InactivityTimeout string `yaml:"inactivity_timeout"`
		DefaultTimeLimit  int    `yaml:"default_time_limit"`
		RegistryTTL       string `yaml:"registry_ttl"`
	} `yaml:"room"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty
// or malformed.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
