// Package config loads the pipeline's environment-driven configuration
// (spec §6), following the getEnvString/getEnvInt + logged-defaults style
// of the teacher's internal/config package, trimmed to the handful of
// settings this pipeline actually reads. An optional YAML file can
// override the same fields before environment variables are applied,
// mirroring the teacher's LoadConfig(configFile) layering.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config holds every environment-sourced setting spec §6 names.
type Config struct {
	UploadDir      string `yaml:"upload_dir"`
	WorkersN       int    `yaml:"workers_n"`
	ElasticUser    string `yaml:"elastic_user"`
	MongoDBAddress string `yaml:"mongodb_address"`
	ElasticHosts   []string `yaml:"elastic_hosts"`
	ListenAddr     string `yaml:"listen_addr"`
}

func defaults() Config {
	return Config{
		UploadDir:      "/tmp",
		WorkersN:       8,
		ElasticUser:    "elastic:changeme",
		MongoDBAddress: "",
		ElasticHosts:   []string{"http://localhost:9200"},
		ListenAddr:     "0.0.0.0:3030",
	}
}

// Load builds a Config from, in order: built-in defaults, an optional YAML
// file at configFile (ignored if empty or unreadable), then environment
// variable overrides — the same three-layer precedence the teacher's
// LoadConfig applies.
func Load(configFile string, logger *logrus.Logger) (Config, error) {
	cfg := defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			logger.WithError(err).Warnf("config: could not read %s, using defaults", configFile)
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			logger.WithError(err).Warnf("config: could not parse %s, using defaults", configFile)
		} else {
			logger.WithField("file", configFile).Info("config: loaded overrides from file")
		}
	}

	applyEnv(&cfg)

	if cfg.WorkersN <= 0 {
		return cfg, fmt.Errorf("config: ULP_WORKERS_N must be positive, got %d", cfg.WorkersN)
	}

	logger.WithFields(logrus.Fields{
		"upload_dir":    cfg.UploadDir,
		"workers_n":     cfg.WorkersN,
		"elastic_hosts": cfg.ElasticHosts,
		"listen_addr":   cfg.ListenAddr,
	}).Info("config: effective configuration")

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("ULP_WORKERS_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WorkersN = n
		}
	}
	if v := os.Getenv("ELASTIC_USER"); v != "" {
		cfg.ElasticUser = v
	}
	if v := os.Getenv("MONGODB_ADDRESS"); v != "" {
		cfg.MongoDBAddress = v
	}
	if v := os.Getenv("ELASTIC_HOSTS"); v != "" {
		cfg.ElasticHosts = strings.Split(v, ",")
	}
	if v := os.Getenv("ULP_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
}

// BasicAuth splits ELASTIC_USER's "user:pass" shape into its two halves.
func (c Config) BasicAuth() (user, pass string, ok bool) {
	parts := strings.SplitN(c.ElasticUser, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
