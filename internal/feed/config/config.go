// Package config holds the run parameters and dataset locations of a feed run.
// Precedence: defaults < YAML file < environment (.env included) < CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/chenzhangda16/web3-feed/internal/feed/ids"
	"github.com/chenzhangda16/web3-feed/internal/feed/neighbors"
	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
	"github.com/chenzhangda16/web3-feed/internal/feed/topics"
	"github.com/chenzhangda16/web3-feed/internal/feed/trust"
)

// Dataset names.
const (
	Transactions = "transactions"
	TopicRecords = "topic_records"
	Peers        = "peers"
	Topics       = "topics"
)

const DefaultSeed = "0x857c86988c53c1bc5bff75edfb97893fa40a8000"

var ErrInvalid = errors.New("config: invalid")

type Kafka struct {
	Brokers     []string `yaml:"brokers,omitempty"`
	DedupTTL    int64    `yaml:"dedup_ttl_sec,omitempty"`
	TxsPerBlock int      `yaml:"txs_per_block,omitempty"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

type Postgres struct {
	DSN string `yaml:"dsn,omitempty"`
}

type Config struct {
	Seed           string   `yaml:"seed"`
	Limit          int      `yaml:"limit"`
	Iterations     int      `yaml:"iterations"`
	PreTrustWeight float64  `yaml:"pre_trust_weight"`
	DecayRate      float64  `yaml:"decay_rate"`
	NowHours       *float64 `yaml:"now_hours,omitempty"`
	Tolerance      float64  `yaml:"tolerance,omitempty"`
	Workers        int      `yaml:"workers,omitempty"`
	ExcludeSeed    bool     `yaml:"exclude_seed,omitempty"`
	// SkipUnchanged skips saving when out_dir's manifest has the same fingerprint.
	SkipUnchanged bool `yaml:"skip_unchanged,omitempty"`

	// OutDir holds the run manifest and the output lock.
	OutDir   string            `yaml:"out_dir"`
	Datasets map[string]string `yaml:"datasets"`

	Kafka    Kafka    `yaml:"kafka,omitempty"`
	S3       S3       `yaml:"s3,omitempty"`
	Postgres Postgres `yaml:"postgres,omitempty"`
}

func Default() *Config {
	return &Config{
		Seed:           DefaultSeed,
		Limit:          neighbors.Limit,
		Iterations:     trust.DefaultIterations,
		PreTrustWeight: trust.DefaultWeight,
		DecayRate:      topics.DefaultDecayRate,
		Workers:        1,
		OutDir:         "./data",
		Datasets: map[string]string{
			Transactions: "./data/transactions.csv",
			TopicRecords: "./data/topic_records.csv",
			Peers:        "./data/peers.csv",
			Topics:       "./data/topics.csv",
		},
	}
}

// Load returns defaults overlaid with the YAML file at path (skipped when path is
// empty) and then the environment. Datasets missing from the file keep their
// default location.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
		}
	}
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	defaults := c.Datasets
	c.Datasets = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	for k, v := range defaults {
		if _, ok := c.Datasets[k]; !ok {
			if c.Datasets == nil {
				c.Datasets = map[string]string{}
			}
			c.Datasets[k] = v
		}
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("cannot load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays FEED_* variables, PG_DSN and the FEED_S3_* credentials.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("FEED_SEED", &c.Seed)
	str("FEED_OUT_DIR", &c.OutDir)
	str("PG_DSN", &c.Postgres.DSN)
	str("FEED_S3_ENDPOINT", &c.S3.Endpoint)
	str("FEED_S3_REGION", &c.S3.Region)
	str("FEED_S3_ACCESS_KEY", &c.S3.AccessKey)
	str("FEED_S3_SECRET_KEY", &c.S3.SecretKey)

	if v := strings.TrimSpace(getenv("FEED_S3_USE_SSL")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: FEED_S3_USE_SSL=%q", ErrInvalid, v)
		}
		c.S3.UseSSL = b
	}
	if v := strings.TrimSpace(getenv("FEED_KAFKA_BROKERS")); v != "" {
		c.Kafka.Brokers = splitBrokers(v)
	}
	if v := strings.TrimSpace(getenv("FEED_NOW_HOURS")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: FEED_NOW_HOURS=%q", ErrInvalid, v)
		}
		c.NowHours = &f
	}
	return nil
}

// Validate checks ranges and canonicalises the seed.
func (c *Config) Validate() error {
	c.Seed = ids.Canonical(c.Seed)
	var errs []error
	if c.Seed == "" {
		errs = append(errs, errors.New("seed is empty"))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit %d < 0", c.Limit))
	}
	if c.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations %d < 1", c.Iterations))
	}
	if c.PreTrustWeight < 0 || c.PreTrustWeight > 1 {
		errs = append(errs, fmt.Errorf("pre_trust_weight %v not in [0,1]", c.PreTrustWeight))
	}
	if c.DecayRate <= 0 {
		errs = append(errs, fmt.Errorf("decay_rate %v <= 0", c.DecayRate))
	}
	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("tolerance %v < 0", c.Tolerance))
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	for _, name := range []string{Transactions, TopicRecords, Peers, Topics} {
		raw, ok := c.Datasets[name]
		if !ok {
			errs = append(errs, fmt.Errorf("dataset %q not configured", name))
			continue
		}
		if _, err := storage.ParseLocation(raw); err != nil {
			errs = append(errs, fmt.Errorf("dataset %q: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Location parses the named dataset's location. Relative CSV and RocksDB paths
// resolve against the working directory.
func (c *Config) Location(name string) (storage.Location, error) {
	raw, ok := c.Datasets[name]
	if !ok {
		return storage.Location{}, fmt.Errorf("%w: dataset %q not configured", ErrInvalid, name)
	}
	loc, err := storage.ParseLocation(raw)
	if err != nil {
		return storage.Location{}, err
	}
	if loc.Scheme == storage.SchemeCSV || loc.Scheme == storage.SchemeRocks {
		loc.Target = filepath.Clean(loc.Target)
	}
	return loc, nil
}

// Write saves c as YAML, e.g. for "feed gen" to leave a runnable config behind.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// splitBrokers parses "host:9092, host2:9092" into a list, dropping empties.
func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		if x = strings.TrimSpace(x); x != "" {
			out = append(out, x)
		}
	}
	return out
}
