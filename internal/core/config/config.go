package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverGeoJSON = "geojson"
	DriverRedis   = "redis"
	DriverPostGIS = "postgis"
)

type CatalogCfg struct {
	Driver      string        `yaml:"driver"`
	Dir         string        `yaml:"dir"`
	Name        string        `yaml:"name"`
	RedisAddr   string        `yaml:"redis_addr"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	OpTimeout   time.Duration `yaml:"op_timeout"`
}

type MetricsCfg struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

type EventsCfg struct {
	Enabled bool   `yaml:"enabled"`
	Brokers string `yaml:"brokers"`
	Topic   string `yaml:"topic"`
}

type Config struct {
	RootDir       string     `yaml:"root_dir"`
	Variant       string     `yaml:"variant"`
	Delimiter     string     `yaml:"xyz_delimiter"`
	Products      []string   `yaml:"products"`
	PathCacheSize int        `yaml:"path_cache_size"`
	GDALInfoBin   string     `yaml:"gdalinfo_bin"`
	H3Res         int        `yaml:"h3_res"`
	LogLevel      string     `yaml:"log_level"`
	LogConsole    bool       `yaml:"log_console"`
	LogSampleN    int        `yaml:"log_sample_n"`
	Catalog       CatalogCfg `yaml:"catalog"`
	Metrics       MetricsCfg `yaml:"metrics"`
	Events        EventsCfg  `yaml:"events"`
}

func Defaults() Config {
	return Config{
		RootDir:       ".",
		Variant:       "glacier",
		Delimiter:     " ",
		Products:      []string{"DOP", "TIN", "DSM", "MAP"},
		PathCacheSize: 1024,
		H3Res:         8,
		LogLevel:      "info",
		Catalog: CatalogCfg{
			Driver:    DriverGeoJSON,
			Dir:       ".",
			Name:      "datasets_lv03",
			RedisAddr: "localhost:6379",
			OpTimeout: 2 * time.Second,
		},
		Metrics: MetricsCfg{
			Addr: ":9090",
			Path: "/metrics",
		},
		Events: EventsCfg{
			Brokers: "localhost:9092",
			Topic:   "catalog-entries",
		},
	}
}

func FromEnv() Config {
	cfg := Defaults()
	applyEnv(&cfg)
	return cfg
}

// Load layers defaults, the optional YAML file at path and the environment, in that order.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		f, err := os.Open(path) //nolint:gosec // path is provided by the operator
		if err != nil {
			return Config{}, fmt.Errorf("open config %q: %w", path, err)
		}
		defer f.Close() //nolint:errcheck

		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %q: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.RootDir = getenv("ROOT_DIR", c.RootDir)
	c.Variant = strings.ToLower(getenv("VARIANT", c.Variant))
	c.Delimiter = getraw("XYZ_DELIMITER", c.Delimiter)
	c.Products = getlist("PRODUCTS", c.Products)
	c.PathCacheSize = getint("PATH_CACHE_SIZE", c.PathCacheSize)
	c.GDALInfoBin = getenv("GDALINFO_BIN", c.GDALInfoBin)
	c.H3Res = getint("H3_RES", c.H3Res)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.LogSampleN = getint("LOG_SAMPLE_N", c.LogSampleN)

	c.Catalog.Driver = strings.ToLower(getenv("CATALOG_DRIVER", c.Catalog.Driver))
	c.Catalog.Dir = getenv("CATALOG_DIR", c.Catalog.Dir)
	c.Catalog.Name = getenv("CATALOG_NAME", c.Catalog.Name)
	c.Catalog.RedisAddr = getenv("REDIS_ADDR", c.Catalog.RedisAddr)
	c.Catalog.PostgresDSN = getenv("POSTGRES_DSN", c.Catalog.PostgresDSN)
	c.Catalog.OpTimeout = getduration("CATALOG_OP_TIMEOUT", c.Catalog.OpTimeout)

	c.Metrics.Enabled = getbool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getenv("METRICS_ADDR", c.Metrics.Addr)
	c.Metrics.Path = getenv("METRICS_PATH", c.Metrics.Path)

	c.Events.Enabled = getbool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Brokers = getenv("KAFKA_BROKERS", c.Events.Brokers)
	c.Events.Topic = getenv("KAFKA_TOPIC", c.Events.Topic)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.RootDir) == "" {
		errs = append(errs, errors.New("root_dir is required"))
	}
	switch c.Variant {
	case "glacier", "swisstopo":
	default:
		errs = append(errs, fmt.Errorf("unknown variant %q (want glacier|swisstopo)", c.Variant))
	}
	if c.Delimiter == "" {
		errs = append(errs, errors.New("xyz_delimiter must not be empty"))
	}
	if c.H3Res < 0 || c.H3Res > 15 {
		errs = append(errs, fmt.Errorf("invalid h3_res %d (must be 0..15)", c.H3Res))
	}
	if strings.TrimSpace(c.Catalog.Name) == "" {
		errs = append(errs, errors.New("catalog.name is required"))
	}
	switch c.Catalog.Driver {
	case DriverGeoJSON:
	case DriverRedis:
		if c.Catalog.RedisAddr == "" {
			errs = append(errs, errors.New("catalog.redis_addr is required for the redis driver"))
		}
	case DriverPostGIS:
		if c.Catalog.PostgresDSN == "" {
			errs = append(errs, errors.New("catalog.postgres_dsn is required for the postgis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown catalog driver %q (want geojson|redis|postgis)", c.Catalog.Driver))
	}
	if c.Events.Enabled && strings.TrimSpace(c.Events.Brokers) == "" {
		errs = append(errs, errors.New("events.brokers is required when events are enabled"))
	}
	return errors.Join(errs...)
}

func (c Config) Brokers() []string {
	var out []string
	for b := range strings.SplitSeq(c.Events.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getraw keeps surrounding whitespace, a single space is a valid delimiter
func getraw(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "DOP, dsm,TIN" into upper-cased codes
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
