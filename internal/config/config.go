package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Crawl  CrawlConfig  `yaml:"crawl" mapstructure:"crawl"`
	Census CensusConfig `yaml:"census" mapstructure:"census"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// CrawlConfig configures the store-locator walk.
type CrawlConfig struct {
	StartURL    string          `yaml:"start_url" mapstructure:"start_url"`
	Concurrency int             `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec  float64         `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int             `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string          `yaml:"user_agent" mapstructure:"user_agent"`
	States      []string        `yaml:"states" mapstructure:"states"`
	NameStride  int             `yaml:"name_stride" mapstructure:"name_stride"`
	ExtractMode string          `yaml:"extract_mode" mapstructure:"extract_mode"`
	AddressJoin string          `yaml:"address_join" mapstructure:"address_join"`
	Selectors   SelectorsConfig `yaml:"selectors" mapstructure:"selectors"`
}

// SelectorsConfig holds the CSS selectors for each level of the walk.
// Text selectors read the direct text nodes of every match; link selectors
// read the href attribute.
type SelectorsConfig struct {
	StateNames    string `yaml:"state_names" mapstructure:"state_names"`
	StateLinks    string `yaml:"state_links" mapstructure:"state_links"`
	CountyNames   string `yaml:"county_names" mapstructure:"county_names"`
	CountyLinks   string `yaml:"county_links" mapstructure:"county_links"`
	LocationNames string `yaml:"location_names" mapstructure:"location_names"`
	AddressParts  string `yaml:"address_parts" mapstructure:"address_parts"`
	Phones        string `yaml:"phones" mapstructure:"phones"`
	Block         string `yaml:"block" mapstructure:"block"`
}

// CensusConfig configures population enrichment.
type CensusConfig struct {
	Strategy    string `yaml:"strategy" mapstructure:"strategy"`
	APIURL      string `yaml:"api_url" mapstructure:"api_url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	Fields      string `yaml:"fields" mapstructure:"fields"`
	DatasetPath string `yaml:"dataset_path" mapstructure:"dataset_path"`
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// OutputConfig selects the record sink.
type OutputConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Path   string `yaml:"path" mapstructure:"path"`
	Schema string `yaml:"schema" mapstructure:"schema"`
}

// StoreConfig configures the database sinks.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default selectors for locations.ups.com.
const (
	listLink = "#main-container > div > div:nth-child(3) > div > div > div > div > ul > li > div > a"

	DefaultStartURL = "https://locations.ups.com/us/en/"
	DefaultAPIURL   = "https://api.census.gov/data/2020/dec/pl"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LOCATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("crawl.start_url", DefaultStartURL)
	v.SetDefault("crawl.concurrency", 8)
	v.SetDefault("crawl.rate_per_sec", 4.0)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; LocatorBot/1.0)")
	v.SetDefault("crawl.states", []string{})
	v.SetDefault("crawl.name_stride", 4)
	v.SetDefault("crawl.extract_mode", "positional")
	v.SetDefault("crawl.address_join", "raw")
	v.SetDefault("crawl.selectors.state_names", ".ga-link")
	v.SetDefault("crawl.selectors.state_links", listLink)
	v.SetDefault("crawl.selectors.county_names", listLink+" > span")
	v.SetDefault("crawl.selectors.county_links", listLink)
	v.SetDefault("crawl.selectors.location_names", ".location-name")
	v.SetDefault("crawl.selectors.address_parts", ".address div, .location-name strong")
	v.SetDefault("crawl.selectors.phones", ".phone")
	v.SetDefault("crawl.selectors.block", ".location")
	v.SetDefault("census.strategy", "api")
	v.SetDefault("census.api_url", DefaultAPIURL)
	v.SetDefault("census.fields", "NAME,P1_001N")
	v.SetDefault("census.temp_dir", "/tmp/locator")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.path", "locations.csv")
	v.SetDefault("output.schema", "full")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode.
// Every problem found is reported in a single error.
func (c *Config) Validate(mode string) error {
	var errs []string

	checkCensus := func() {
		switch c.Census.Strategy {
		case "api":
			if c.Census.APIURL == "" {
				errs = append(errs, "census.api_url is required for strategy api")
			}
		case "table":
			if c.Census.DatasetPath == "" {
				errs = append(errs, "census.dataset_path is required for strategy table")
			}
		default:
			errs = append(errs, "census.strategy must be one of api, table")
		}
	}

	switch mode {
	case "crawl":
		if c.Crawl.StartURL == "" {
			errs = append(errs, "crawl.start_url is required")
		}
		if c.Crawl.Concurrency < 1 || c.Crawl.Concurrency > 64 {
			errs = append(errs, "crawl.concurrency must be between 1 and 64")
		}
		if c.Crawl.RatePerSec <= 0 {
			errs = append(errs, "crawl.rate_per_sec must be > 0")
		}
		if c.Crawl.NameStride < 1 {
			errs = append(errs, "crawl.name_stride must be >= 1")
		}
		if c.Crawl.ExtractMode != "positional" && c.Crawl.ExtractMode != "block" {
			errs = append(errs, "crawl.extract_mode must be one of positional, block")
		}
		if c.Crawl.AddressJoin != "raw" && c.Crawl.AddressJoin != "spaced" {
			errs = append(errs, "crawl.address_join must be one of raw, spaced")
		}
		checkCensus()
		switch c.Output.Format {
		case "csv", "json", "xlsx", "sqlite":
			if c.Output.Path == "" {
				errs = append(errs, "output.path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for format postgres")
			}
		default:
			errs = append(errs, "output.format must be one of csv, json, xlsx, sqlite, postgres")
		}
		if c.Output.Schema != "full" && c.Output.Schema != "compact" {
			errs = append(errs, "output.schema must be one of full, compact")
		}
	case "population":
		checkCensus()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
