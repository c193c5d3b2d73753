package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StrategyDirect = "direct"
	StrategyShard  = "shard"

	PolicyMaxDimension = "max-dimension"
	PolicyFitBox       = "fit-box"
)

// Config is the top-level configuration for the item image server.
type Config struct {
	Server      Server      `yaml:"server"`
	Catalog     Catalog     `yaml:"catalog"`
	Backgrounds Backgrounds `yaml:"backgrounds"`
	Locator     Locator     `yaml:"locator"`
	Fetch       Fetch       `yaml:"fetch"`
	Compose     Compose     `yaml:"compose"`
}

type Server struct {
	Port string `yaml:"port"`

	// CompositePath is the route prefix of the composite endpoint,
	// e.g. "images" serves GET /images/{id}.png.
	CompositePath string `yaml:"composite_path"`

	// SecretKey guards the direct-fetch endpoint. Empty rejects every request.
	SecretKey string `yaml:"secret_key"`

	// PublicBaseURL is used when building share links. When empty the
	// request's scheme and host are used.
	PublicBaseURL string `yaml:"public_base_url"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type Catalog struct {
	Path string `yaml:"path"`
}

type Backgrounds struct {
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
	Cache   bool   `yaml:"cache"`
}

type Locator struct {
	// Strategy is "direct" or "shard".
	Strategy string `yaml:"strategy"`

	// DirectTemplate is the source URL for the direct strategy. {id} is replaced.
	DirectTemplate string `yaml:"direct_template"`

	Shard Shard `yaml:"shard"`
}

// Shard describes the repository/batch partition probed by the shard strategy.
// The irregular tail of the last repository is data, not a derived rule.
type Shard struct {
	// Template placeholders: {repo}, {batch} (two digits), {id}.
	Template       string        `yaml:"template"`
	Repositories   int           `yaml:"repositories"`
	FirstBatches   int           `yaml:"first_batches"`
	BatchesPerRepo int           `yaml:"batches_per_repo"`
	LastBatches    int           `yaml:"last_batches"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	Parallelism    int           `yaml:"parallelism"`
}

type Fetch struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

type Compose struct {
	// Policy is "max-dimension" or "fit-box".
	Policy string `yaml:"policy"`

	// UpscaleSmall enables the grow-small-foregrounds branch of the
	// max-dimension policy.
	UpscaleSmall bool `yaml:"upscale_small"`
}

// Default returns the configuration used when no file or environment overrides are given.
func Default() Config {
	return Config{
		Server: Server{
			Port:           "8080",
			CompositePath:  "images",
			RequestTimeout: 30 * time.Second,
		},
		Catalog: Catalog{Path: "main.json"},
		Backgrounds: Backgrounds{
			Dir:     "background",
			Default: "Default.png",
			Cache:   true,
		},
		Locator: Locator{
			Strategy:       StrategyShard,
			DirectTemplate: "https://free-fire-items.vercel.app/item-image?id={id}",
			Shard: Shard{
				Template:       "https://raw.githubusercontent.com/item-images/repo{repo}/main/batch{batch}/{id}.png",
				Repositories:   6,
				FirstBatches:   5,
				BatchesPerRepo: 5,
				LastBatches:    8,
				ProbeTimeout:   5 * time.Second,
				Parallelism:    1,
			},
		},
		Fetch: Fetch{
			Timeout:  10 * time.Second,
			MaxBytes: 16 << 20,
		},
		Compose: Compose{
			Policy:       PolicyMaxDimension,
			UpscaleSmall: true,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// and environment overrides, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("PORT", &c.Server.Port)
	set("ITEMART_SECRET_KEY", &c.Server.SecretKey)
	set("ITEMART_CATALOG", &c.Catalog.Path)
	set("ITEMART_BACKGROUNDS", &c.Backgrounds.Dir)
	set("ITEMART_STRATEGY", &c.Locator.Strategy)
}

// Validate reports configuration that cannot produce a working server.
func (c Config) Validate() error {
	var errs []error
	switch c.Locator.Strategy {
	case StrategyDirect:
		if !strings.Contains(c.Locator.DirectTemplate, "{id}") {
			errs = append(errs, errors.New("locator.direct_template must contain {id}"))
		}
	case StrategyShard:
		s := c.Locator.Shard
		if !strings.Contains(s.Template, "{id}") {
			errs = append(errs, errors.New("locator.shard.template must contain {id}"))
		}
		if s.Repositories < 1 {
			errs = append(errs, errors.New("locator.shard.repositories must be positive"))
		}
		if s.FirstBatches < 1 {
			errs = append(errs, errors.New("locator.shard.first_batches must be positive"))
		}
		if s.Repositories > 2 && s.BatchesPerRepo < 1 {
			errs = append(errs, errors.New("locator.shard.batches_per_repo must be positive"))
		}
		if s.Repositories > 1 && s.LastBatches < 1 {
			errs = append(errs, errors.New("locator.shard.last_batches must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown locator strategy %q", c.Locator.Strategy))
	}
	switch c.Compose.Policy {
	case PolicyMaxDimension, PolicyFitBox:
	default:
		errs = append(errs, fmt.Errorf("unknown compose policy %q", c.Compose.Policy))
	}
	if strings.Trim(c.Server.CompositePath, "/") == "" {
		errs = append(errs, errors.New("server.composite_path must not be empty"))
	}
	return errors.Join(errs...)
}
