package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	// EnvPrefix prefixes every environment override. Nested keys are
	// separated by a double underscore, e.g. OPO_SMTP__HOST.
	EnvPrefix = "OPO_"
	// PathEnv names the config file to load when no path is given.
	PathEnv = "OPO_CONFIG"

	delim = "."
)

type Config struct {
	DataDir   string          `koanf:"data_dir" default:"./data" validate:"required"`
	Source    SourceConfig    `koanf:"source"`
	Package   PackageConfig   `koanf:"package"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Server    ServerConfig    `koanf:"server"`
	SMTP      SMTPConfig      `koanf:"smtp"`
	Push      PushConfig      `koanf:"push"`
	Index     IndexConfig     `koanf:"index"`
}

type SourceConfig struct {
	BaseURL   string        `koanf:"base_url" default:"https://onepiece.tube" validate:"required,url"`
	UserAgent string        `koanf:"user_agent"`
	Timeout   time.Duration `koanf:"timeout" default:"30s" validate:"gt=0"`
	PageDelay time.Duration `koanf:"page_delay" default:"250ms" validate:"gte=0"`
	// DownloadTimeout bounds one chapter download, however many callers
	// wait on it.
	DownloadTimeout time.Duration `koanf:"download_timeout" default:"10m" validate:"gt=0"`
	// SourceVariant is a URL template with one %s verb for the reader URL,
	// e.g. "view-source:%s" behind a rendering proxy. Empty disables it.
	SourceVariant      string   `koanf:"source_variant"`
	UnavailableMarkers []string `koanf:"unavailable_markers" default:"[\"Dieses Kapitel ist aktuell nicht verf\"]"`
}

type PackageConfig struct {
	Prefix        string `koanf:"prefix" default:"onepiece" validate:"required"`
	Series        string `koanf:"series" default:"One Piece"`
	Author        string `koanf:"author" default:"Eiichiro Oda"`
	Language      string `koanf:"language" default:"de"`
	DefaultFormat string `koanf:"default_format" default:"epub" validate:"oneof=epub cbz pdf"`
}

type SchedulerConfig struct {
	Enabled  bool          `koanf:"enabled" default:"true"`
	Interval time.Duration `koanf:"interval" default:"60m" validate:"gt=0"`
}

type ServerConfig struct {
	Host        string   `koanf:"host" default:"0.0.0.0"`
	Port        int      `koanf:"port" default:"8001" validate:"gt=0,lte=65535"`
	CORSOrigins []string `koanf:"cors_origins" default:"[\"http://localhost:3001\",\"http://127.0.0.1:3001\"]"`
}

// SMTPConfig is optional as a whole; completeness is checked when email
// notifications are sent.
type SMTPConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" default:"465" validate:"gte=0,lte=65535"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
	Sender          string        `koanf:"sender"`
	Recipient       string        `koanf:"recipient" validate:"omitempty,email"`
	SSL             bool          `koanf:"ssl" default:"true"`
	Timeout         time.Duration `koanf:"timeout" default:"30s"`
	SubjectTemplate string        `koanf:"subject_template" default:"Neues One Piece Kapitel {number}: {title}"`
	BodyTemplate    string        `koanf:"body_template" default:"Ein neues One Piece Kapitel ist verfügbar!\n\nKapitel {number}: {title}\n\nJetzt auf One Piece Offline herunterladen!"`
}

type PushConfig struct {
	Enabled           bool   `koanf:"enabled" default:"true"`
	VAPIDPublicKey    string `koanf:"vapid_public_key" validate:"required_with=VAPIDPrivateKey"`
	VAPIDPrivateKey   string `koanf:"vapid_private_key" validate:"required_with=VAPIDPublicKey"`
	Subscriber        string `koanf:"subscriber" default:"mailto:noreply@onepiece-offline.local"`
	SubscriptionsFile string `koanf:"subscriptions_file" default:"push_subscriptions.json"`
	TTL               int    `koanf:"ttl" default:"86400" validate:"gte=0"`
}

// IndexConfig controls the optional DuckDB chapter index.
type IndexConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" default:"index.duckdb"`
}

// Load builds the configuration from defaults, an optional YAML file and
// OPO_* environment variables, in that order. An empty path falls back to
// $OPO_CONFIG; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	k := koanf.New(delim)
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "load config file %s", path)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.WithStack(err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, delim, envKey), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	cfg.resolvePaths()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps OPO_SMTP__HOST to smtp.host.
func envKey(s string) string {
	if s == PathEnv {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", delim)
}

// resolvePaths anchors relative data paths at DataDir.
func (c *Config) resolvePaths() {
	if c.Push.SubscriptionsFile != "" && !filepath.IsAbs(c.Push.SubscriptionsFile) {
		c.Push.SubscriptionsFile = filepath.Join(c.DataDir, c.Push.SubscriptionsFile)
	}
	if c.Index.Path != "" && !filepath.IsAbs(c.Index.Path) {
		c.Index.Path = filepath.Join(c.DataDir, c.Index.Path)
	}
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// ServerAddr is the listen address of the HTTP API.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
