package rapidslogger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttnghia/rapids-logger/feeders"
)

// EnvPrefix is the prefix of every environment variable the runtime reads,
// e.g. RAPIDS_LOGGER_LIBRARY_PATH or RAPIDS_LOGGER_DEFAULT_LOGGING_LEVEL.
const EnvPrefix = "RAPIDS_LOGGER"

// Config is the runtime configuration. It only describes where backends may
// be found and how resolved loggers are maintained; which backend a caller
// asks for is decided elsewhere.
//
// Example YAML configuration:
//
//	overridePath: /opt/rapids/lib/libcore-logger.so
//	searchRoots:
//	  - /usr/local/lib
//	  - ~/.local/lib
//	defaultLevel: WARN
//	flushLevel: ERROR
//	flushSchedule: "@every 5s"
type Config struct {
	// OverridePath is tried first for every logical name.
	OverridePath string `json:"overridePath" yaml:"overridePath" toml:"overridePath" env:"LIBRARY_PATH"`

	// Overrides maps logical names to explicit library paths.
	Overrides map[string]string `json:"overrides" yaml:"overrides" toml:"overrides" env:"OVERRIDES"`

	// SearchRoots are directories probed in order after the overrides.
	SearchRoots []string `json:"searchRoots" yaml:"searchRoots" toml:"searchRoots" env:"SEARCH_ROOTS" default:"[\"/usr/local/lib\",\"/usr/lib\"]"`

	// DefaultLevel is applied to each backend right after it loads.
	// Empty keeps the backend's own level.
	DefaultLevel string `json:"defaultLevel" yaml:"defaultLevel" toml:"defaultLevel" env:"DEFAULT_LOGGING_LEVEL" validate:"omitempty,loglevel"`

	// FlushLevel is applied to each backend right after it loads.
	FlushLevel string `json:"flushLevel" yaml:"flushLevel" toml:"flushLevel" env:"DEFAULT_FLUSH_LEVEL" validate:"omitempty,loglevel"`

	// FlushSchedule is a cron spec (e.g. "@every 5s") for flushing every
	// loaded backend. Empty disables periodic flushing.
	FlushSchedule string `json:"flushSchedule" yaml:"flushSchedule" toml:"flushSchedule" env:"FLUSH_SCHEDULE"`

	// ConfigFile is re-read when WatchConfig is set; changes to its
	// defaultLevel are applied to every loaded backend.
	ConfigFile  string `json:"configFile" yaml:"configFile" toml:"configFile" env:"CONFIG_FILE" validate:"required_if=WatchConfig true"`
	WatchConfig bool   `json:"watchConfig" yaml:"watchConfig" toml:"watchConfig" env:"WATCH_CONFIG" default:"false"`

	// ConfigKey selects a top-level section of ConfigFile holding these
	// settings. Empty reads the whole file.
	ConfigKey string `json:"configKey" yaml:"configKey" toml:"configKey" env:"CONFIG_KEY"`

	// DiagnosticsAddr is the listen address used by the CLI's serve command.
	DiagnosticsAddr string `json:"diagnosticsAddr" yaml:"diagnosticsAddr" toml:"diagnosticsAddr" env:"DIAGNOSTICS_ADDR" default:"127.0.0.1:7766" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns a Config with only defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	if err := ProcessConfigDefaults(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfig builds a Config from defaults and then each feeder in order;
// later feeders override earlier ones. The result is validated.
//
//	cfg, err := rapidslogger.LoadConfig(
//		feeders.NewYamlFeeder("rapids-logger.yaml"),
//		feeders.NewAffixedEnvFeeder(rapidslogger.EnvPrefix, ""),
//	)
func LoadConfig(sources ...feeders.Feeder) (*Config, error) {
	cfg := &Config{}
	if err := ProcessConfigDefaults(cfg); err != nil {
		return nil, err
	}
	for _, f := range sources {
		if err := f.Feed(cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfigFeederError, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrConfigFeederError wraps failures returned by a feeder.
var ErrConfigFeederError = errors.New("config feeder error")

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		_, err := ParseLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrConfigValidationFailed, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", ErrConfigValidationFailed, err)
	}
	return nil
}

// ErrConfigValidationFailed is returned by Config.Validate.
var ErrConfigValidationFailed = errors.New("config validation failed")

// LocatorConfig converts the search settings into a LocatorConfig. Home
// directory lookup failures leave "~/" roots unexpanded.
func (c *Config) LocatorConfig() LocatorConfig {
	home, _ := os.UserHomeDir()
	return LocatorConfig{
		Overrides:    c.Overrides,
		OverridePath: c.OverridePath,
		SearchRoots:  c.SearchRoots,
		HomeDir:      home,
	}
}

// Levels parses DefaultLevel and FlushLevel. A false ok means the field is
// unset.
func (c *Config) Levels() (def Level, defOK bool, flush Level, flushOK bool, err error) {
	if c.DefaultLevel != "" {
		if def, err = ParseLevel(c.DefaultLevel); err != nil {
			return
		}
		defOK = true
	}
	if c.FlushLevel != "" {
		if flush, err = ParseLevel(c.FlushLevel); err != nil {
			return
		}
		flushOK = true
	}
	return
}

// ProcessConfigDefaults applies `default` struct tags to zero-valued fields
// of the struct cfg points to. Slice and map defaults are JSON.
func ProcessConfigDefaults(cfg interface{}) error {
	v := reflect.ValueOf(cfg)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrConfigNotStructPointer
	}
	return processStructDefaults(v.Elem())
}

// ErrConfigNotStructPointer is returned for defaults targets that are not
// pointers to structs.
var ErrConfigNotStructPointer = errors.New("config must be a non-nil pointer to a struct")

// ErrUnsupportedConfigFormat is returned for config files whose extension
// no feeder understands.
var ErrUnsupportedConfigFormat = errors.New("unsupported config file format")

// FileFeeder picks a feeder for path by its extension: .yaml/.yml, .toml,
// .json or .env. Keys in .env files carry EnvPrefix.
func FileFeeder(path string) (feeders.Feeder, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".yaml" || ext == ".yml":
		return feeders.NewYamlFeeder(path), nil
	case ext == ".toml":
		return feeders.NewTomlFeeder(path), nil
	case ext == ".json":
		return feeders.NewJSONFeeder(path), nil
	case ext == ".env" || filepath.Base(path) == ".env":
		return feeders.NewDotEnvFeeder(path, EnvPrefix), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}
}

// SectionFeeder is FileFeeder restricted to the top-level key of a larger
// YAML, TOML or JSON document. An empty key reads the whole file.
//
//	# app.yaml
//	rapidsLogger:
//	  defaultLevel: WARN
//
//	feeder, err := rapidslogger.SectionFeeder("app.yaml", "rapidsLogger")
func SectionFeeder(path, key string) (feeders.Feeder, error) {
	f, err := FileFeeder(path)
	if err != nil || key == "" {
		return f, err
	}
	complexFeeder, ok := f.(feeders.ComplexFeeder)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no sections to select %q from", ErrUnsupportedConfigFormat, path, key)
	}
	return feeders.NewKeyFeeder(complexFeeder, key), nil
}
