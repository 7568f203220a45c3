package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	collabnotes "github.com/collabnotes/collabnotes.go"
	"github.com/collabnotes/collabnotes.go/pkg/constants"
	"github.com/collabnotes/collabnotes.go/pkg/storage"
)

// Environment variables read by the CLI. A .env file may set them too; the
// process environment wins over it.
const (
	EnvAPIURL       = "COLLABNOTES_API_URL"
	EnvPublicOrigin = "COLLABNOTES_PUBLIC_ORIGIN"
	EnvState        = "COLLABNOTES_STATE"
	EnvStateBackend = "COLLABNOTES_STATE_BACKEND"
	EnvStateCodec   = "COLLABNOTES_STATE_CODEC"
	EnvLogLevel     = "COLLABNOTES_LOG_LEVEL"
	EnvLogFile      = "COLLABNOTES_LOG_FILE"
	EnvRateLimit    = "COLLABNOTES_RATE_LIMIT"
	EnvStyle        = "COLLABNOTES_STYLE"
	EnvConfig       = "COLLABNOTES_CONFIG"
)

// Config is the CLI configuration. It can be read from a YAML file:
//
//	api_url: https://api.notes.example.com
//	public_origin: https://notes.example.com
//	timeout: 10s
//	state:
//	  backend: sqlite
//	  path: /home/ada/.config/collabnotes/state.db
//	log:
//	  level: debug
//	  file: /tmp/collabnotes.log
type Config struct {
	APIURL       string         `yaml:"api_url"`
	PublicOrigin string         `yaml:"public_origin"`
	State        storage.Config `yaml:"state"`
	Codec        string         `yaml:"codec"`
	Timeout      time.Duration  `yaml:"timeout"`
	RateLimit    float64        `yaml:"rate_limit"`
	// Style is the glamour style Markdown is rendered with; "auto" picks one
	// from the terminal.
	Style string    `yaml:"style"`
	Log   LogConfig `yaml:"log"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// File, when set, receives the log instead of stderr and is rotated.
	File string `yaml:"file"`
}

// DefaultConfig keeps the session in a YAML file under the user config
// directory.
func DefaultConfig() *Config {
	return &Config{
		APIURL:       constants.DefaultAPIURL,
		PublicOrigin: constants.DefaultPublicOrigin,
		State: storage.Config{
			Backend: storage.BackendFile,
			Path:    defaultStatePath(),
		},
		Codec:   storage.CodecJSON,
		Timeout: constants.DefaultTimeout,
		Style:   "auto",
		Log:     LogConfig{Level: "warn"},
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "collabnotes", "state.yaml")
}

// LoadFile overlays the YAML document at path onto c. Keys missing from the
// document keep their current value.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// envLookup resolves a variable from the process environment first, then from
// the values of a .env file.
type envLookup func(key string) (string, bool)

// newEnvLookup reads the .env file at path. A missing file is not an error
// unless required is set.
func newEnvLookup(path string, required bool) (envLookup, error) {
	dotenv := map[string]string{}
	if path != "" {
		values, err := godotenv.Read(path)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, os.ErrNotExist) && !required:
		default:
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
	}
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok && v != ""
	}, nil
}

// applyEnv overlays the environment onto c.
func (c *Config) applyEnv(lookup envLookup) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	setString(EnvAPIURL, &c.APIURL)
	setString(EnvPublicOrigin, &c.PublicOrigin)
	setString(EnvState, &c.State.Path)
	setString(EnvStateBackend, &c.State.Backend)
	setString(EnvStateCodec, &c.Codec)
	setString(EnvLogLevel, &c.Log.Level)
	setString(EnvLogFile, &c.Log.File)
	setString(EnvStyle, &c.Style)

	if v, ok := lookup(EnvRateLimit); ok {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRateLimit, v, err)
		}
		c.RateLimit = rate
	}
	return nil
}

// Options converts c into App options.
func (c *Config) Options() collabnotes.Options {
	return collabnotes.Options{
		APIURL:        c.APIURL,
		PublicOrigin:  c.PublicOrigin,
		StorageConfig: c.State,
		Codec:         c.Codec,
		Timeout:       c.Timeout,
		RateLimit:     c.RateLimit,
	}
}
