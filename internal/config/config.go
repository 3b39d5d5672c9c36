// Package config provides layered configuration loading for the Wisp
// service: struct defaults overlaid with WISP_-prefixed environment
// variables, then validated.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces all environment variables consumed by the service.
const envPrefix = "WISP_"

// Config holds the merged runtime configuration for the Wisp service.
// Precedence (lowest → highest): defaults → environment.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required,ip_port"`
	// DataDir holds the SQLite database and blob files.
	DataDir string `koanf:"data_dir" validate:"required,safe_path"`
	// Salt is the process-wide key-derivation salt. Secret, and fixed for
	// the process lifetime: rotating it changes every passphrase-derived
	// key and orphans all stored secrets.
	Salt string `koanf:"salt" validate:"required,min=16"`
	// TTL is the lifespan of an unredeemed secret.
	TTL time.Duration `koanf:"ttl" validate:"required,gt=0"`
	// MaxBytes caps the secret payload size.
	MaxBytes int64 `koanf:"max_bytes" validate:"required,gt=0"`
	// InlineMax is the largest ciphertext stored inline in SQLite; larger
	// payloads go to blob files.
	InlineMax int64 `koanf:"inline_max" validate:"gte=0"`
	// JanitorInterval is the cadence of expiry sweeps.
	JanitorInterval time.Duration `koanf:"janitor_interval" validate:"required,gt=0"`
	// MetricsToken guards /metrics when non-empty.
	MetricsToken string `koanf:"metrics_token"`
}

// DefaultAppConfig holds the compiled-in defaults. Salt has no default on
// purpose: it must come from the environment.
var DefaultAppConfig = Config{
	Addr:            ":8080",
	DataDir:         "./data",
	TTL:             24 * time.Hour,
	MaxBytes:        128 << 10, // 128 KiB
	InlineMax:       4 << 10,   // 4 KiB
	JanitorInterval: time.Minute,
}

// Loader hooks are package variables so tests can inject failures.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
			return key, value
		},
	}), nil)
}

var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("safe_path", validDataDir)
}

// Load builds the runtime configuration from defaults and environment
// variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// SQLiteDSN returns the DSN for the index database inside DataDir:
// WAL journaling, enforced foreign keys, a busy timeout for concurrent
// takes, and full synchronous durability.
func (c *Config) SQLiteDSN() string {
	const params = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"
	dir := c.DataDir
	var path string
	if len(dir) > 0 && dir[len(dir)-1] == '/' {
		path = dir + "wisp.db"
	} else if len(dir) > 0 {
		path = dir + "/wisp.db"
	} else {
		path = "wisp.db"
	}
	return "file:" + path + params
}

// validIPPort accepts "host:port" where host is empty or a literal IP
// (IPv6 bracketed) and port is a decimal in [1, 65535]. Hostnames are
// rejected: the listen address should not depend on resolver state.
func validIPPort(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" || strings.ContainsAny(s, " \t") {
		return false
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return false
	}
	return true
}

// validDataDir rejects paths that are empty, the filesystem root, or that
// escape upward through "..".
func validDataDir(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" {
		return false
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == "/" {
		return false
	}
	for _, seg := range strings.Split(clean, string(filepath.Separator)) {
		if seg == ".." {
			return false
		}
	}
	return true
}
