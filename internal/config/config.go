// Package config reads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

var ErrInvalid = errors.New("invalid configuration value")

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type HTTP struct {
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
}

type Conf struct {
	HTTP               HTTP
	LogDebug           bool
	TaxRate            float64
	ServiceFeeRate     float64
	MinStayNights      int
	MaxStayNights      int
	StorageDriver      string
	DatabaseURL        string
	RedisAddr          string
	PromoCacheTTL      time.Duration
	PromoLookupTimeout time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads the environment of the current process.
func Load() (Conf, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv. Unset variables take their default.
//
//nolint:gomnd
func LoadFrom(getenv func(string) string) (Conf, error) {
	r := reader{getenv: getenv}

	conf := Conf{
		HTTP: HTTP{
			Host:              r.str("HTTP_HOST", "localhost"),
			Port:              r.str("HTTP_PORT", "8092"),
			ReadHeaderTimeout: r.duration("HTTP_READ_HEADER_TIMEOUT", 20*time.Second),
		},
		LogDebug:           r.boolean("LOG_DEBUG", false),
		TaxRate:            r.float("TAX_RATE", 0.10),
		ServiceFeeRate:     r.float("SERVICE_FEE_RATE", 0.05),
		MinStayNights:      r.integer("MIN_STAY_NIGHTS", 1),
		MaxStayNights:      r.integer("MAX_STAY_NIGHTS", 30),
		StorageDriver:      r.str("STORAGE_DRIVER", StorageMemory),
		DatabaseURL:        r.str("DATABASE_URL", ""),
		RedisAddr:          r.str("REDIS_ADDR", ""),
		PromoCacheTTL:      r.duration("PROMO_CACHE_TTL", 5*time.Minute),
		PromoLookupTimeout: r.duration("PROMO_LOOKUP_TIMEOUT", 3*time.Second),
		ShutdownTimeout:    r.duration("SHUTDOWN_TIMEOUT", 4*time.Second),
	}

	if r.err != nil {
		return Conf{}, r.err
	}

	if err := conf.validate(); err != nil {
		return Conf{}, err
	}

	return conf, nil
}

func (c Conf) validate() error {
	switch {
	case c.TaxRate < 0:
		return fmt.Errorf("TAX_RATE %v: %w", c.TaxRate, ErrInvalid)
	case c.ServiceFeeRate < 0:
		return fmt.Errorf("SERVICE_FEE_RATE %v: %w", c.ServiceFeeRate, ErrInvalid)
	case c.MinStayNights < 1:
		return fmt.Errorf("MIN_STAY_NIGHTS %d: %w", c.MinStayNights, ErrInvalid)
	case c.MaxStayNights > 0 && c.MaxStayNights < c.MinStayNights:
		return fmt.Errorf("MAX_STAY_NIGHTS %d below MIN_STAY_NIGHTS: %w", c.MaxStayNights, ErrInvalid)
	}

	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres storage: %w", ErrInvalid)
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER %q: %w", c.StorageDriver, ErrInvalid)
	}

	return nil
}

// reader keeps the first parse error so that Load can report it once.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) str(key, fallback string) string {
	if v := r.getenv(key); v != "" {
		return v
	}

	return fallback
}

func (r *reader) parse(key string, parse func(string) error) {
	v := r.getenv(key)
	if v == "" || r.err != nil {
		return
	}

	if err := parse(v); err != nil {
		r.err = fmt.Errorf("%s=%q: %w: %w", key, v, ErrInvalid, err)
	}
}

func (r *reader) duration(key string, fallback time.Duration) time.Duration {
	out := fallback

	r.parse(key, func(v string) (err error) {
		out, err = time.ParseDuration(v)

		return err
	})

	return out
}

func (r *reader) float(key string, fallback float64) float64 {
	out := fallback

	r.parse(key, func(v string) (err error) {
		out, err = strconv.ParseFloat(v, 64)

		return err
	})

	return out
}

func (r *reader) integer(key string, fallback int) int {
	out := fallback

	r.parse(key, func(v string) (err error) {
		out, err = strconv.Atoi(v)

		return err
	})

	return out
}

func (r *reader) boolean(key string, fallback bool) bool {
	out := fallback

	r.parse(key, func(v string) (err error) {
		out, err = strconv.ParseBool(v)

		return err
	})

	return out
}
