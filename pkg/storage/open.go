package storage

import (
	"fmt"
	"strings"
)

// Options selects and configures a Checkpoints backend
type Options struct {
	Driver   string `mapstructure:"driver"` // memory, redis, postgres
	URL      string `mapstructure:"url"`    // postgres connection string
	Addr     string `mapstructure:"addr"`   // redis address
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Open returns the backend named by opts.Driver. An empty driver means memory.
func Open(opts Options) (Checkpoints, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "memory":
		return NewMemoryStore(opts.Prefix), nil
	case "redis":
		return NewRedisStore(opts.Addr, opts.Password, opts.DB, opts.Prefix)
	case "postgres", "postgresql":
		return NewPostgresStore(opts.URL, opts.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
