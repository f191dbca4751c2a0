// Package config loads transfer settings from a YAML file and turns them
// into the explicit structs accepted by ton, wallet and lock packages.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/lock"
	"github.com/xssnick/tonutils-transfer/metrics"
	"github.com/xssnick/tonutils-transfer/ton"
	"github.com/xssnick/tonutils-transfer/ton/wallet"
)

type Config struct {
	Network          string        `yaml:"network"`
	PoolSize         int           `yaml:"pool_size"`
	ConcurrencyLimit int           `yaml:"concurrency_limit"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	KeystoreDir      string        `yaml:"keystore_dir"`

	Wallet  WalletConfig  `yaml:"wallet"`
	Lock    LockConfig    `yaml:"lock"`
	Logging LoggingConfig `yaml:"logging"`
}

type WalletConfig struct {
	Version    string        `yaml:"version"`
	Workchain  int32         `yaml:"workchain"`
	Subwallet  *uint32       `yaml:"subwallet"`
	MessageTTL time.Duration `yaml:"message_ttl"`
}

// LockConfig - redis backend is needed when several processes send from the same wallet
type LockConfig struct {
	Backend string           `yaml:"backend"` // local, redis
	Redis   lock.RedisConfig `yaml:"redis"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console, console_no_color
}

// Default - values of ton.DefaultConfig and default wallet settings
func Default() *Config {
	def := ton.DefaultConfig()
	return &Config{
		Network:          def.Network.String(),
		PoolSize:         def.PoolSize,
		ConcurrencyLimit: def.ConcurrencyLimit,
		RequestTimeout:   def.RequestTimeout,
		KeystoreDir:      def.KeystoreDir,
		Wallet: WalletConfig{
			Version:    wallet.V3R2.String(),
			MessageTTL: wallet.DefaultMessageTTL,
		},
		Lock:    LockConfig{Backend: "local"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func (c *Config) setDefaults() {
	def := Default()
	if c.Network == "" {
		c.Network = def.Network
	}
	if c.PoolSize == 0 {
		c.PoolSize = def.PoolSize
	}
	if c.ConcurrencyLimit == 0 {
		c.ConcurrencyLimit = def.ConcurrencyLimit
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.KeystoreDir == "" {
		c.KeystoreDir = def.KeystoreDir
	}
	if c.Wallet.Version == "" {
		c.Wallet.Version = def.Wallet.Version
	}
	if c.Wallet.MessageTTL == 0 {
		c.Wallet.MessageTTL = def.Wallet.MessageTTL
	}
	if c.Lock.Backend == "" {
		c.Lock.Backend = def.Lock.Backend
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

func (c *Config) Validate() error {
	if _, err := ton.ParseNetwork(c.Network); err != nil {
		return err
	}
	ver, err := wallet.ParseVersion(c.Wallet.Version)
	if err != nil {
		return err
	}
	if !ver.Supported() {
		return fmt.Errorf("%w: %s", wallet.ErrUnsupportedVersion, ver)
	}
	if c.Wallet.MessageTTL < 0 {
		return errors.New("message ttl should not be negative")
	}
	switch c.Lock.Backend {
	case "local", "none":
	case "redis":
		if c.Lock.Redis.URL == "" {
			return errors.New("redis url is required for redis lock")
		}
	default:
		return fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	return nil
}

// TonConfig - client settings, logger and metrics are not part of the file
func (c *Config) TonConfig(log zerolog.Logger, m *metrics.Metrics) (ton.Config, error) {
	network, err := ton.ParseNetwork(c.Network)
	if err != nil {
		return ton.Config{}, err
	}

	cfg := ton.Config{
		Network:          network,
		PoolSize:         c.PoolSize,
		ConcurrencyLimit: c.ConcurrencyLimit,
		RequestTimeout:   c.RequestTimeout,
		KeystoreDir:      c.KeystoreDir,
		Logger:           log,
		Metrics:          m,
	}
	if err = cfg.Validate(); err != nil {
		return ton.Config{}, err
	}
	return cfg, nil
}

// NewLocker - returned close func releases backend connection
func (c *Config) NewLocker(ctx context.Context) (lock.Locker, func() error, error) {
	switch c.Lock.Backend {
	case "", "local":
		return lock.NewLocal(), func() error { return nil }, nil
	case "none":
		return lock.Nop{}, func() error { return nil }, nil
	case "redis":
		r, err := lock.DialRedis(ctx, c.Lock.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return r, r.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown lock backend %q", c.Lock.Backend)
}

func (c *Config) WalletVersion() (wallet.Version, error) {
	return wallet.ParseVersion(c.Wallet.Version)
}

// WalletOptions - options from the file, extra ones are applied after them
func (c *Config) WalletOptions(extra ...wallet.Option) []wallet.Option {
	opts := []wallet.Option{
		wallet.WithWorkchain(c.Wallet.Workchain),
		wallet.WithMessageTTL(c.Wallet.MessageTTL),
	}
	if c.Wallet.Subwallet != nil {
		opts = append(opts, wallet.WithSubwallet(*c.Wallet.Subwallet))
	}
	return append(opts, extra...)
}
