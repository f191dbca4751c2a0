package ton

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/xssnick/tonutils-transfer/metrics"
)

// Network IDs
const MainnetGlobalID = -239
const TestnetGlobalID = -3

type Network int

const (
	Mainnet Network = iota
	Testnet
)

func (n Network) GlobalID() int32 {
	if n == Testnet {
		return TestnetGlobalID
	}
	return MainnetGlobalID
}

func (n Network) String() string {
	if n == Testnet {
		return "testnet"
	}
	return "mainnet"
}

func ParseNetwork(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "", "mainnet", "production":
		return Mainnet, nil
	case "testnet", "test":
		return Testnet, nil
	}
	return 0, fmt.Errorf("unknown network %q", s)
}

// Config - client settings, passed explicitly so differently configured clients can coexist
type Config struct {
	Network Network
	// Number of backend connections, requests are balanced between them
	PoolSize int
	// Max requests in flight across the pool
	ConcurrencyLimit int
	// Applied to each request, 0 disables
	RequestTimeout time.Duration
	// Location of local key material, used by keys.Keystore
	KeystoreDir string

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

func DefaultConfig() Config {
	return Config{
		Network:          Mainnet,
		PoolSize:         10,
		ConcurrencyLimit: 100,
		RequestTimeout:   10 * time.Second,
		KeystoreDir:      "/tmp",
		Logger:           zerolog.Nop(),
	}
}

func (c Config) Validate() error {
	if c.Network != Mainnet && c.Network != Testnet {
		return fmt.Errorf("unknown network %d", c.Network)
	}
	if c.PoolSize <= 0 {
		return errors.New("pool size should be positive")
	}
	if c.ConcurrencyLimit <= 0 {
		return errors.New("concurrency limit should be positive")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout should not be negative")
	}
	return nil
}
