// Package config carries the environment-driven settings for chain
// backends. Every value has a mainnet default so the SDK works out of
// the box.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultResolverURL is the public EID resolver endpoint.
	DefaultResolverURL = "https://api.elastos.io/eid"

	// DefaultContractAddress is the DID registry contract on the EID
	// chain.
	DefaultContractAddress = "0x46E5936a9bAA167b3368F4197eDce746A66f7a7a"

	// DefaultChainID is the EID mainnet chain id.
	DefaultChainID = 22

	// DefaultCacheTTL bounds how stale a cached resolve result may get.
	DefaultCacheTTL = 10 * time.Minute

	// DefaultCacheSize bounds the resolve cache entry count.
	DefaultCacheSize = 128
)

// Config is the resolved backend configuration.
type Config struct {
	ResolverURL     string
	ContractAddress string
	ChainID         int64
	CacheTTL        time.Duration
	CacheSize       int
}

// Load reads the configuration from the environment, falling back to
// the mainnet defaults:
//
//	DID_RESOLVER_URL      resolver RPC endpoint
//	DID_CONTRACT_ADDRESS  DID registry contract address
//	DID_CHAIN_ID          EVM chain id for publication
//	DID_CACHE_TTL         resolve cache TTL (Go duration)
//	DID_CACHE_SIZE        resolve cache entry bound
func Load() Config {
	cfg := Config{
		ResolverURL:     DefaultResolverURL,
		ContractAddress: DefaultContractAddress,
		ChainID:         DefaultChainID,
		CacheTTL:        DefaultCacheTTL,
		CacheSize:       DefaultCacheSize,
	}
	if v := os.Getenv("DID_RESOLVER_URL"); v != "" {
		cfg.ResolverURL = v
	}
	if v := os.Getenv("DID_CONTRACT_ADDRESS"); v != "" {
		cfg.ContractAddress = v
	}
	if v := os.Getenv("DID_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ChainID = id
		}
	}
	if v := os.Getenv("DID_CACHE_TTL"); v != "" {
		if ttl, err := time.ParseDuration(v); err == nil && ttl > 0 {
			cfg.CacheTTL = ttl
		}
	}
	if v := os.Getenv("DID_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheSize = n
		}
	}
	return cfg
}
