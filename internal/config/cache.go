package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.  Only
// fleet reference data goes through the cache; every vehicle write bumps
// the generation counter stored under Prefix+":gen", which retires all
// earlier entries at once.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string // route | route_query | role_route_query
	Prefix       string
	MaxBodyBytes int
}

// GenerationKey is the Redis key holding the current cache generation.
func (c CacheConfig) GenerationKey() string { return c.Prefix + ":gen" }

// LoadCacheConfig reads the CACHE_* variables.  By default GET responses
// are cached for 60s under "fleet:cache", keyed by role, route and query,
// so admin and driver views of the vehicle list never share an entry.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getenv("CACHE_ENABLED", "true") == "true",
		Methods:      parseMethods(getenv("CACHE_METHODS", "GET")),
		TTL:          parseDur(getenv("CACHE_TTL", "60s")),
		KeyStrategy:  getenv("CACHE_KEY_STRATEGY", "role_route_query"),
		Prefix:       getenv("CACHE_PREFIX", "fleet:cache"),
		MaxBodyBytes: atoi(getenv("CACHE_MAX_BODY_BYTES", "1048576")),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

// getenv returns def for unset or empty variables.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoi(s string) int {
	i, _ := strconv.Atoi(s)
	return i
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Second
	}
	return d
}
