package config

import (
	"strings"
	"time"
)

// CacheConfig tunes the Redis response cache. Caching stays off when
// Enabled is false or no Redis client could be built. Only the listed
// methods are cached; KeyStrategy picks which request parts feed the
// cache key and MaxBodyBytes caps how large a response is worth storing.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig builds a CacheConfig from the environment. The 30s TTL
// default is short on purpose: attendance counts and waitlist positions
// go stale the moment someone joins or leaves.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      getenvBool("CACHE_ENABLED", true),
		Methods:      parseMethods(getenv("CACHE_METHODS", "GET")),
		TTL:          getenvDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  getenv("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       getenv("CACHE_PREFIX", "cache"),
		MaxBodyBytes: getenvInt("CACHE_MAX_BODY_BYTES", 1<<20),
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
