package config

import "time"

// RateLimitConfig tunes the Redis token-bucket limiter. Capacity is the
// burst size, RefillTokens/RefillInterval the sustained rate, and TTL
// how long an idle bucket survives in Redis.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig builds a RateLimitConfig from the environment and
// normalizes it into a usable shape: rates never drop below one token
// per interval and the TTL always outlives a few refill cycles so a
// bucket cannot expire mid-burst.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:        getenvBool("RATE_LIMIT_ENABLED", true),
		Capacity:       getenvInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   getenvInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: getenvDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            getenvDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    getenv("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:         getenv("RATE_LIMIT_PREFIX", "rl"),
		Debug:          getenvBool("RATE_LIMIT_DEBUG", false),
	}
	// Shorthand overrides: BURST replaces the capacity, REFILL_EVERY
	// expresses the rate as one token per duration.
	if b := getenvInt("RATE_LIMIT_BURST", -1); b > 0 {
		cfg.Capacity = b
	}
	if every := getenvDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		cfg.RefillTokens = 1
		cfg.RefillInterval = every
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}
