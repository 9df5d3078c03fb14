package config

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from the environment and verifies
// it with a short ping. Redis backs the rate limiter and the response
// cache, both of which are optional: on any failure this returns nil and
// the caller runs without them rather than refusing to start.
//
// REDIS_ADDR is the host:port shorthand; REDIS_HOST plus REDIS_PORT take
// precedence when both are set. REDIS_PASSWORD, REDIS_DB and REDIS_TLS
// are optional.
func NewRedisClient() *redis.Client {
	addr := getenv("REDIS_ADDR", "")
	host := getenv("REDIS_HOST", "")
	port := getenv("REDIS_PORT", "")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	var tlsConf *tls.Config
	if v := getenv("REDIS_TLS", ""); v == "1" || strings.EqualFold(v, "true") {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  getenv("REDIS_PASSWORD", ""),
		DB:        getenvInt("REDIS_DB", 0),
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil
	}
	return client
}
