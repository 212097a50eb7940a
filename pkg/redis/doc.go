// Package redis bootstraps the Redis client backing the shared rate-limit
// store.
//
// Connect parses the REDIS_URL connection string and pings the server,
// retrying until the configured attempts or the connect timeout run out.
// The returned client satisfies redis.UniversalClient and plugs straight
// into ratelimit.NewRedisStore.
//
// Configuration is read from REDIS_* environment variables via LoadConfig.
package redis
