// Package pg bootstraps the PostgreSQL connection pool backing the
// credential and recovery record stores.
//
// Connect parses the PG_CONN_URL connection string, applies the pool limits
// from Config, and retries with a linear backoff so a service instance
// restarting alongside its database does not give up immediately. The
// returned *pgxpool.Pool satisfies the DB interface the storage packages
// accept.
//
// Configuration is read from PG_* environment variables via LoadConfig.
package pg
