package pg

import "errors"

var (
	ErrFailedToParseConfig = errors.New("failed to parse postgres connection config")
	ErrFailedToConnect     = errors.New("failed to connect to postgres")
)
