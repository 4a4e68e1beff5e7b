package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	CycleTimeout       = 10 * time.Minute
	RequestTimeout     = 30 * time.Second
)

const (
	FetchMaxRetries    = 4
	FetchBackoffBase   = 500 * time.Millisecond
	FetchBackoffJitter = 250 * time.Millisecond
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultRecentBattleLimit = 50
	MaxRecentBattleLimit     = 500
	RecentFormLength         = 10
)
