package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Reconnection backoff policy
const (
	ReconnectBaseDelay = 2 * time.Second
	ReconnectMaxDelay  = 60 * time.Second
)

// Transport socket tunables
const (
	SocketDialTimeout  = 20 * time.Second
	SocketPingInterval = 25 * time.Second
	SocketWriteTimeout = 10 * time.Second
	SocketReadLimit    = 1 << 20
	SocketEventBuffer  = 64
)

// Deadlines for fire-and-forget side work
const (
	StatusReportTimeout = 5 * time.Second
	DispatchTimeout     = 30 * time.Second
)

// Background job intervals
const (
	CleanupJobInterval  = 5 * time.Minute
	IdleConversationTTL = 30 * 24 * time.Hour
)
