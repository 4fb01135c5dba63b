package config

import "time"

// APIConfig holds runtime configuration for the API service.
type APIConfig struct {
	Environment         string
	Addr                string
	DatabaseURL         string
	MigrationsDir       string
	JWTSecret           string
	AccessTokenTTL      time.Duration
	RefreshTokenTTL     time.Duration
	PairingValidity     time.Duration
	PairingPollInterval time.Duration
	PairingCooldown     time.Duration
	PairingHistoryLimit int
	PushGatewayURL      string
	PushGatewayToken    string
	RateLimitRedisAddr  string
	RateLimitRedisPass  string
	RateLimitRedisDB    int
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:         GetString("APP_ENV", "development"),
		Addr:                GetString("API_ADDR", ":4000"),
		DatabaseURL:         GetString("DATABASE_URL", "postgres://djogana:djogana@db:5432/djogana?sslmode=disable"),
		MigrationsDir:       GetString("DB_MIGRATIONS_DIR", "./db/migrations"),
		JWTSecret:           GetString("JWT_SECRET", "supersecuresecret"),
		AccessTokenTTL:      time.Duration(GetInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		RefreshTokenTTL:     time.Duration(GetInt("REFRESH_TOKEN_TTL_HOURS", 24)) * time.Hour,
		PairingValidity:     time.Duration(GetInt("PAIRING_VALIDITY_SECONDS", 15)) * time.Second,
		PairingPollInterval: time.Duration(GetInt("PAIRING_POLL_INTERVAL_MS", 2500)) * time.Millisecond,
		PairingCooldown:     time.Duration(GetInt("PAIRING_COOLDOWN_SECONDS", 20)) * time.Second,
		PairingHistoryLimit: GetInt("PAIRING_HISTORY_LIMIT", 50),
		PushGatewayURL:      GetString("PUSH_GATEWAY_URL", ""),
		PushGatewayToken:    GetString("PUSH_GATEWAY_TOKEN", ""),
		RateLimitRedisAddr:  GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass:  GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:    GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}
