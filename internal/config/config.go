package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                 int
	DBDSN                string
	SQLitePath           string
	JWTSecret            string
	ClientURL            string
	WSInsecureSkipVerify bool
	StoreTimeout         time.Duration
}

func Load() Config {
	return Config{
		Port:                 getEnvInt("APP_PORT", 3001),
		DBDSN:                os.Getenv("DB_DSN"),
		SQLitePath:           getEnv("SQLITE_PATH", "messages.db"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		ClientURL:            getEnv("CLIENT_URL", "http://localhost:3000"),
		WSInsecureSkipVerify: os.Getenv("WS_INSECURE_SKIP_VERIFY") == "true",
		StoreTimeout:         time.Duration(getEnvInt("STORE_TIMEOUT_MS", 5000)) * time.Millisecond,
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
