package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds the runtime settings for the service. Values come from the
// environment, optionally seeded from a .env file in development.
type Config struct {
	Env            string
	Port           string
	DBPath         string
	JWTSecret      string
	Debug          bool
	MarketTimezone string
}

// Load reads configuration from the environment. A missing .env file is not an
// error; production deployments set real environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	return &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DBPath:         getEnv("DB_PATH", "trades.db"),
		JWTSecret:      getEnv("JWT_SECRET", "journal-secret-key"),
		Debug:          os.Getenv("DEBUG") == "true",
		MarketTimezone: getEnv("MARKET_TIMEZONE", "America/New_York"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
