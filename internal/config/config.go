package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig is the immutable process configuration, loaded once at startup
// and passed to constructors.
type AppConfig struct {
	// WeatherAPIKey authenticates against WeatherAPI.com.
	WeatherAPIKey string

	// WeatherAPIBase overrides the WeatherAPI.com endpoint (tests).
	WeatherAPIBase string

	// NOAABase overrides the NOAA CO-OPS datagetter endpoint.
	NOAABase string

	// DBPath is the SQLite database file.
	DBPath string

	// HTTPTimeout applies to all outbound provider calls.
	HTTPTimeout time.Duration

	// CollectInterval enables the optional background collection job when
	// greater than zero. Zero (the default) means collection happens only
	// on demand, driven by incoming requests.
	CollectInterval time.Duration

	Port string
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		WeatherAPIKey:  os.Getenv("WEATHER_API_KEY"),
		WeatherAPIBase: os.Getenv("WEATHER_API_BASE"),
		NOAABase:       os.Getenv("NOAA_API_BASE"),
		DBPath:         getenvDefault("DB_PATH", "data/weather.db"),
		Port:           getenvDefault("PORT", "5105"),
	}

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "10s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	intervalStr := getenvDefault("COLLECT_INTERVAL", "0")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid COLLECT_INTERVAL: %w", err)
	}
	cfg.CollectInterval = interval

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
