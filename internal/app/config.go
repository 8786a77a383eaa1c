package app

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home     string // config directory, e.g. $HOME/.closelink
	RelayURL string // relay base URL, e.g. ws://127.0.0.1:8080
	Radio    string // radio backend: "sim" (default) or "mdns"
	LogLevel string // slog level name; "info" when empty
}

// ConfigFromEnv reads defaults from the environment, loading a .env
// file first when one is present. Flags override these afterwards.
func ConfigFromEnv() Config {
	_ = godotenv.Load()
	return Config{
		Home:     os.Getenv("CLOSELINK_HOME"),
		RelayURL: getenv("CLOSELINK_RELAY", "ws://127.0.0.1:8080"),
		Radio:    getenv("CLOSELINK_RADIO", "sim"),
		LogLevel: getenv("CLOSELINK_LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
