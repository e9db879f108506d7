package cli

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds CLI configuration.
type Config struct {
	ServerURL    string
	Nsec         string
	SessionFile  string
	Relays       []string
	RelayTimeout time.Duration
	NoProfile    bool
	Output       string
	Verbose      bool
}

// DefaultConfig returns a Config with values from the environment.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:    getEnvOrDefault("WILDSATS_SERVER", "http://localhost:5000"),
		Nsec:         os.Getenv("WILDSATS_NSEC"),
		SessionFile:  getEnvOrDefault("WILDSATS_SESSION_FILE", defaultSessionFile()),
		Relays:       splitList(os.Getenv("WILDSATS_RELAYS")),
		RelayTimeout: 5 * time.Second,
		Output:       "text",
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wildsats", "session")
	}
	return filepath.Join(home, ".wildsats", "session")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
