package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultPort   = 4000
	defaultDBName = "advisor.db"
)

// Config carries everything the server needs at startup. Values come from a
// .env file when present, otherwise from the process environment.
type Config struct {
	Host    string
	Port    int
	DataDir string
	DBName  string

	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string

	CoinbaseKeyName   string
	CoinbaseKeySecret string
}

// Load reads the .env file (if any) and assembles the configuration from the
// environment. A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Host:    os.Getenv("HOST"),
		Port:    envInt("PORT", defaultPort),
		DataDir: os.Getenv("CRYPTO_ADVISOR_DATA_DIR"),
		DBName:  envString("CRYPTO_ADVISOR_DB_NAME", defaultDBName),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL: os.Getenv("GEMINI_BASE_URL"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),

		CoinbaseKeyName:   os.Getenv("COINBASE_API_KEY_NAME"),
		CoinbaseKeySecret: os.Getenv("COINBASE_API_KEY_SECRET"),
	}
}

// ResolveDataDir picks the directory the database lives in and creates it.
// Order: explicit override (flag), configured DataDir, then a per-user
// default under the OS config directory.
func ResolveDataDir(override, configured string) (string, error) {
	for _, dir := range []string{override, configured} {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		return dir, nil
	}

	base, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	dir := filepath.Join(base, "cryptoadvisor")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// DBPath joins the resolved data directory with the configured database name.
func (c Config) DBPath(dataDir string) string {
	name := c.DBName
	if name == "" {
		name = defaultDBName
	}
	return filepath.Join(dataDir, name)
}

// MaskSecret shortens a credential for logging, keeping the last four
// characters so operators can tell keys apart.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "***"
	}
	return "***" + value[len(value)-4:]
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil || i <= 0 {
		return fallback
	}
	return i
}
