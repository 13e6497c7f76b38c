package advisor

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// GeminiConfig holds the generation service credential and endpoint. The
// credential is explicit configuration rather than ambient process state so
// tests can point the client at a stub server.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// CoinbaseConfig holds the market-data passthrough credential pair.
type CoinbaseConfig struct {
	KeyName   string
	KeySecret string
	BaseURL   string
	Client    HTTPDoer
	Timeout   time.Duration
}

// Options controls Core initialization.
type Options struct {
	DBPath            string
	Logger            *slog.Logger
	Gemini            GeminiConfig
	Coinbase          CoinbaseConfig
	GenerationTimeout time.Duration
}

// Core provides access to the advisory pipeline, the market-data passthrough
// and the audit log storage.
type Core struct {
	db         *sql.DB
	logger     *slog.Logger
	gemini     GeminiConfig
	market     *marketDataClient
	genTimeout time.Duration
	dbPath     string
}

// Open initializes a Core using the provided database path.
func Open(dbPath string) (*Core, error) {
	return OpenWithOptions(Options{DBPath: dbPath})
}

// OpenWithOptions initializes a Core using the provided options.
func OpenWithOptions(opts Options) (*Core, error) {
	if opts.DBPath == "" {
		return nil, errors.New("db path is required")
	}
	cleanPath := filepath.Clean(opts.DBPath)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite performs best with a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Warn("pragma busy_timeout failed", "err", err)
	}

	if err := initDatabase(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}

	gemini := opts.Gemini
	if gemini.BaseURL == "" {
		gemini.BaseURL = defaultGeminiBaseURL
	}
	if gemini.Model == "" {
		gemini.Model = defaultGeminiModel
	}

	return &Core{
		db:         db,
		logger:     logger,
		gemini:     gemini,
		market:     newMarketDataClient(opts.Coinbase, logger),
		genTimeout: defaultDuration(opts.GenerationTimeout, defaultGenerationTimeout),
		dbPath:     cleanPath,
	}, nil
}

// Close releases database resources.
func (c *Core) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Logger returns the core's logger.
func (c *Core) Logger() *slog.Logger {
	return c.logger
}

// DBPath returns the underlying database path.
func (c *Core) DBPath() string {
	return c.dbPath
}

func defaultDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
