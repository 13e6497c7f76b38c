package advisor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// setupTestCore creates a Core backed by a temporary database, with a dummy
// generation credential so the pipeline does not bail out before the stub.
func setupTestCore(t *testing.T) (*Core, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "advisor-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	core, err := OpenWithOptions(Options{
		DBPath: dbPath,
		Gemini: GeminiConfig{APIKey: "test-key"},
	})
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to open test db: %v", err)
	}

	cleanup := func() {
		core.Close()
		os.RemoveAll(tmpDir)
	}

	return core, cleanup
}

// stubGeneration replaces the generation call for the duration of the test
// and restores the original afterwards.
func stubGeneration(t *testing.T, fn func(ctx context.Context, req generationRequest) (string, error)) {
	t.Helper()

	original := generateText
	t.Cleanup(func() { generateText = original })
	generateText = func(ctx context.Context, cfg GeminiConfig, req generationRequest, logger *slog.Logger) (string, error) {
		return fn(ctx, req)
	}
}
