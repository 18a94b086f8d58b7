package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/flightwire/drone-telemetry/internal/telemetry"
)

func testConfig(t *testing.T, dbPath string) *Config {
	t.Helper()

	return &Config{
		DBPath:     dbPath,
		FlightID:   1,
		OutputFile: filepath.Join(t.TempDir(), "chart.png"),
		Format:     ImagePNG,
		Channels:   []string{telemetry.ChannelAltitude},
		Width:      800,
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	config := testConfig(t, filepath.Join(t.TempDir(), "missing.sqlite"))

	if err := Run(context.Background(), config, logger); err == nil {
		t.Error("Run succeeded against a missing database file")
	}
}

func TestRun_UnreadableDatabasePath(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A regular file as a path component makes stat fail with an error
	// that is not "does not exist"; Run must surface it up front instead
	// of silently proceeding to the driver.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	config := testConfig(t, filepath.Join(blocker, "flight.sqlite"))

	err := Run(context.Background(), config, logger)
	if err == nil {
		t.Fatal("Run succeeded against an unreachable database path")
	}

	var pathErr *os.PathError
	if !errors.As(err, &pathErr) || pathErr.Op != "stat" {
		t.Errorf("error %v does not surface the stat failure", err)
	}
}
