package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveBinaryExplicit(t *testing.T) {
	t.Setenv("STOCKFISH_PATH", "")
	path := writeExecutable(t, t.TempDir(), "stockfish")

	got, err := ResolveBinary(path)
	if err != nil {
		t.Fatalf("ResolveBinary(%s) error: %v", path, err)
	}
	if got != path {
		t.Errorf("resolved %s, want %s", got, path)
	}
}

func TestResolveBinaryEnvFallback(t *testing.T) {
	path := writeExecutable(t, t.TempDir(), "sf-env")
	t.Setenv("STOCKFISH_PATH", path)

	// Explicit value that does not exist falls through to the env var.
	got, err := ResolveBinary(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("ResolveBinary error: %v", err)
	}
	if got != path {
		t.Errorf("resolved %s, want %s", got, path)
	}
}

func TestResolveBinaryExplicitWinsOverEnv(t *testing.T) {
	dir := t.TempDir()
	explicit := writeExecutable(t, dir, "sf-explicit")
	envPath := writeExecutable(t, dir, "sf-env")
	t.Setenv("STOCKFISH_PATH", envPath)

	got, err := ResolveBinary(explicit)
	if err != nil {
		t.Fatal(err)
	}
	if got != explicit {
		t.Errorf("resolved %s, want explicit %s", got, explicit)
	}
}

func TestResolveBinaryNotExecutable(t *testing.T) {
	t.Setenv("STOCKFISH_PATH", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "stockfish")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)
	for _, p := range wellKnownPaths {
		if isExecutableFile(p) {
			t.Skipf("engine installed at %s", p)
		}
	}

	_, err := ResolveBinary(path)
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
}
