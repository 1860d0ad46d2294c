package engine

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// wellKnownPaths are the install locations probed after explicit
// configuration and the environment.
var wellKnownPaths = []string{
	"/usr/local/bin/stockfish",
	"/usr/bin/stockfish",
	"/usr/games/stockfish",
	"/opt/homebrew/bin/stockfish",
}

// ResolveBinary locates the engine executable once at startup. Resolution
// order: explicit config value, STOCKFISH_PATH, PATH lookup, well-known
// install paths. Failure is ErrEngineUnavailable; the engine is never
// re-resolved per call.
func ResolveBinary(explicit string) (string, error) {
	var tried []string

	candidates := make([]string, 0, 2+len(wellKnownPaths))
	if explicit != "" {
		candidates = append(candidates, explicit)
	}
	if env := os.Getenv("STOCKFISH_PATH"); env != "" {
		candidates = append(candidates, env)
	}

	for _, c := range candidates {
		if isExecutableFile(c) {
			return c, nil
		}
		tried = append(tried, c)
	}

	if path, err := exec.LookPath("stockfish"); err == nil {
		return path, nil
	}
	tried = append(tried, "$PATH:stockfish")

	for _, c := range wellKnownPaths {
		if isExecutableFile(c) {
			return c, nil
		}
		tried = append(tried, c)
	}

	return "", fmt.Errorf("%w: no engine binary found (tried %s)", ErrEngineUnavailable, strings.Join(tried, ", "))
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
