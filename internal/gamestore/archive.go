package gamestore

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/chessmirror/chessmirror/internal/game"
)

// AnalysisRecord is one archived analysis line.
type AnalysisRecord struct {
	User      string              `json:"user"`
	Platform  string              `json:"platform"`
	GameID    string              `json:"game_id"`
	Traits    *game.TraitScoreSet `json:"traits"`
	CreatedAt time.Time           `json:"created_at"`
}

// Archive appends finished analyses to a zstd-compressed JSON-lines log.
// Each append writes one self-contained frame, so a partially written tail
// never corrupts earlier records.
type Archive struct {
	mu   sync.Mutex
	path string
}

// NewArchive creates the archive directory if needed.
func NewArchive(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{path: filepath.Join(dir, "analyses.jsonl.zst")}, nil
}

// Append writes one record to the log.
func (a *Archive) Append(rec AnalysisRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)
	if err := enc.Encode(rec); err != nil {
		zw.Close()
		return fmt.Errorf("encode record: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	return nil
}

// Load reads every record back, skipping a truncated tail.
func (a *Archive) Load() ([]AnalysisRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer zr.Close()

	var records []AnalysisRecord
	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec AnalysisRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read archive: %w", err)
	}
	return records, nil
}
