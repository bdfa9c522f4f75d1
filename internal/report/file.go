package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultFilename returns the conventional file name for sessionID's report
// exported at t, e.g. dark_forest_results_2026-05-04_<session>.json. The
// session id keeps same-day exports of different sessions apart.
func DefaultFilename(t time.Time, sessionID string) string {
	return baseName(t, sessionID) + ".json"
}

// ArchiveFilename is DefaultFilename with the archive extension.
func ArchiveFilename(t time.Time, sessionID string) string {
	return baseName(t, sessionID) + ".json.gz"
}

func baseName(t time.Time, sessionID string) string {
	name := "dark_forest_results_" + t.UTC().Format("2006-01-02")
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, sessionID)
	if id != "" {
		name += "_" + id
	}
	return name
}

// Write stores r as indented JSON at path. Missing parent directories are
// created. The write goes through a temp file and rename so a reader never
// sees a partial report.
func Write(path string, r *Report) error {
	if r == nil {
		return fmt.Errorf("writing report: report is nil")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

// Read loads a plain JSON report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing report temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming report file: %w", err)
	}
	return nil
}
