package report

import (
	"fmt"
	"path/filepath"

	"github.com/nvandessel/darkforest/internal/pathutil"
)

// ExportOptions controls where Export places a report.
type ExportOptions struct {
	// Path is the output file. When empty, the default file name is used
	// inside Dir.
	Path string
	Dir  string

	// Compress selects the archive format over plain JSON.
	Compress bool

	// AllowedDirs restricts the output location. No validation is done
	// when it is empty.
	AllowedDirs []string
}

// Export writes r according to opts and returns the path written.
func Export(r *Report, opts ExportOptions) (string, error) {
	if r == nil {
		return "", fmt.Errorf("exporting report: report is nil")
	}

	path := opts.Path
	if path == "" {
		name := DefaultFilename(r.ExportedAt, r.SessionID)
		if opts.Compress {
			name = ArchiveFilename(r.ExportedAt, r.SessionID)
		}
		path = filepath.Join(opts.Dir, name)
	}

	if len(opts.AllowedDirs) > 0 {
		if err := pathutil.ValidatePath(path, opts.AllowedDirs); err != nil {
			return "", err
		}
	}

	if opts.Compress {
		if _, err := WriteArchive(path, r); err != nil {
			return "", err
		}
		return path, nil
	}
	if err := Write(path, r); err != nil {
		return "", err
	}
	return path, nil
}
