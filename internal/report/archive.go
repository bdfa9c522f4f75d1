package report

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ArchiveVersion is the current archive format version.
const ArchiveVersion = 1

// MaxDecompressedSize caps the decompressed archive payload (16MB).
const MaxDecompressedSize = 16 * 1024 * 1024

// Header is the plain-text first line of an archive file.
type Header struct {
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
	Checksum      string `json:"checksum"`
	SessionID     string `json:"session_id"`
	DecisionCount int    `json:"decision_count"`
	Compressed    bool   `json:"compressed"`
}

// WriteArchive stores r as a header line followed by a gzip-compressed JSON
// payload. The header checksum covers the compressed bytes.
func WriteArchive(path string, r *Report) (*Header, error) {
	if r == nil {
		return nil, fmt.Errorf("writing archive: report is nil")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, gzip.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := &Header{
		Version:       ArchiveVersion,
		CreatedAt:     r.ExportedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Checksum:      checksum(compressed.Bytes()),
		SessionID:     r.SessionID,
		DecisionCount: len(r.Decisions),
		Compressed:    true,
	}
	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	var out bytes.Buffer
	out.Grow(len(headerBytes) + 1 + compressed.Len())
	out.Write(headerBytes)
	out.WriteByte('\n')
	out.Write(compressed.Bytes())

	if err := writeAtomic(path, out.Bytes()); err != nil {
		return nil, err
	}
	return header, nil
}

// ReadArchive reads an archive, verifies its checksum and decodes the report.
func ReadArchive(path string) (*Report, *Header, error) {
	header, compressed, err := readArchive(path)
	if err != nil {
		return nil, nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	decompressed, err := io.ReadAll(io.LimitReader(gzr, MaxDecompressedSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var r Report
	if err := json.Unmarshal(decompressed, &r); err != nil {
		return nil, nil, fmt.Errorf("parsing report payload: %w", err)
	}
	if r.SessionID != header.SessionID {
		return nil, nil, fmt.Errorf("header session %s does not match payload session %s", header.SessionID, r.SessionID)
	}
	return &r, header, nil
}

// Verify checks the header and checksum of an archive without decoding the
// payload.
func Verify(path string) (*Header, error) {
	header, _, err := readArchive(path)
	return header, err
}

func readArchive(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != ArchiveVersion {
		return nil, nil, fmt.Errorf("unsupported archive version %d", header.Version)
	}

	compressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}

	if actual := checksum(compressed); actual != header.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: expected %s, got %s", header.Checksum, actual)
	}
	return &header, compressed, nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
