// Package loader reads case files from disk and extracts their plain text.
//
// Supported formats are plain text, PDF (via github.com/ledongthuc/pdf) and
// Word .docx files.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedFileType is returned for extensions without an extractor.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrNoDocuments is returned when nothing readable was found.
	ErrNoDocuments = errors.New("no documents found")
)

// Document is one loaded file.
type Document struct {
	ID          string
	FileName    string
	Path        string
	Text        string
	ContentHash string
	Metadata    map[string]string
}

// extractor turns a file into text.
type extractor func(path string) (string, error)

var extractors = map[string]extractor{
	".txt":  readText,
	".pdf":  readPDF,
	".docx": readDOCX,
}

// Supported reports whether name has an extension the loader can read.
func Supported(name string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Loader reads documents from directories or explicit file lists.
type Loader struct {
	logger *slog.Logger
}

// New returns a Loader.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger.With("component", "loader")}
}

// LoadDir reads every supported file directly inside dir, in name order.
// Hidden and unsupported files are skipped.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !Supported(name) {
			l.logger.Debug("skipping unsupported file", "file", name)
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)

	docs, err := l.LoadFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	return docs, nil
}

// LoadFiles reads the given files. Any unsupported extension fails the whole call.
// Files that yield no text are skipped with a warning.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ext := strings.ToLower(filepath.Ext(path))
		extract, ok := extractors[ext]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Base(path))
		}

		text, err := extract(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			l.logger.Warn("file has no extractable text", "file", path)
			continue
		}

		docs = append(docs, Document{
			ID:          uuid.NewString(),
			FileName:    filepath.Base(path),
			Path:        path,
			Text:        text,
			ContentHash: HashContent(text),
			Metadata: map[string]string{
				"file_name": filepath.Base(path),
				"file_path": path,
				"file_type": ext,
			},
		})
	}
	return docs, nil
}

// HashContent returns the hex SHA-256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func readText(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return strings.ToValidUTF8(string(b), "�"), nil
	}
	return string(b), nil
}
