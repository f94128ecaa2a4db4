package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source is an ordered collection of graphics.
type Source interface {
	Count() int
	Name(index int) string
	Load(index int, logger *slog.Logger) (*Document, string, error)
}

// FileSource serves .svg files from a single file or a directory.
type FileSource struct {
	paths []string
}

// NewFileSource lists path itself, or every .svg file directly inside it
// when path is a directory, in lexical order.
func NewFileSource(path string) (*FileSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".svg") {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	return &FileSource{paths: paths}, nil
}

func (s *FileSource) Count() int {
	return len(s.paths)
}

// Name is the file's base name without extension.
func (s *FileSource) Name(index int) string {
	base := filepath.Base(s.paths[index])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads and parses the graphic at index, returning the raw text too.
func (s *FileSource) Load(index int, logger *slog.Logger) (*Document, string, error) {
	if index < 0 || index >= len(s.paths) {
		return nil, "", fmt.Errorf("source index %d out of range", index)
	}
	data, err := os.ReadFile(s.paths[index])
	if err != nil {
		return nil, "", err
	}
	doc, err := ParseString(string(data), logger)
	if err != nil {
		return nil, "", err
	}
	return doc, string(data), nil
}
