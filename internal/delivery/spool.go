package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ashureev/decoy/internal/domain"
)

// Spool stores undeliverable reports as indented JSON files, one per session.
type Spool struct {
	dir string
}

// NewSpool creates a spool rooted at dir. The directory is created on first write.
func NewSpool(dir string) *Spool {
	return &Spool{dir: dir}
}

// Dir returns the spool directory.
func (s *Spool) Dir() string {
	return s.dir
}

// PathFor returns the file a session's report is written to.
func (s *Spool) PathFor(sessionID string) string {
	return filepath.Join(s.dir, domain.FileName(sessionID)+".json")
}

// Write stores the payload atomically and returns its path.
func (s *Spool) Write(payload domain.ReportPayload) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create spool directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".report-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("encode spooled report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close spool file: %w", err)
	}

	path := s.PathFor(payload.SessionID)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("rename spool file: %w", err)
	}
	return path, nil
}

// List returns spooled report paths in lexical order. A missing directory is empty.
func (s *Spool) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spool directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(s.dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Read decodes a spooled report.
func (s *Spool) Read(path string) (domain.ReportPayload, error) {
	var p domain.ReportPayload
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read spooled report: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode spooled report %s: %w", path, err)
	}
	return p, nil
}

// Remove deletes a spooled report.
func (s *Spool) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spooled report: %w", err)
	}
	return nil
}
