package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact directories under the store root
const (
	DirDPS       = "dps"
	DirNFSe      = "nfse"
	DirDANFSe    = "danfse"
	DirLogs      = "logs"
	DirProviders = "prestadores"
	DirCustomers = "tomadores"
	DirServices  = "servicos"
	DirCert      = "cert"
)

// TimestampLayout prefixes every artifact name
const TimestampLayout = "20060102_150405"

var layout = []string{DirCert, DirDPS, DirNFSe, DirDANFSe, DirLogs, DirProviders, DirCustomers, DirServices}

// Store writes emission artifacts below a root directory
type Store struct {
	root string
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{root: dir}
}

// Root returns the store's root directory
func (s *Store) Root() string {
	return s.root
}

// EnsureLayout creates the artifact directories
func (s *Store) EnsureLayout() error {
	for _, d := range layout {
		if err := os.MkdirAll(filepath.Join(s.root, d), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// Timestamp formats t for artifact names
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Name returns {ts}_{providerDoc}_{customerDoc}.{ext}
func Name(ts, providerDoc, customerDoc, ext string) string {
	base := fmt.Sprintf("%s_%s_%s", ts, providerDoc, customerDoc)
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// RenderingName names a DANFSe file. Without party documents it falls back
// to {ts}_{key}.pdf.
func RenderingName(ts, providerDoc, customerDoc, key string) string {
	if providerDoc == "" || customerDoc == "" {
		return fmt.Sprintf("%s_%s.pdf", ts, key)
	}
	return fmt.Sprintf("%s_%s_%s_%s.pdf", ts, providerDoc, customerDoc, key)
}

// SaveDPS writes a signed DPS to dps/
func (s *Store) SaveDPS(name string, xml []byte) (string, error) {
	return s.write(DirDPS, name, xml)
}

// SaveNFSe writes an issued NFS-e to nfse/
func (s *Store) SaveNFSe(name string, xml []byte) (string, error) {
	return s.write(DirNFSe, name, xml)
}

// SaveRendering writes a DANFSe PDF to danfse/
func (s *Store) SaveRendering(name string, pdf []byte) (string, error) {
	return s.write(DirDANFSe, name, pdf)
}

// SaveLog writes v as indented JSON to logs/
func (s *Store) SaveLog(name string, v interface{}) (string, error) {
	return s.writeJSON(DirLogs, name, v)
}

// SaveTemplate writes v as indented JSON to one of the template
// directories (prestadores, tomadores, servicos).
func (s *Store) SaveTemplate(dir, name string, v interface{}) (string, error) {
	switch dir {
	case DirProviders, DirCustomers, DirServices:
	default:
		return "", fmt.Errorf("unknown template directory %q", dir)
	}
	return s.writeJSON(dir, name, v)
}

func (s *Store) writeJSON(dir, name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}
	return s.write(dir, name, append(data, '\n'))
}

func (s *Store) write(dir, name string, data []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	full := filepath.Join(s.root, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(full, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
