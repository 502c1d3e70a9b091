package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/prototrack/prototrack/pkg/config"
)

// Store keeps attachments on local disk under a flat upload directory.
// Keys are derived from the owning protocol id so two protocols can
// carry an attachment with the same original filename.
type Store struct {
	dir     string
	allowed map[string]bool
}

func NewStore(cfg *config.StorageConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Store{dir: cfg.UploadDir, allowed: allowed}, nil
}

func (s *Store) Allowed(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return ext != "" && s.allowed[ext]
}

// Key derives the stored key for a protocol attachment. The original
// filename is flattened to its base name first.
func Key(protocolID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s_%s", protocolID, filepath.Base(filename))
}

func (s *Store) Save(key string, content []byte) error {
	return os.WriteFile(filepath.Join(s.dir, filepath.Base(key)), content, 0o644)
}

func (s *Store) Read(key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(key)))
}

func (s *Store) Remove(key string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
