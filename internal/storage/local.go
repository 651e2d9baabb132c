// Package storage persists uploaded inputs and generated outputs as files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidName indicates a stored-object name that escapes the store root.
var ErrInvalidName = errors.New("storage: invalid object name")

// Store saves and resolves binary artifacts.
type Store interface {
	SaveUpload(data []byte, originalName string) (string, error)
	SaveOutput(data []byte, ext string) (string, error)
	UploadPath(name string) (string, error)
	OutputPath(name string) (string, error)
}

// LocalStore keeps artifacts on the local filesystem under two roots.
type LocalStore struct {
	uploadDir string
	outputDir string
}

// NewLocalStore creates both storage roots if they do not exist.
func NewLocalStore(uploadDir, outputDir string) (*LocalStore, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
			return nil, fmt.Errorf("storage: create dir %s: %w", dir, errMkdir)
		}
	}
	return &LocalStore{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// SaveUpload stores an uploaded file under a random name, preserving the
// original extension. Returns the generated object name.
func (s *LocalStore) SaveUpload(data []byte, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".bin"
	}
	name := uuid.NewString() + ext
	if errWrite := os.WriteFile(filepath.Join(s.uploadDir, name), data, 0o644); errWrite != nil {
		return "", fmt.Errorf("storage: save upload: %w", errWrite)
	}
	return name, nil
}

// SaveOutput stores a generated artifact under a random name with the given
// extension. Returns the generated object name.
func (s *LocalStore) SaveOutput(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := uuid.NewString() + ext
	if errWrite := os.WriteFile(filepath.Join(s.outputDir, name), data, 0o644); errWrite != nil {
		return "", fmt.Errorf("storage: save output: %w", errWrite)
	}
	return name, nil
}

// UploadPath resolves an upload object name to an absolute file path.
func (s *LocalStore) UploadPath(name string) (string, error) {
	return resolveWithin(s.uploadDir, name)
}

// OutputPath resolves an output object name to an absolute file path.
func (s *LocalStore) OutputPath(name string) (string, error) {
	return resolveWithin(s.outputDir, name)
}

// resolveWithin rejects names that would escape the store root.
func resolveWithin(root, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrInvalidName
	}
	return filepath.Join(root, name), nil
}
