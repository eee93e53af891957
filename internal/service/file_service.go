// Package service holds small filesystem helpers shared by the ingress
// handlers and the worker pipeline: directory/copy/remove primitives, with
// SaveUpload placing artifacts under the name spec.md §4.4 requires
// (<job_id><suffix>) instead of a freshly generated uuid, since the job id
// is already the artifact's unique key.
package service

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// FileService handles filesystem operations for uploaded audio artifacts.
type FileService interface {
	SaveUpload(file *multipart.FileHeader, destDir, jobID string, extAllowed func(ext string) bool) (string, error)
	CreateDirectory(path string) error
	RemoveFile(path string) error
	ReadFile(path string) ([]byte, error)
	FileExists(path string) (bool, error)
}

type fileService struct{}

// NewFileService builds the default, stdlib-backed FileService.
func NewFileService() FileService {
	return &fileService{}
}

// SaveUpload copies fileHeader into destDir as "<jobID><suffix>". suffix is
// the claimed filename's extension if it's in the allow-list, else empty.
// The original service also falls back to the spooled temp file's own
// extension; Go's multipart.FileHeader doesn't expose a second, distinct
// extension the way Python's tempfile-backed UploadFile does, so that
// fallback collapses to a single extension source here.
func (s *fileService) SaveUpload(fileHeader *multipart.FileHeader, destDir, jobID string, extAllowed func(ext string) bool) (string, error) {
	if err := s.CreateDirectory(destDir); err != nil {
		return "", err
	}

	suffix := ""
	if ext := strings.ToLower(filepath.Ext(fileHeader.Filename)); extAllowed(ext) {
		suffix = ext
	}

	filePath := filepath.Join(destDir, jobID+suffix)

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to copy file content: %w", err)
	}

	return filePath, nil
}

func (s *fileService) CreateDirectory(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

func (s *fileService) RemoveFile(path string) error {
	return os.Remove(path)
}

func (s *fileService) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (s *fileService) FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
