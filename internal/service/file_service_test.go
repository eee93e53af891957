package service

import (
	"bytes"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fileHeaderFor(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reader := multipart.NewReader(bytes.NewReader(buf.Bytes()), w.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()) + 1024)
	require.NoError(t, err)
	require.Len(t, form.File["file"], 1)
	return form.File["file"][0]
}

func allowAll(string) bool  { return true }
func allowNone(string) bool { return false }

func TestFileService_SaveUpload_UsesJobIDAndAllowedExtension(t *testing.T) {
	svc := NewFileService()
	destDir := filepath.Join(t.TempDir(), "artifacts")
	fh := fileHeaderFor(t, "clip.WAV", []byte("riff-data"))

	path, err := svc.SaveUpload(fh, destDir, "n1-abc", allowAll)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(destDir, "n1-abc.wav"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "riff-data", string(data))
}

func TestFileService_SaveUpload_DropsDisallowedExtension(t *testing.T) {
	svc := NewFileService()
	destDir := t.TempDir()
	fh := fileHeaderFor(t, "clip.ogg", []byte("data"))

	path, err := svc.SaveUpload(fh, destDir, "n1-abc", allowNone)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(destDir, "n1-abc"), path)
}

func TestFileService_RemoveFileAndFileExists(t *testing.T) {
	svc := NewFileService()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	exists, err := svc.FileExists(path)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, svc.RemoveFile(path))

	exists, err = svc.FileExists(path)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestFileService_ReadFile(t *testing.T) {
	svc := NewFileService()
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, os.WriteFile(path, []byte("contents"), 0644))

	data, err := svc.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "contents", string(data))
}
