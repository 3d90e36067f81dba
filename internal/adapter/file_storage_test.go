package adapter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lms-assessment/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "7/5/10/01HZ-report.pdf", want: "7/5/10/01HZ-report.pdf"},
		{in: "/7/a.txt", want: "7/a.txt"},
		{in: `7\a.txt`, want: "7/a.txt"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "../etc/passwd", wantErr: true},
		{in: "7/../../etc/passwd", wantErr: true},
		{in: "7/./a.txt", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := cleanKey(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFSFileStorage_Lifecycle(t *testing.T) {
	base := t.TempDir()
	s, err := NewFSFileStorage(base)
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := s.Store(ctx, "7/5/10/01HZ-report.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "7/5/10/01HZ-report.pdf", stored)

	data, err := os.ReadFile(filepath.Join(base, "7", "5", "10", "01HZ-report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	ok, err := s.Exists(ctx, stored)
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := os.ReadDir(filepath.Join(base, "7", "5", "10"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")

	require.NoError(t, s.Delete(ctx, stored))
	require.NoError(t, s.Delete(ctx, stored), "deleting a missing file is not an error")

	ok, err = s.Exists(ctx, stored)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(ctx, "7/5")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestFSFileStorage_FailedWriteLeavesNothing(t *testing.T) {
	base := t.TempDir()
	s, err := NewFSFileStorage(base)
	require.NoError(t, err)

	_, err = s.Store(context.Background(), "7/a.txt", failingReader{})
	assert.ErrorContains(t, err, "client went away")

	entries, err := os.ReadDir(filepath.Join(base, "7"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSFileStorage_RejectsTraversal(t *testing.T) {
	s, err := NewFSFileStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Store(context.Background(), "../escape.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, s.Delete(context.Background(), "../escape.txt"), ErrInvalidPath)
}

func TestNewFileStorage(t *testing.T) {
	s, err := NewFileStorage(context.Background(), config.StorageConfig{Driver: "fs", BasePath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FSFileStorage{}, s)

	_, err = NewFileStorage(context.Background(), config.StorageConfig{Driver: "s3"})
	assert.ErrorContains(t, err, "unsupported storage driver")

	_, err = NewFileStorage(context.Background(), config.StorageConfig{Driver: "gcs"})
	assert.ErrorContains(t, err, "bucket is required")
}
