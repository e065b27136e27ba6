package storage

import (
	"context"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	key := NewKey("Damaged Pallet.JPG", now)
	assert.Regexp(t, regexp.MustCompile(`^2024/03/\d+-[0-9a-f-]{8}\.jpg$`), key)
	assert.NotEqual(t, key, NewKey("Damaged Pallet.JPG", now))
}

func TestPublicPath(t *testing.T) {
	assert.Equal(t, "/uploads/2024/03/a.png", PublicPath("2024/03/a.png"))
}

func TestCleanKey(t *testing.T) {
	for _, bad := range []string{"", "..", "../etc/passwd", "a/../../b", "/"} {
		_, err := cleanKey(bad)
		assert.Error(t, err, bad)
	}
	got, err := cleanKey("/2024/03/a.png")
	require.NoError(t, err)
	assert.Equal(t, "2024/03/a.png", got)
}

func TestLocalSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	l, err := NewLocal(filepath.Join(root, "uploads"))
	require.NoError(t, err)

	key := "2024/03/photo.png"
	require.NoError(t, l.Save(ctx, key, strings.NewReader("png-bytes"), 9, "image/png"))

	rc, err := l.Open(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, l.Delete(ctx, key))
	assert.ErrorIs(t, l.Delete(ctx, key), ErrNotExist)

	_, err = l.Open(ctx, key)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalRejectsTraversal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, l.Save(context.Background(), "../escape.png", strings.NewReader("x"), 1, "image/png"))
}

func TestLocalOpenDirectoryIsNotExist(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Save(ctx, "2024/03/photo.png", strings.NewReader("x"), 1, "image/png"))

	for _, key := range []string{"2024", "2024/03"} {
		_, err := l.Open(ctx, key)
		assert.ErrorIs(t, err, ErrNotExist, key)
	}
}
