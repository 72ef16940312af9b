package paths

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/xplane-assets/pkg/xperr"
)

func TestRelativeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := Resolver{ProjectFile: filepath.Join(dir, "scene.blend")}

	for _, p := range []string{"//textures/wall.png", "//a.png", "//../shared/x.png"} {
		abs, err := r.ToAbsolute(p)
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(abs))
		assert.Equal(t, p, r.ToRelative(abs), "round trip of %s", p)
	}
}

func TestToAbsoluteBackslashes(t *testing.T) {
	r := Resolver{ProjectFile: "/proj/scene.blend"}
	abs, err := r.ToAbsolute(`//tex\roof.png`)
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/proj/tex/roof.png"), abs)
}

func TestRelativeRoundTripCanonicalizes(t *testing.T) {
	r := Resolver{ProjectFile: filepath.Join(t.TempDir(), "scene.blend")}

	tests := []struct {
		in, want string
	}{
		{`//tex\roof.png`, "//tex/roof.png"},
		{"//tex/./roof.png", "//tex/roof.png"},
		{"//tex//roof.png", "//tex/roof.png"},
		{"//a/../b.png", "//b.png"},
	}
	for _, tt := range tests {
		abs, err := r.ToAbsolute(tt.in)
		require.NoError(t, err)
		got := r.ToRelative(abs)
		assert.Equal(t, tt.want, got, "ToRelative(ToAbsolute(%q))", tt.in)

		again, err := r.ToAbsolute(got)
		require.NoError(t, err)
		assert.Equal(t, got, r.ToRelative(again), "canonical %q is stable", got)
	}
}

func TestUnsavedProject(t *testing.T) {
	r := Resolver{}
	_, err := r.ToAbsolute("//a.png")
	assert.True(t, errors.Is(err, xperr.ErrIO))
	assert.Equal(t, "/abs/a.png", r.ToRelative("/abs/a.png"))
}

func TestAssetRelative(t *testing.T) {
	rel, err := AssetRelative("/scenery/objects/house.obj", "/scenery/textures/house.png")
	require.NoError(t, err)
	assert.Equal(t, "../textures/house.png", rel)
	assert.NotContains(t, rel, `\`)

	assert.Equal(t, filepath.FromSlash("/scenery/textures/house.png"),
		FromAsset("/scenery/objects/house.obj", `..\textures\house.png`))
}

func TestBackupName(t *testing.T) {
	mtime := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "/x/a_backup_20240309_140507.obj", BackupName("/x/a.obj", mtime, 0))
	assert.Equal(t, "/x/a_backup_20240309_140507_2.obj", BackupName("/x/a.obj", mtime, 2))
}

func TestWriteFileBacksUp(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out", "a.lin")

	require.NoError(t, WriteFile(target, []byte("first"), true))
	require.NoError(t, WriteFile(target, []byte("second"), true))
	require.NoError(t, WriteFile(target, []byte("third"), true))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "third", string(data))

	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	var backups []string
	for _, e := range entries {
		if strings.Contains(e.Name(), "_backup_") {
			backups = append(backups, e.Name())
		}
	}
	assert.Len(t, backups, 2, "each overwrite keeps one backup: %v", backups)
}

func TestBackupNameTooLong(t *testing.T) {
	target := filepath.Join(t.TempDir(), strings.Repeat("a", 240)+".obj")
	require.NoError(t, WriteFile(target, []byte("first"), false))

	done := make(chan error, 1)
	go func() { done <- WriteFile(target, []byte("second"), true) }()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, xperr.ErrIO), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("WriteFile with backup did not return")
	}
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data), "original kept when no backup can be made")
}

func TestBackupMissingFile(t *testing.T) {
	name, err := Backup(filepath.Join(t.TempDir(), "none.obj"))
	require.NoError(t, err)
	assert.Empty(t, name)
}
