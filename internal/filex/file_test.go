package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureSubdDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureSubdDir("preupload")
	require.NoError(t, err)

	want := filepath.Join(tmp, "preupload")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		perm := fi.Mode().Perm()
		require.Equal(t, os.FileMode(0o700), perm&0o700)
	}
}

func TestEnsureSubdDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	first, err := EnsureSubdDir("preupload")
	require.NoError(t, err)

	second, err := EnsureSubdDir("preupload")
	require.NoError(t, err)

	require.Equal(t, first, second)
	fi, err := os.Stat(second)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureSubdDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("preupload", []byte("x"), 0o660))

	_, err := EnsureSubdDir("preupload")
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestEnsureSubdDir_AbsolutePathUsedAsIs(t *testing.T) {
	want := filepath.Join(t.TempDir(), "public", "temp")

	got, err := EnsureSubdDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestSafeExt(t *testing.T) {
	tests := map[string]string{
		"avatar.PNG":         ".png",
		"photo.jpeg":         ".jpeg",
		"../../etc/passwd":   "",
		"noext":              "",
		"weird.p$g":          "",
		"long.abcdefghijklm": "",
		"dir/cover.webp":     ".webp",
	}
	for in, want := range tests {
		require.Equal(t, want, SafeExt(in), in)
	}
}

func TestSpoolToTemp(t *testing.T) {
	dir := t.TempDir()

	path, err := SpoolToTemp(dir, ".png", strings.NewReader("image-bytes"))
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))
	require.True(t, strings.HasSuffix(path, ".png"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "image-bytes", string(b))
}

func TestSpoolToTemp_MissingDir(t *testing.T) {
	_, err := SpoolToTemp(filepath.Join(t.TempDir(), "nope"), "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestRemoveIfExists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))

	require.NoError(t, RemoveIfExists(p))
	require.NoError(t, RemoveIfExists(p))
	require.NoError(t, RemoveIfExists(""))

	_, err := os.Stat(p)
	require.True(t, os.IsNotExist(err))
}
