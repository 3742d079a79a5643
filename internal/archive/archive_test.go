package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-patcher/internal/testutil"
	"class-patcher/internal/ziputil"
)

func TestAssemblerWritesEntriesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patch", "release", "patchClass.jar")
	a, err := NewAssembler(path)
	require.NoError(t, err)
	require.NoError(t, a.Append("p/B.class", []byte("bbb")))
	require.NoError(t, a.Append("p/A.class", []byte("aaa")))
	assert.Equal(t, 2, a.Count())
	require.NoError(t, a.Close())

	entries := testutil.ReadJar(t, path)
	assert.Equal(t, []string{"p/B.class", "p/A.class"}, testutil.Names(entries))
	assert.Equal(t, []byte("aaa"), entries[1].Data)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	for _, f := range zr.File {
		assert.True(t, f.Modified.Equal(ziputil.FixedZipTime), "fixed timestamp on %s", f.Name)
	}
}

func TestAssemblerIsReproducible(t *testing.T) {
	dir := t.TempDir()
	build := func(name string) []byte {
		a, err := NewAssembler(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, a.Append("x/Y.class", []byte("payload")))
		require.NoError(t, a.Close())
		b, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		return b
	}
	if !bytes.Equal(build("one.jar"), build("two.jar")) {
		t.Fatalf("identical inputs produced different jars")
	}
}

func TestAssemblerEmptyAndClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jar")
	a, err := NewAssembler(path)
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.Empty(t, testutil.ReadJar(t, path))
	assert.ErrorIs(t, a.Append("late", nil), ErrClosed)
}

func TestAssemblerAbortLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAssembler(filepath.Join(dir, "p.jar"))
	require.NoError(t, err)
	require.NoError(t, a.Append("a", []byte("a")))
	a.Abort()
	a.Abort()

	names, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewAssemblerFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := NewAssembler(filepath.Join(blocker, "p.jar"))
	var aerr *ArchiveIOError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "create", aerr.Op)
}

func TestRebuildReplacesAndPassesThrough(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteJar(t, filepath.Join(dir, "0.jar"),
		testutil.Entry{Name: "a/A.class", Data: []byte("A")},
		testutil.Entry{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		testutil.Entry{Name: "b/B.class", Data: []byte("B")},
	)

	var seen []string
	err := Rebuild(src, func(e Entry) ([]byte, bool, error) {
		seen = append(seen, e.Name())
		if !strings.HasSuffix(e.Name(), ".class") {
			return nil, false, nil
		}
		data, err := e.Read()
		if err != nil {
			return nil, false, err
		}
		return append(data, '!'), true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/A.class", "META-INF/MANIFEST.MF", "b/B.class"}, seen)

	entries := testutil.ReadJar(t, src)
	assert.Equal(t, []testutil.Entry{
		{Name: "a/A.class", Data: []byte("A!")},
		{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		{Name: "b/B.class", Data: []byte("B!")},
	}, entries)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRebuildFailureKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteJar(t, filepath.Join(dir, "0.jar"),
		testutil.Entry{Name: "a/A.class", Data: []byte("A")},
		testutil.Entry{Name: "b/B.class", Data: []byte("B")},
	)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = Rebuild(src, func(e Entry) ([]byte, bool, error) {
		if e.Name() == "b/B.class" {
			return nil, false, boom
		}
		return []byte("changed"), true, nil
	})
	assert.ErrorIs(t, err, boom)

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	leftovers, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestRebuildUnreadableSource(t *testing.T) {
	src := testutil.WriteFile(t, t.TempDir(), "bad.jar", []byte("not a zip"))
	err := Rebuild(src, func(Entry) ([]byte, bool, error) { return nil, false, nil })
	var aerr *ArchiveIOError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "open", aerr.Op)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "p/Q.class", SanitizeName("/p/./Q.class"))
	assert.Equal(t, "Q.class", SanitizeName("../../Q.class"))
}
