package hcasfs

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/msg555/vericas/hcas"
	"github.com/msg555/vericas/merkle"
)

func newTestRepoSession(t *testing.T) *merkle.RepoSession {
	t.Helper()
	backend, err := hcas.CreateHcas(t.TempDir())
	require.NoError(t, err)

	repo, err := merkle.OpenRepo(backend)
	require.NoError(t, err)

	session, err := repo.NewSession()
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestImportPath(t *testing.T) {
	repo := newTestRepoSession(t)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file1.txt"), []byte("content of file1"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "subdir", "nested.txt"), []byte("nested content"), 0o644))
	require.NoError(t, os.Symlink("file1.txt", filepath.Join(root, "link.txt")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))

	tree, err := ImportPath(repo, root)
	require.NoError(t, err)

	data, ok, err := repo.TreeFind(tree, merkle.Path{"file1.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "content of file1", string(data))

	data, ok, err = repo.TreeFind(tree, merkle.Path{"subdir", "nested.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "nested content", string(data))

	data, ok, err = repo.TreeFind(tree, merkle.Path{"link.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "file1.txt", string(data))

	isDir, err := repo.TreeMemTree(tree, merkle.Path{"empty"})
	require.NoError(t, err)
	require.True(t, isDir)
}

func TestImportPathRejectsNonDirectory(t *testing.T) {
	repo := newTestRepoSession(t)

	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := ImportPath(repo, file)
	require.Error(t, err)
}

func buildTar(t *testing.T, entries func(tw *tar.Writer)) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	entries(tw)
	require.NoError(t, tw.Close())
	return &buf
}

func TestImportTar(t *testing.T) {
	repo := newTestRepoSession(t)

	data := buildTar(t, func(tw *tar.Writer) {
		content := []byte("hello world")
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: "a/b.txt",
			Size: int64(len(content)),
			Mode: 0o644,
		}))
		_, err := tw.Write(content)
		require.NoError(t, err)

		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "a/link.txt",
			Linkname: "a/b.txt",
			Typeflag: tar.TypeLink,
		}))

		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "a/sym.txt",
			Linkname: "b.txt",
			Typeflag: tar.TypeSymlink,
		}))
	})

	tree, err := ImportTar(repo, data)
	require.NoError(t, err)

	contents, ok, err := repo.TreeFind(tree, merkle.Path{"a", "b.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello world", string(contents))

	contents, ok, err = repo.TreeFind(tree, merkle.Path{"a", "link.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello world", string(contents))

	contents, ok, err = repo.TreeFind(tree, merkle.Path{"a", "sym.txt"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b.txt", string(contents))
}

func TestImportTarRejectsBrokenHardlink(t *testing.T) {
	repo := newTestRepoSession(t)

	data := buildTar(t, func(tw *tar.Writer) {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "broken.txt",
			Linkname: "missing.txt",
			Typeflag: tar.TypeLink,
		}))
	})

	_, err := ImportTar(repo, data)
	require.Error(t, err)
}
