package hcasfs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"

	"github.com/msg555/vericas/merkle"
)

// ImportPath walks path and returns a *merkle.Tree containing every
// regular file, symlink and directory found under it, keyed by its path
// relative to path. Each directory is added as an empty subtree before
// its contents, so empty directories are kept.
func ImportPath(repo *merkle.RepoSession, path string) (*merkle.Tree, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("hcasfs: import path must be a directory")
	}

	tree := merkle.NewEmptyTree()
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == path {
			return nil
		}
		if !validatePathName(d.Name()) {
			fmt.Fprintf(os.Stderr, "hcasfs: skipping file with invalid name %q\n", d.Name())
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(path, p)
		if err != nil {
			return err
		}
		treePath := merkle.Path(strings.Split(filepath.ToSlash(rel), "/"))

		switch {
		case d.Type().IsDir():
			tree, err = repo.TreeAddTree(tree, treePath, merkle.NewEmptyTree())
			return err
		case d.Type().IsRegular():
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			tree, err = repo.TreeAdd(tree, treePath, data)
			return err
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return err
			}
			tree, err = repo.TreeAdd(tree, treePath, []byte(target))
			return err
		default:
			fmt.Fprintf(os.Stderr, "hcasfs: skipping unsupported file type at %q\n", p)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}
