package hcasfs

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-errors/errors"

	"github.com/msg555/vericas/merkle"
)

// ImportTar reads a tar stream and returns a *merkle.Tree with one leaf
// per regular file and symlink entry. Hardlinks are resolved against
// already-seen entries; devices, fifos and other non-regular types have
// no content-addressable payload and are skipped.
func ImportTar(repo *merkle.RepoSession, r io.Reader) (*merkle.Tree, error) {
	tr := tar.NewReader(r)
	tree := merkle.NewEmptyTree()
	seen := map[string][]byte{}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		name := filepath.Clean("/" + header.Name)
		fileName := filepath.Base(name)
		if !validatePathName(fileName) {
			fmt.Fprintf(os.Stderr, "hcasfs: skipping tar entry with invalid name %q\n", fileName)
			continue
		}
		treePath := merkle.Path(strings.Split(strings.TrimPrefix(name, "/"), "/"))

		switch header.Typeflag {
		case tar.TypeDir:
			continue

		case tar.TypeReg, tar.TypeRegA:
			data, err := io.ReadAll(tr)
			if err != nil {
				return nil, err
			}
			seen[name] = data
			tree, err = repo.TreeAdd(tree, treePath, data)
			if err != nil {
				return nil, err
			}

		case tar.TypeSymlink:
			tree, err = repo.TreeAdd(tree, treePath, []byte(header.Linkname))
			if err != nil {
				return nil, err
			}

		case tar.TypeLink:
			linkName := filepath.Clean("/" + header.Linkname)
			data, ok := seen[linkName]
			if !ok {
				return nil, errors.New("hcasfs: archive contains hardlink to unseen file " + linkName)
			}
			seen[name] = data
			tree, err = repo.TreeAdd(tree, treePath, data)
			if err != nil {
				return nil, err
			}

		default:
			fmt.Fprintf(os.Stderr, "hcasfs: skipping unsupported tar entry %q (type %c)\n", name, header.Typeflag)
		}
	}

	return tree, nil
}
