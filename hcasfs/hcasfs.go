// Package hcasfs builds a merkle.Tree from a local filesystem path or a
// tar archive, for the client's `import` subcommand (§ filesystem/archive
// import). It replaces a bespoke on-disk directory format with direct
// calls into the tree mutation API the wire protocol itself uses.
package hcasfs

import (
	"github.com/msg555/vericas/unix"
)

func validatePathName(name string) bool {
	if len(name) > unix.NAME_MAX {
		return false
	}
	if name == "" || name == "." || name == ".." {
		return false
	}
	for _, ch := range name {
		if ch == 0 || ch == '/' {
			return false
		}
	}
	return true
}
