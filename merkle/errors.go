package merkle

import (
	"time"

	"github.com/go-errors/errors"
)

// Recoverable errors surfaced to command handlers as ordinary error
// values (see server.recoverableError); handler-fatal faults wrap with
// errors.Wrap from go-errors so a server-side log line carries a stack.
var (
	ErrCommitParentMissing = errors.New("commit parent does not resolve in the commit store")
	ErrTreeHandleUnknown   = errors.New("unknown tree handle")
	ErrPathNotFound        = errors.New("path not found")
	ErrNotATree            = errors.New("path does not name a tree")
	ErrMergeConflict       = &MergeConflictError{}
)

// MergeConflictError reports a three-way merge conflict at a path: both
// sides changed the same leaf to different contents with no common
// resolution. Ours/Theirs carry the two conflicting payloads so a caller
// (the client CLI's merge command, via go-diff) can render what actually
// differs.
type MergeConflictError struct {
	Path   Path
	Ours   []byte
	Theirs []byte
}

func (e *MergeConflictError) Error() string {
	return "merge conflict at " + PathString(e.Path)
}

func PathString(p Path) string {
	s := ""
	for i, step := range p {
		if i > 0 {
			s += "/"
		}
		s += step
	}
	return s
}

func timeFromUnixNano(nanos int64) time.Time {
	return time.Unix(0, nanos).UTC()
}
