// Command fusemount mounts a branch or commit of a local repo read-only
// via bazil.org/fuse. It talks directly to a local merkle.Repo, the same
// way the teacher's fuse server talked directly to a local hcas.Hcas; it
// does not go through the wire protocol.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"

	"github.com/msg555/vericas/fusefs"
	"github.com/msg555/vericas/hcas"
	"github.com/msg555/vericas/merkle"
)

func main() {
	storeDir := flag.String("store", "", "path to the hcas object store directory")
	branch := flag.String("branch", string(merkle.DefaultBranch), "branch to mount")
	commit := flag.String("commit", "", "commit hash to mount (overrides -branch)")
	allowOther := flag.Bool("allow-other", false, "pass allow_other to the fuse mount")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fusemount [flags] <mount-point>")
		os.Exit(1)
	}
	mountPoint := flag.Arg(0)

	backend, err := hcas.OpenHcas(*storeDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening store: %v\n", err)
		os.Exit(1)
	}
	repo, err := merkle.OpenRepo(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening repo: %v\n", err)
		os.Exit(1)
	}
	session, err := repo.NewSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening session: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()

	var commitHash merkle.Hash
	if *commit != "" {
		raw, err := hex.DecodeString(*commit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid commit hash %q: %v\n", *commit, err)
			os.Exit(1)
		}
		commitHash = merkle.HashFromBytes(raw)
	} else {
		head, ok, err := session.BranchFind(merkle.BranchName(*branch))
		if err != nil {
			fmt.Fprintf(os.Stderr, "resolving branch %q: %v\n", *branch, err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintf(os.Stderr, "branch %q has no commits\n", *branch)
			os.Exit(1)
		}
		commitHash = head.Hash
	}

	tree, err := session.TreeOfCommit(commitHash)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving commit tree: %v\n", err)
		os.Exit(1)
	}

	var options []fuse.MountOption
	if *allowOther {
		options = append(options, fuse.AllowOther())
	}

	mount, err := fusefs.CreateServer(mountPoint, session, tree, options...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mounting: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	mount.Close()
}
