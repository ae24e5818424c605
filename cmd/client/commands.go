package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/scott-cotton/cli"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/msg555/vericas/merkle"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	cmd := cli.NewCommand("vericas").
		WithSynopsis("vericas [opts] command [opts]").
		WithDescription("vericas is a client for the versioned content-addressed key-value store.").
		WithOpts(mainOpts(cfg)...).
		WithRun(func(cc *cli.Context, args []string) error {
			return fmt.Errorf("%w: a subcommand is required", cli.ErrUsage)
		}).
		WithSubs(
			pingCommand(cfg),
			branchCommand(cfg),
			headCommand(cfg),
			getCommand(cfg),
			setCommand(cfg),
			rmCommand(cfg),
			exportCommand(cfg),
			importCommand(cfg),
			mergeCommand(cfg),
		)
	cfg.Main = cmd
	return cmd
}

func splitPath(s string) merkle.Path {
	if s == "" || s == "/" {
		return nil
	}
	return merkle.Path(strings.Split(strings.Trim(s, "/"), "/"))
}

func pingCommand(cfg *MainConfig) *cli.Command {
	return cli.NewCommand("ping").
		WithSynopsis("ping").
		WithDescription("check connectivity to the server.").
		WithRun(func(cc *cli.Context, args []string) error {
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			if err := conn.Ping(); err != nil {
				return err
			}
			statusOK(cc.Out, "pong")
			return nil
		})
}

type branchConfig struct {
	List bool `cli:"name=l aliases=list desc='list known branches'"`
}

func branchCommand(cfg *MainConfig) *cli.Command {
	bcfg := &branchConfig{}
	opts, err := cli.StructOpts(bcfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommand("branch").
		WithSynopsis("branch [-l] [name]").
		WithDescription("get or set the server's current branch, or list branches with -l.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			if bcfg.List {
				names, err := conn.BranchList()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cc.Out, n)
				}
				return nil
			}
			if len(args) == 0 {
				name, err := conn.GetCurrentBranch()
				if err != nil {
					return err
				}
				fmt.Fprintln(cc.Out, name)
				return nil
			}
			return conn.SetCurrentBranch(args[0])
		})
}

func headCommand(cfg *MainConfig) *cli.Command {
	return cli.NewCommand("head").
		WithSynopsis("head").
		WithDescription("print the current branch's head commit hash.").
		WithRun(func(cc *cli.Context, args []string) error {
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			commit, err := conn.Head(nilIfEmpty(cfg.Branch))
			if err != nil {
				return err
			}
			if commit == nil {
				fmt.Fprintln(cc.Out, "(no commits)")
				return nil
			}
			fmt.Fprintln(cc.Out, commit.HexName())
			return nil
		})
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func getCommand(cfg *MainConfig) *cli.Command {
	return cli.NewCommand("get").
		WithSynopsis("get <path>").
		WithDescription("print the contents stored at path in the current branch.").
		WithRun(func(cc *cli.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: get requires exactly one argument, a path", cli.ErrUsage)
			}
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			data, ok, err := conn.Find(splitPath(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("not found: %s", args[0])
			}
			_, err = cc.Out.Write(data)
			return err
		})
}

func setCommand(cfg *MainConfig) *cli.Command {
	var message, author, file string
	cmd := cli.NewCommand("set").
		WithSynopsis("set [-m message] [-a author] [-f file] <path>").
		WithDescription("write contents at path in the current branch, committing the change.").
		WithOpts(
			stringOpt("m", "commit message", &message),
			stringOpt("a", "commit author", &author),
			stringOpt("f", "read contents from file instead of stdin", &file),
		).
		WithRun(func(cc *cli.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: set requires exactly one argument, a path", cli.ErrUsage)
			}
			var data []byte
			var err error
			if file != "" {
				data, err = os.ReadFile(file)
			} else {
				data, err = io.ReadAll(cc.In)
			}
			if err != nil {
				return err
			}

			conn, err := cfg.client()
			if err != nil {
				return err
			}
			return conn.Set(splitPath(args[0]), commitInfo(author, message), data)
		})
	return cmd
}

func rmCommand(cfg *MainConfig) *cli.Command {
	var message, author string
	return cli.NewCommand("rm").
		WithSynopsis("rm [-m message] [-a author] <path>").
		WithDescription("remove the value at path in the current branch, committing the change.").
		WithOpts(
			stringOpt("m", "commit message", &message),
			stringOpt("a", "commit author", &author),
		).
		WithRun(func(cc *cli.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: rm requires exactly one argument, a path", cli.ErrUsage)
			}
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			return conn.Remove(splitPath(args[0]), commitInfo(author, message))
		})
}

func exportCommand(cfg *MainConfig) *cli.Command {
	return cli.NewCommand("export").
		WithSynopsis("export <output-file>").
		WithDescription("export the whole reachable object graph (every branch head) to a file.").
		WithRun(func(cc *cli.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: export requires exactly one argument, an output file", cli.ErrUsage)
			}
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			progress(cc.Out, "exporting object graph...")
			slice, err := conn.Export()
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], merkle.EncodeSlice(slice), 0o644); err != nil {
				return err
			}
			statusOK(cc.Out, "exported %d objects to %s", len(slice.Entries), args[0])
			return nil
		})
}

func importCommand(cfg *MainConfig) *cli.Command {
	var message, author string
	return cli.NewCommand("import").
		WithSynopsis("import [-m message] [-a author] <path-or-tar>").
		WithDescription("import a local directory or tar archive as a new commit on the current branch.").
		WithOpts(
			stringOpt("m", "commit message", &message),
			stringOpt("a", "commit author", &author),
		).
		WithRun(func(cc *cli.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("%w: import requires exactly one argument, a path or tar file", cli.ErrUsage)
			}
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			progress(cc.Out, "importing %s...", args[0])
			commitHash, err := importToServer(conn, args[0], commitInfo(author, message))
			if err != nil {
				return err
			}
			statusOK(cc.Out, "%s", commitHash.HexName())
			return nil
		})
}

func mergeCommand(cfg *MainConfig) *cli.Command {
	var base, message, author string
	return cli.NewCommand("merge").
		WithSynopsis("merge [--base=<branch>] <ours-branch> <theirs-branch>").
		WithDescription("three-way merge theirs-branch into ours-branch, landing the result as a new commit on ours-branch.").
		WithOpts(
			stringOpt("base", "branch to use as the merge base (default: empty tree)", &base),
			stringOpt("m", "commit message", &message),
			stringOpt("a", "commit author", &author),
		).
		WithRun(func(cc *cli.Context, args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("%w: merge requires two arguments, ours and theirs branch names", cli.ErrUsage)
			}
			conn, err := cfg.client()
			if err != nil {
				return err
			}
			progress(cc.Out, "merging %s into %s...", args[1], args[0])
			conflict, err := mergeBranches(conn, args[0], args[1], base, commitInfo(author, message))
			if err != nil {
				return err
			}
			if conflict != nil {
				dmp := diffmatchpatch.New()
				diffs := dmp.DiffMain(string(conflict.Ours), string(conflict.Theirs), false)
				fmt.Fprintf(cc.Out, "merge conflict at %s:\n%s\n", merkle.PathString(conflict.Path), dmp.DiffPrettyText(diffs))
				return cli.ExitCodeErr(1)
			}
			statusOK(cc.Out, "merged %s into %s", args[1], args[0])
			return nil
		})
}
