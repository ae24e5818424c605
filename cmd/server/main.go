package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/oklog/ulid/v2"

	"github.com/msg555/vericas/hcas"
	"github.com/msg555/vericas/merkle"
	"github.com/msg555/vericas/server"
)

const usage = `vericas server.

Usage:
    vericas-server --config=<config> --store=<store-dir>
    vericas-server gc --store=<store-dir> [--iterations=<n>]
    vericas-server -h | --help

Options:
    -h --help               Show this screen.
    --config=<config>       Path to server config YAML (uri, tls, with_lower_layer, graphql_port).
    --store=<store-dir>     Path to the hcas object store directory, created if absent.
    --iterations=<n>        Units of GC work to perform before stopping, <=0 for until complete [default: 0].
`

func newLogger() *slog.Logger {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], "")
	if err != nil {
		panic(err)
	}

	log := newLogger()

	if gc, _ := opts.Bool("gc"); gc {
		runGC(log, opts)
		return
	}

	configPath, _ := opts.String("--config")
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		log.Error("failed to load config", "error", err, "path", configPath)
		os.Exit(1)
	}

	storeDir, _ := opts.String("--store")
	backend, err := hcas.OpenHcas(storeDir)
	if err != nil {
		backend, err = hcas.CreateHcas(storeDir)
	}
	if err != nil {
		log.Error("failed to open object store", "error", err, "path", storeDir)
		os.Exit(1)
	}

	repo, err := merkle.OpenRepo(backend)
	if err != nil {
		log.Error("failed to open repo", "error", err)
		os.Exit(1)
	}

	lis, err := server.Listen(cfg)
	if err != nil {
		log.Error("failed to bind listener", "error", err, "uri", cfg.URI)
		os.Exit(1)
	}
	log.Info("listening", "uri", cfg.URI, "boot_id", ulid.Make().String())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		lis.Close()
	}()

	if err := server.Run(lis, cfg, repo, log); err != nil {
		log.Info("server stopped", "error", err)
	}
}

func runGC(log *slog.Logger, opts docopt.Opts) {
	storeDir, _ := opts.String("--store")
	iterations, _ := opts.Int("--iterations")

	backend, err := hcas.OpenHcas(storeDir)
	if err != nil {
		log.Error("failed to open object store", "error", err, "path", storeDir)
		os.Exit(1)
	}
	defer backend.Close()

	complete, err := backend.GarbageCollect(iterations)
	if err != nil {
		log.Error("garbage collection failed", "error", err)
		os.Exit(1)
	}
	log.Info("garbage collection finished", "complete", complete)
}
