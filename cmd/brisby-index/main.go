// Command brisby-index runs the index provider role described in
// spec.md §4.6 and §6: a relational store with full-text search over
// published files, reachable over the mixnet transport, exiting on
// SIGINT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/WebFirstLanguage/brisby/internal/applog"
	"github.com/WebFirstLanguage/brisby/internal/config"
	"github.com/WebFirstLanguage/brisby/pkg/indexprovider"
	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"github.com/WebFirstLanguage/brisby/pkg/transport/mock"
	"github.com/WebFirstLanguage/brisby/pkg/transport/nymclient"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("brisby-index", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "~/.brisby-index", "directory holding index.db")
	verbose := fs.Bool("verbose", false, "debug-level logging")
	useMock := fs.Bool("mock", false, "use the in-process mock transport instead of the real mixnet client")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := config.ExpandHome(*dataDir)
	if err != nil {
		return fmt.Errorf("expand --data-dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	level := applog.LevelInfo
	if *verbose {
		level = applog.LevelDebug
	}
	log := applog.New(level, false)

	store, err := indexprovider.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer store.Close()

	var t transport.Transport
	if *useMock {
		t = mock.New("index-provider")
	} else {
		t = nymclient.New()
	}
	if err := t.Connect(ctx, transport.DefaultConfig()); err != nil {
		return fmt.Errorf("connect transport: %w", err)
	}
	defer t.Disconnect(context.Background())

	svc := indexprovider.NewService(store, t, log)
	log.Infof("brisby-index listening at %s (data_dir=%s)", t.OurAddress(), dir)

	go svc.RunCleanup(ctx)

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("service loop: %w", err)
	}
	log.Infof("brisby-index shutting down")
	return nil
}
