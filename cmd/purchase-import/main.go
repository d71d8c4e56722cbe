// Command purchase-import loads store purchases into a session from an
// .xlsx or .xls workbook.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shiire/internal/backend"
	"shiire/internal/cli"
	"shiire/internal/importer"
	"shiire/internal/log"
	"shiire/internal/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "purchase-import:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("purchase-import", flag.ContinueOnError)
	sessionID := fs.String("session", "", "purchase session id")
	file := fs.String("file", "", "workbook to import (.xlsx or .xls)")
	timeout := fs.Duration("timeout", 2*time.Minute, "overall import timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID == "" || *file == "" {
		return errors.New("both -session and -file are required")
	}

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(log.New(log.DefaultConfig()))
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentImport)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	backendConfig.Cache.Type = backend.MemoryCache
	be, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendConfig)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Warn("Backend cleanup error", log.FieldError, err)
		}
	}()

	f, err := os.Open(*file)
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sessions := services.NewSessionService(be.Repository, services.NewNotifier(be.Publisher))
	res, err := importer.Import(ctx, sessions, *sessionID, f, filepath.Base(*file))
	if err != nil {
		return err
	}

	fmt.Printf("imported %d store purchases into %s\n", res.Imported, *sessionID)
	for _, e := range res.Errors {
		fmt.Printf("  row %d: %s\n", e.Line, e.Error)
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d rows rejected", len(res.Errors))
	}
	return nil
}
