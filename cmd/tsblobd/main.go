// Command tsblobd runs the storage daemon: it loads configuration from
// the environment, opens the on-disk storage tree, and serves the HTTP
// façade until it receives SIGINT/SIGTERM (spec.md §6's "Exit codes").
package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tsblobstore/tsblobstore/internal/config"
	"github.com/tsblobstore/tsblobstore/pkg/asset"
	"github.com/tsblobstore/tsblobstore/pkg/auth"
	"github.com/tsblobstore/tsblobstore/pkg/clock"
	"github.com/tsblobstore/tsblobstore/pkg/httpapi"
	"github.com/tsblobstore/tsblobstore/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		log.Print("Fatal error: ", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log.Printf("tsblobstore: starting, data_path=%s log_level=%s", cfg.DataPath, cfg.LogLevel)

	st, err := storage.New(cfg.DataPath, clock.System)
	if err != nil {
		return err
	}

	tokens, err := auth.NewFileRepository(filepath.Join(cfg.DataPath, ".auth", "tokens"), clock.System)
	if err != nil {
		return err
	}
	if cfg.APIToken != "" && tokens.Empty() {
		if err := tokens.Create("bootstrap", cfg.APIToken); err != nil {
			return err
		}
	}

	server := httpapi.NewServer(st, tokens, asset.DefaultConsole()).
		WithMaxConcurrentRequests(cfg.MaxConcurrentRequests)

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.Router(cfg.APIBasePath),
	}

	errChan := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled() {
			httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			err = httpServer.ListenAndServeTLS(cfg.CertPath, cfg.CertKeyPath)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	log.Printf("tsblobstore: listening on %s", cfg.Addr())

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-signalChan:
		log.Printf("tsblobstore: received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	log.Print("tsblobstore: shutdown complete")
	return nil
}
