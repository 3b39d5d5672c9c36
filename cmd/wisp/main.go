// Package main provides the wisp binary entry point. It loads configuration
// from environment variables, opens the SQLite index and blob directory,
// wires the crypto engine, store, metrics manager, and janitor into the
// application service, and serves the HTTP API until interrupted.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/haukened/wisp/internal/app"
	"github.com/haukened/wisp/internal/config"
	"github.com/haukened/wisp/internal/crypto"
	"github.com/haukened/wisp/internal/httpx"
	"github.com/haukened/wisp/internal/janitor"
	"github.com/haukened/wisp/internal/metrics"
	"github.com/haukened/wisp/internal/store"
	"github.com/haukened/wisp/internal/store/filesystem"
	"github.com/haukened/wisp/internal/store/sqlite"

	_ "github.com/mattn/go-sqlite3"
)

const shutdownGrace = 10 * time.Second

// envelopeMargin is headroom added to the HTTP body cap over the configured
// secret size limit, covering the JSON field names, quoting, escaping, and
// the passphrase.
const envelopeMargin = 4 << 10

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// ensureDataDir creates the data directory and its blobs subdirectory if
// absent and returns both paths.
func ensureDataDir(dir string) (string, string, error) {
	if st, err := os.Stat(dir); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("stat data directory: %w", err)
		}
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return "", "", fmt.Errorf("create data directory: %w", mkErr)
		}
	} else if !st.IsDir() {
		return "", "", fmt.Errorf("data path %s is not a directory", dir)
	}
	blobDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobDir, 0o700); err != nil {
		return "", "", fmt.Errorf("create blobs directory: %w", err)
	}
	return dir, blobDir, nil
}

// openDatabase opens the SQLite index using the configured DSN and applies
// the schema.
func openDatabase(dsn string) (*sql.DB, *sqlite.Index, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite driver: %w", err)
	}
	idx, err := sqlite.New(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return db, idx, nil
}

func buildService(st app.SecretStore, eng *crypto.Engine, cfg *config.Config, clock app.Clock, rec app.Recorder) *app.Service {
	return &app.Service{
		Store:    st,
		Crypto:   eng,
		Clock:    clock,
		TTL:      cfg.TTL,
		MaxBytes: cfg.MaxBytes,
		Metrics:  rec,
	}
}

func buildHandler(cfg *config.Config, svc *app.Service, db *sql.DB, blobDir string, mgr *metrics.Manager) http.Handler {
	readiness := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := os.ReadDir(blobDir); err != nil {
			return err
		}
		return nil
	}
	// The transport cap sits above the secret limit so the JSON envelope
	// never trips it first; oversize secrets must reach the service and
	// surface as 413, not a generic decode failure.
	h := httpx.New(svc, cfg.MaxBytes+envelopeMargin, readiness)
	if mgr != nil {
		h.Metrics = metrics.Handler(mgr, cfg.MetricsToken)
	}
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	dataDir, blobDir, err := ensureDataDir(cfg.DataDir)
	if err != nil {
		return err
	}
	db, idx, err := openDatabase(cfg.SQLiteDSN())
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := filesystem.New(blobDir)
	if err != nil {
		return fmt.Errorf("init blob storage: %w", err)
	}
	eng, err := crypto.New([]byte(cfg.Salt))
	if err != nil {
		return fmt.Errorf("init crypto engine: %w", err)
	}

	mgr := metrics.New(db, metrics.Config{})
	if err := mgr.InitSchema(ctx); err != nil {
		return fmt.Errorf("init metrics schema: %w", err)
	}
	mgr.Start(ctx)

	clock := realClock{}
	st := store.New(idx, blobs, clock, cfg.InlineMax)
	svc := buildService(st, eng, cfg, clock, mgr)

	jan := janitor.New(st, janitor.Config{
		Interval: cfg.JanitorInterval,
		Metrics:  mgr,
	})
	jan.Start(ctx)

	srv := newServer(cfg, buildHandler(cfg, svc, db, blobDir, mgr))
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "data_dir", dataDir, "pid", os.Getpid())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "err", err)
	}
	jan.Stop()
	mgr.Stop(shutdownCtx)
	return <-errCh
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
