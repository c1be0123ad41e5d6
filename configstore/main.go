package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confkit-labs/confkit-go/internal/auditarchive"
	"github.com/confkit-labs/confkit-go/internal/platform/auth"
	"github.com/confkit-labs/confkit-go/internal/platform/env"
	"github.com/confkit-labs/confkit-go/internal/platform/httpserver"
	"github.com/confkit-labs/confkit-go/internal/platform/objectstore"
	"github.com/confkit-labs/confkit-go/internal/platform/postgres"
	"github.com/confkit-labs/confkit-go/internal/platform/tenant"
	"github.com/confkit-labs/confkit-go/internal/repo"
	pgrepo "github.com/confkit-labs/confkit-go/internal/repo/postgres"
	"github.com/confkit-labs/confkit-go/internal/seed"
	"github.com/confkit-labs/confkit-go/internal/service/entries"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := env.String("CONFIGSTORE_HTTP_ADDR", ":8081")
	shutdownTimeout, err := env.Duration("CONFIGSTORE_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		logger.Error("invalid env", "error", err)
		os.Exit(2)
	}

	dbCfg, err := postgres.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid database config", "error", err)
		os.Exit(2)
	}
	db, err := postgres.Open(ctx, dbCfg)
	if err != nil {
		logger.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}
	authenticator, err := auth.NewAuthenticator(ctx, authCfg)
	if err != nil {
		logger.Error("auth setup failed", "error", err)
		os.Exit(1)
	}

	entryStore := pgrepo.NewEntryStore(db)
	auditStore := pgrepo.NewAuditStore(db)
	svc := entries.NewService(entryStore, auditStore)

	archive, err := buildArchive(ctx, logger, auditStore)
	if err != nil {
		logger.Error("archive setup failed", "error", err)
		os.Exit(1)
	}

	if err := applySeed(ctx, logger, svc); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("configstore"))
	mux.HandleFunc(
		"/readyz",
		httpserver.ReadyzWithChecks(
			"configstore",
			httpserver.ReadinessCheck{
				Name: "postgres",
				Check: func(ctx context.Context) error {
					checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
					defer cancel()
					return db.PingContext(checkCtx)
				},
			},
		),
	)

	api := newConfigStoreAPI(logger, svc, archive)
	dataMux := http.NewServeMux()
	api.register(dataMux)
	mux.Handle("/configurations/", tenant.Require(auth.Identify(authenticator, dataMux)))

	cfg := httpserver.Config{
		Service:         "configstore",
		Addr:            addr,
		ShutdownTimeout: shutdownTimeout,
	}

	if err := httpserver.Run(ctx, logger, cfg, httpserver.Wrap(logger, "configstore", mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// buildArchive wires the MinIO audit archive when enabled. A nil return
// with nil error means archiving is off and the export endpoint reports
// 501.
func buildArchive(ctx context.Context, logger *slog.Logger, auditStore repo.AuditStore) (*auditarchive.Exporter, error) {
	enabled, err := env.Bool("CONFIGSTORE_ARCHIVE_ENABLED", false)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}

	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := objectstore.NewMinIOClient(storeCfg)
	if err != nil {
		return nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := objectstore.EnsureArchiveBucket(ensureCtx, client, storeCfg); err != nil {
		return nil, err
	}
	logger.Info("audit archive enabled", "bucket", storeCfg.BucketArchive)
	return auditarchive.NewExporter(client, storeCfg, auditStore), nil
}

// applySeed loads the baseline manifest when configured and applies it to
// the seed tenant. Re-running against a seeded database only skips.
func applySeed(ctx context.Context, logger *slog.Logger, svc *entries.Service) error {
	manifestPath := env.String("CONFIGSTORE_SEED_MANIFEST", "")
	if manifestPath == "" {
		return nil
	}
	tenantID := env.String("CONFIGSTORE_SEED_TENANT", "")
	if tenantID == "" {
		return errors.New("CONFIGSTORE_SEED_TENANT is required when a seed manifest is set")
	}

	manifest, err := seed.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	result, err := seed.Apply(seedCtx, svc, tenantID, "seed", manifest)
	if err != nil {
		return err
	}
	logger.Info("seed applied", "tenant", tenantID, "created", result.Created, "skipped", result.Skipped)
	return nil
}
