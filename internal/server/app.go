// Package server initializes and runs the application server: it wires the
// database, object storage, mail transport, and attempt store into the
// services, runs migrations, and starts the HTTP API with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortifile/fortifile/internal/dlp"
	"github.com/fortifile/fortifile/internal/logging"
	"github.com/fortifile/fortifile/internal/mailx"
	"github.com/fortifile/fortifile/internal/server/codes"
	"github.com/fortifile/fortifile/internal/server/config"
	"github.com/fortifile/fortifile/internal/server/httpapi"
	"github.com/fortifile/fortifile/internal/server/objstore"
	"github.com/fortifile/fortifile/internal/server/repositories/repomanager"
	"github.com/fortifile/fortifile/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const shutdownTimeout = 10 * time.Second

// App holds the assembled server.
type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	attempts codes.AttemptStore
	handler  http.Handler
}

// newAttemptStore picks the verification-attempt backend: Redis when an
// address is configured, an in-process store otherwise.
func newAttemptStore(cfg *config.Config) (codes.AttemptStore, error) {
	if cfg.RedisAddr == "" {
		return codes.NewMemoryStore(cfg.CodeTTL), nil
	}
	return codes.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CodeTTL)
}

// NewApp wires all collaborators from configuration. It opens the database,
// runs migrations, and connects the attempt store; it does not start
// listening yet.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store := objstore.NewS3Store(objstore.Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	mailer, err := mailx.NewSMTPMailer(mailx.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
		FromAddr: cfg.SMTPFromAddr,
	})
	if err != nil {
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	attempts, err := newAttemptStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("attempt store init error: %w", err)
	}

	scanner, err := dlp.NewScanner(dlp.DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("scanner init error: %w", err)
	}

	codeService := services.NewCodeService(db, manager, mailer, attempts, cfg)
	fileService := services.NewFileService(db, manager, store, mailer, codeService, scanner, cfg, logger)
	userService := services.NewUserService(db, manager, cfg)
	dlpService := services.NewDlpService(db, manager)

	api := httpapi.NewServer(userService, fileService, codeService, dlpService, cfg, logger)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		attempts: attempts,
		handler:  api.Router(),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves the HTTP API until the context is cancelled or a termination
// signal arrives, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddrHTTP)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
	}

	if closer, ok := app.attempts.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error(shutdownCtx, "attempt store close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}
	return nil
}
