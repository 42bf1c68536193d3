// Package server wires the Bookly backend together: configuration, the
// PostgreSQL store and its migrations, the change listener, object storage
// for uploads and the gRPC endpoint. It also handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/bookly/internal/blob"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/server/auth"
	"github.com/dmitrijs2005/bookly/internal/server/config"
	"github.com/dmitrijs2005/bookly/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bookly/internal/server/services"

	gs "github.com/dmitrijs2005/bookly/internal/server/grpc"
)

// TokenPurgeInterval is how often expired refresh tokens are removed.
const TokenPurgeInterval = time.Hour

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	users       *services.UserService
	documents   *services.DocumentService
	uploads     *services.UploadService
	listener    *services.Listener
	openDB      func(dsn string) (*sql.DB, error)
	repoManager repomanager.RepositoryManager
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, "json", c.LogLevel)

	return &App{
		config:      c,
		logger:      logger,
		openDB:      func(dsn string) (*sql.DB, error) { return sql.Open("pgx", dsn) },
		repoManager: repomanager.NewPostgresRepositoryManager(),
	}, nil
}

// init opens the database, applies migrations and builds the services.
func (app *App) init(ctx context.Context) error {
	db, err := app.openDB(app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("db ping error: %w", err)
	}
	if err := app.repoManager.RunMigrations(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("migrations error: %w", err)
	}
	app.db = db

	google := auth.NewGoogleVerifier(app.config.GoogleClientID, app.config.GoogleCertsURL, nil)
	app.users = services.NewUserService(db, app.repoManager, google, app.config)

	app.documents = services.NewDocumentService(db, app.repoManager, app.logger)
	app.listener = services.NewListener(app.config.DatabaseDSN, app.documents.Hub(), app.logger)

	presigner := blob.NewS3Presigner(blob.S3Config{
		Region:        app.config.S3Region,
		AccessKey:     app.config.S3AccessKey,
		SecretKey:     app.config.S3SecretKey,
		Endpoint:      app.config.S3BaseEndpoint,
		Bucket:        app.config.S3Bucket,
		PublicBaseURL: app.config.S3PublicBaseURL,
		PathStyle:     app.config.S3PathStyle,
	})
	app.uploads = services.NewUploadService(presigner, app.logger)

	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(
		app.config.EndpointAddrGRPC,
		app.logger,
		app.users,
		app.documents,
		app.uploads,
		app.config.SecretKey,
		gs.NewRateLimiter(app.config.RateLimit, app.config.RateBurst),
	)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startListener(ctx context.Context) {
	if err := app.listener.Run(ctx); err != nil {
		app.logger.Error(ctx, "change listener stopped", "error", err)
	}
}

// purgeTokens removes expired refresh tokens every interval until ctx is done.
func (app *App) purgeTokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.users.PurgeExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "refresh token purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired refresh tokens removed", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	if err := app.init(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	defer app.db.Close()

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startListener(ctx)
	}()
	go func() {
		defer wg.Done()
		app.purgeTokens(ctx, TokenPurgeInterval)
	}()

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return nil
}
