package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/yourusername/clientbook/cache"
	"github.com/yourusername/clientbook/config"
	"github.com/yourusername/clientbook/identity"
	"github.com/yourusername/clientbook/invoicing"
	"github.com/yourusername/clientbook/jobs"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/notify"
	"github.com/yourusername/clientbook/reports"
	"github.com/yourusername/clientbook/store"
	"github.com/yourusername/clientbook/utils"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func main() {
	app := &cli.App{
		Name:   "clientbook",
		Usage:  "client, project and invoice API",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the overdue sweep",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the database schema and exit",
				Action: migrate,
			},
			{
				Name:   "sweep-overdue",
				Usage:  "mark sent invoices past their due date as overdue and exit",
				Action: sweepOverdue,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("clientbook exited")
	}
}

func load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, config.NewLogger(cfg), nil
}

func connect(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database ready")
	return db, nil
}

func migrate(_ *cli.Context) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}
	_, err = connect(cfg, log)
	return err
}

func sweepOverdue(c *cli.Context) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}
	db, err := connect(cfg, log)
	if err != nil {
		return err
	}
	svc := invoicing.NewService(store.New(db), nil, log)
	_, err = jobs.Sweep(c.Context, svc, log, time.Now().UTC())
	return err
}

// App holds the collaborators shared by every request.
type App struct {
	Config    *config.Config
	Log       *logrus.Logger
	Store     *store.Store
	Cache     cache.Cache
	Bus       *notify.Bus
	Invoices  *invoicing.Service
	Identity  *identity.Service
	Reports   *reports.Reports
	AuthLimit *middleware.RateLimiter
}

func newApp(ctx context.Context, cfg *config.Config, log *logrus.Logger, db *gorm.DB) (*App, error) {
	var c cache.Cache = cache.NewMemory()
	if cfg.RedisURL != "" {
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		c = r
	}

	var verifier invoicing.PaymentVerifier
	if cfg.StellarVerifyPayments {
		verifier = utils.NewStellarVerifier(cfg.HorizonURL, cfg.NetworkPassphrase, cfg.StellarAccount)
	}

	rep, err := reports.FromGorm(db)
	if err != nil {
		return nil, err
	}

	s := store.New(db)
	return &App{
		Config:    cfg,
		Log:       log,
		Store:     s,
		Cache:     c,
		Bus:       notify.NewBus(),
		Invoices:  invoicing.NewService(s, verifier, log),
		Identity:  identity.NewService(s, cfg, c, log),
		Reports:   rep,
		AuthLimit: middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, log),
	}, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := load()
	if err != nil {
		return err
	}
	db, err := connect(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log, db)
	if err != nil {
		return err
	}
	if r, ok := app.Cache.(*cache.Redis); ok {
		defer r.Close()
	}

	scheduler, err := jobs.NewScheduler(cfg.OverdueSweepSchedule, app.Invoices, log)
	if err != nil {
		return err
	}
	scheduler.Start()

	cleanupStop := make(chan struct{})
	app.AuthLimit.StartCleanup(time.Minute, cleanupStop)
	if mem, ok := app.Cache.(*cache.Memory); ok {
		mem.StartJanitor(time.Minute, cleanupStop)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("starting clientbook API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	close(cleanupStop)
	scheduler.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
