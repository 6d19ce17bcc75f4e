// Package app ties the stores, services, fan-out hub and HTTP surface
// together and manages their lifecycle.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/restamate/pos-server/internal/app/hub"
	"github.com/restamate/pos-server/internal/app/httpapi"
	"github.com/restamate/pos-server/internal/app/metrics"
	menusvc "github.com/restamate/pos-server/internal/app/services/menu"
	"github.com/restamate/pos-server/internal/app/services/numbering"
	"github.com/restamate/pos-server/internal/app/services/orders"
	"github.com/restamate/pos-server/internal/app/services/users"
	"github.com/restamate/pos-server/internal/app/storage"
	"github.com/restamate/pos-server/internal/app/storage/memory"
	"github.com/restamate/pos-server/internal/app/storage/postgres"
	"github.com/restamate/pos-server/internal/config"
	"github.com/restamate/pos-server/internal/logging"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// shared in-memory implementation.
type Stores struct {
	Orders  storage.OrderStore
	Menu    storage.MenuStore
	Users   storage.UserStore
	Counter storage.CounterStore
}

// Application wires the POS services together.
type Application struct {
	cfg *config.Config
	log *logging.Logger

	Orders    *orders.Service
	Menu      *menusvc.Service
	Users     *users.Service
	Numbering *numbering.Service
	Hub       *hub.Hub

	server *http.Server
	cron   *cron.Cron
	db     *sql.DB
}

// New builds a fully wired application. An empty database DSN selects the
// in-memory store.
func New(cfg *config.Config, log *logging.Logger) (*Application, error) {
	if log == nil {
		log = logging.New("app", cfg.Logging)
	}

	stores, db, err := buildStores(cfg, log)
	if err != nil {
		return nil, err
	}

	pushHub := hub.New(log)

	numberingSvc := numbering.New(stores.Counter, log)
	usersSvc := users.New(stores.Users, log, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	menuSvc := menusvc.New(stores.Menu, log)
	ordersSvc := orders.New(stores.Orders, stores.Menu, numberingSvc, pushHub, log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := usersSvc.EnsureOwner(ctx, cfg.Auth.Owner.Username, cfg.Auth.Owner.Password); err != nil {
		return nil, fmt.Errorf("seed owner account: %w", err)
	}

	health := func() error { return nil }
	if db != nil {
		health = db.Ping
	}

	handler := httpapi.New(httpapi.Config{
		Orders:  ordersSvc,
		Menu:    menuSvc,
		Users:   usersSvc,
		Push:    pushHub,
		Health:  health,
		Metrics: metrics.Handler(),
		Log:     log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	app := &Application{
		cfg:       cfg,
		log:       log,
		Orders:    ordersSvc,
		Menu:      menuSvc,
		Users:     usersSvc,
		Numbering: numberingSvc,
		Hub:       pushHub,
		server:    server,
		db:        db,
	}
	app.scheduleDayReset()
	return app, nil
}

func buildStores(cfg *config.Config, log *logging.Logger) (Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database DSN configured, using the in-memory store")
		mem := memory.New()
		return Stores{Orders: mem, Menu: mem, Users: mem, Counter: mem}, nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return Stores{}, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		return Stores{}, nil, fmt.Errorf("ping database: %w", err)
	}
	if err := postgres.RunMigrations(db); err != nil {
		return Stores{}, nil, err
	}

	store := postgres.New(db)
	return Stores{Orders: store, Menu: store, Users: store, Counter: store}, db, nil
}

// scheduleDayReset broadcasts a day:reset signal at local midnight so station
// displays clear their queues and refetch. Order numbering itself resets
// lazily on the next numbered order.
func (a *Application) scheduleDayReset() {
	a.cron = cron.New()
	_, err := a.cron.AddFunc("0 0 * * *", func() {
		day := time.Now()
		a.log.WithField("date", day.Format("2006-01-02")).Info("business day rolled over")
		a.Orders.AnnounceDayReset(day)
	})
	if err != nil {
		a.log.WithError(err).Error("failed to schedule day rollover broadcast")
	}
}

// Run starts the HTTP server and the scheduler, blocking until ctx is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	a.cron.Start()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the scheduler, disconnects subscribers and drains the HTTP
// server.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.cron.Stop()
	a.Hub.Close()

	err := a.server.Shutdown(shutdownCtx)
	if a.db != nil {
		if closeErr := a.db.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
