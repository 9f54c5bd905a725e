// Package server wires storage, the authentication service and the HTTP API
// together and runs them until the process is signalled to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/api"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/notify"
	"github.com/dmitrijs2005/authkeeper/internal/server/reconcile"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/dmitrijs2005/authkeeper/internal/server/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
)

// MemoryDSN selects the in-memory store instead of Postgres.
const MemoryDSN = "memory://"

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    store.Store
	notifier *notify.Async
	server   *api.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	st, err := openStore(ctx, c.DatabaseDSN, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	notifier := notify.NewAsync(notify.NewLogNotifier(logger), logger)
	guard := reconcile.NewGuard(logger, collector)
	svc := services.NewAuthService(st, guard, notifier, collector, logger, services.OptionsFromConfig(c))

	srv := api.NewHTTPServer(c.HTTPAddr, logger, svc, api.Options{
		CookieSecure: strings.HasPrefix(c.BaseURL, "https://"),
		TrustProxy:   c.TrustProxy,
		RateLimit: api.RateLimiterConfig{
			Rate:  rate.Limit(c.RateLimitRPS),
			Burst: c.RateLimitBurst,
		},
		Gatherer: reg,
	})

	return &App{config: c, logger: logger, store: st, notifier: notifier, server: srv}, nil
}

func openStore(ctx context.Context, dsn string, l logging.Logger) (store.Store, error) {
	if dsn == MemoryDSN {
		l.Warn(ctx, "using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), nil
	}
	s, err := store.OpenPostgres(ctx, dsn, l)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	return s, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.HTTPAddr)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.notifier.Wait()
	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "store close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
