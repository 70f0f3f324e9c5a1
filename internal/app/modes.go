package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradesim/internal/book"
	"github.com/alanyoungcy/tradesim/internal/domain"
	"github.com/alanyoungcy/tradesim/internal/engine"
	"github.com/alanyoungcy/tradesim/internal/feed"
	"github.com/alanyoungcy/tradesim/internal/fees"
	"github.com/alanyoungcy/tradesim/internal/server"
	"github.com/alanyoungcy/tradesim/internal/server/handler"
	"github.com/alanyoungcy/tradesim/internal/server/ws"
	"github.com/alanyoungcy/tradesim/internal/service"
	"github.com/alanyoungcy/tradesim/internal/ticker"
)

// services bundles the domain layer built on top of Dependencies: the book
// registry, the matching engine, and the services around them.
type services struct {
	books   *book.Registry
	markets *service.MarketService
	orders  *service.OrderService
	fills   *service.FillService
	engine  *engine.Engine
	feeder  *feed.Feeder
}

// SimMode runs the synthetic ticker and the matching engine without the HTTP
// API. Orders can only enter through recovery from the store.
func (a *App) SimMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting sim mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("sim mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svcs.feeder.Run(ctx) })
	a.startTicker(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// ServeMode runs the HTTP API and the matching engine fed from the signal
// bus. No synthetic market data is generated; an external producer must
// publish on the feed channel.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("serve mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svcs.feeder.Run(ctx) })
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode runs every subsystem: ticker, engine, HTTP API, and archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	svcs, err := a.buildServices(ctx, deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svcs.feeder.Run(ctx) })
	a.startTicker(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// buildServices constructs the domain layer, re-seats open orders from the
// store, and registers the configured ticker markets.
func (a *App) buildServices(ctx context.Context, deps *Dependencies) (*services, error) {
	books := book.NewRegistry(a.logger)

	marketSvc := service.NewMarketService(a.logger, deps.MarketStore)
	if err := marketSvc.WarmCache(ctx); err != nil {
		a.logger.WarnContext(ctx, "market cache warmup failed", slog.String("error", err.Error()))
	}

	for i, m := range a.cfg.Ticker.Markets {
		if _, err := marketSvc.Define(ctx, m.Venue, m.Base, m.Quote, m.PriceBasis, m.VolumeBasis, false); err != nil {
			return nil, fmt.Errorf("define ticker market %d: %w", i, err)
		}
	}

	orderSvc := service.NewOrderService(a.logger, deps.OrderStore, books, marketSvc, deps.SignalBus, deps.RateLimiter)

	feeSchedule, err := fees.NewSchedule(a.cfg.Fees.DefaultBps, a.cfg.Fees.VenueBps)
	if err != nil {
		return nil, fmt.Errorf("fee schedule: %w", err)
	}
	fillSvc := service.NewFillService(a.logger, deps.FillStore, marketSvc, feeSchedule, deps.SignalBus, orderSvc)

	eng := engine.New(a.logger, books, marketSvc, fillSvc, a.cfg.Engine.SlippageRate, a.cfg.Engine.TradingEnabled)
	feeder := feed.NewFeeder(deps.SignalBus, deps.BookCache, eng, a.cfg.Feed.Channel, a.logger)

	if err := orderSvc.Recover(ctx); err != nil {
		return nil, fmt.Errorf("recover open orders: %w", err)
	}

	return &services{
		books:   books,
		markets: marketSvc,
		orders:  orderSvc,
		fills:   fillSvc,
		engine:  eng,
		feeder:  feeder,
	}, nil
}

// startTicker adds the synthetic market data generator to the errgroup.
func (a *App) startTicker(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Ticker.Enabled || len(a.cfg.Ticker.Markets) == 0 {
		a.logger.InfoContext(ctx, "ticker disabled")
		return
	}

	mcs := make([]ticker.MarketConfig, 0, len(a.cfg.Ticker.Markets))
	for _, m := range a.cfg.Ticker.Markets {
		mcs = append(mcs, ticker.MarketConfig{
			MarketID:     domain.MarketID(m.Venue, m.Base, m.Quote),
			StartPrice:   m.StartPrice,
			Volatility:   m.Volatility,
			MeanInterval: m.MeanInterval.Duration,
			MeanVolume:   m.MeanVolume,
			BookEvery:    m.BookEvery,
			BookLevels:   m.BookLevels,
			Spread:       m.Spread,
		})
	}

	t := ticker.New(a.logger, deps.SignalBus, a.cfg.Feed.Channel, mcs)
	g.Go(func() error { return t.Run(ctx) })
}

// startArchiver adds the periodic S3 archive loop to the errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}

	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	g.Go(func() error {
		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick.C:
				cutoff := time.Now().UTC().Add(-retention)
				if _, err := deps.Archiver.ArchiveFills(ctx, cutoff); err != nil {
					a.logger.ErrorContext(ctx, "fill archive failed", slog.String("error", err.Error()))
				}
				if _, err := deps.Archiver.ArchiveOrders(ctx, cutoff); err != nil {
					a.logger.ErrorContext(ctx, "order archive failed", slog.String("error", err.Error()))
				}
			}
		}
	})
}

// startHTTPServer adds the REST API, the WebSocket hub, and a graceful
// shutdown watcher to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, a.cfg.Mode)
	g.Go(func() error { return hub.Run(ctx) })

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": deps.Postgres,
			"redis":    deps.Redis,
		}),
		Markets: handler.NewMarketHandler(svcs.markets, deps.BookCache),
		Orders:  handler.NewOrderHandler(svcs.orders),
		Fills:   handler.NewFillHandler(svcs.fills),
		Engine:  handler.NewEngineHandler(svcs.engine, svcs.orders, svcs.books),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AuthToken:   a.cfg.Server.AuthToken,
	}, handlers, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
