package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/staybook/internal/booking"
	"github.com/avstrong/staybook/internal/config"
	"github.com/avstrong/staybook/internal/guests"
	"github.com/avstrong/staybook/internal/idgen/simple"
	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/migration"
	"github.com/avstrong/staybook/internal/payment"
	"github.com/avstrong/staybook/internal/pricing"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/storage/memory"
	"github.com/avstrong/staybook/internal/storage/postgres"
	"github.com/avstrong/staybook/internal/storage/rediscache"
	"github.com/avstrong/staybook/internal/timeslot"
	"github.com/avstrong/staybook/internal/transport/web"
	"github.com/avstrong/staybook/internal/wizard"
)

// openStorage returns the configured store seeded with the demo catalog, and a cleanup func.
func openStorage(ctx context.Context, l *logger.Logger, conf config.Conf) (*storageSet, error) {
	now := time.Now().UTC()

	switch conf.StorageDriver {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{L: l, URL: conf.DatabaseURL, Attempts: 0, Backoff: 0})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}

		db := postgres.New(postgres.Config{L: l, Pool: pool})

		if err := db.Migrate(ctx); err != nil {
			pool.Close()

			return nil, err
		}

		if err := migration.Up(ctx, l, db, now); err != nil {
			pool.Close()

			return nil, fmt.Errorf("seed postgres: %w", err)
		}

		return &storageSet{postgres: db, close: pool.Close}, nil
	default:
		db := memory.New(memory.Config{L: l})

		if err := migration.Up(ctx, l, db, now); err != nil {
			return nil, fmt.Errorf("up test migration: %w", err)
		}

		return &storageSet{memory: db, close: func() {}}, nil
	}
}

type storageSet struct {
	memory   *memory.DB
	postgres *postgres.DB
	close    func()
}

//nolint:funlen
func Run(l *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	conf, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	l = l.WithDebug(conf.LogDebug)

	stores, err := openStorage(ctx, l.With("storage"), conf)
	if err != nil {
		return err
	}
	defer stores.close()

	l.LogInfo("Storage %s is ready", conf.StorageDriver)

	var catalog promo.Catalog = stores.memory
	if stores.postgres != nil {
		catalog = stores.postgres
	}

	if conf.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, conf.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		defer func() {
			if err := client.Close(); err != nil {
				l.LogErrorf("Failed to close redis client: %v", err.Error())
			}
		}()

		cache := rediscache.NewPromoCatalog(rediscache.PromoConfig{
			L:           l.With("promo-cache"),
			TTL:         conf.PromoCacheTTL,
			LoadTimeout: conf.PromoLookupTimeout,
		}, client, catalog)

		// The seed may have rewritten these codes since they were cached.
		for _, c := range migration.Promos(time.Now().UTC()) {
			if err := cache.Invalidate(ctx, c.Code); err != nil {
				l.LogWarnf("Could not drop cached promo %s: %v", c.Code, err)
			}
		}

		catalog = cache

		l.LogInfo("Promo cache enabled at %s", conf.RedisAddr)
	}

	calc := pricing.New(pricing.Rates{TaxRate: conf.TaxRate, ServiceFeeRate: conf.ServiceFeeRate})
	w := wizard.New(wizard.Config{
		Limits:        guests.DefaultLimits(),
		MinStayNights: conf.MinStayNights,
		MaxStayNights: conf.MaxStayNights,
		Slots:         timeslot.DefaultPricing(),
	}, calc, nil)

	engine := promo.NewEngine(l.With("promo"), catalog, nil)
	payments := payment.NewSimulated(payment.SimulatedConfig{Limit: 0, Latency: 0})
	bookingConf := booking.Config{PromoLookupTimeout: conf.PromoLookupTimeout}

	var bookManager *booking.Manager
	if stores.postgres != nil {
		bookManager = booking.New(l.With("booking"), bookingConf, stores.postgres, simple.New("SB"), w, engine, payments)
	} else {
		bookManager = booking.New(l.With("booking"), bookingConf, stores.memory, simple.New("SB"), w, engine, payments)
	}

	webConf := web.Conf{
		L:                 l.With("web"),
		ServerLogger:      log.Default(),
		Host:              conf.HTTP.Host,
		Port:              conf.HTTP.Port,
		ReadHeaderTimeout: conf.HTTP.ReadHeaderTimeout,
		LivenessEndpoint:  "/liveness",
	}

	srv, err := web.New(ctx, webConf, bookManager)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), conf.ShutdownTimeout)
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v...", webConf.Host, webConf.Port)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		l.LogErrorf("Failed to run http server: %v", err.Error())

		cancel()
	}

	bookManager.WaitLookups()

	l.LogInfo("Application stopped gracefully")

	return nil
}
