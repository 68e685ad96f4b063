package app

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/gateway/paymob"
	"github.com/xenking/storefront/internal/gateway/shipping"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/mailer"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/internal/worker"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and the background
// jobs, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadiness("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLiveness("goroutines", time.Second, health.GoroutineLimit(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories. The product repository is wrapped with a Redis
	// read-through cache when a Redis URL is configured.
	var productRepo product.Repository = repository.NewProductRepository(pool)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "ping redis")
		}
		healthSvc.AddReadiness("redis", 5*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		productRepo = repository.NewCachedProductRepository(productRepo, rdb, lg)
	}
	categoryRepo := repository.NewCategoryRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	couponRepo := repository.NewCouponRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)

	// Gateways and outgoing mail.
	paymobClient := paymob.NewClient(paymob.Config{
		APIKey:        cfg.Paymob.APIKey,
		HMACSecret:    cfg.Paymob.HMACSecret,
		IntegrationID: cfg.Paymob.IntegrationID,
		IframeID:      cfg.Paymob.IframeID,
		BaseURL:       cfg.Paymob.BaseURL,
	})
	shippingClient := shipping.NewClient(shipping.Config{
		BaseURL:       cfg.Shipping.BaseURL,
		APIKey:        cfg.Shipping.APIKey,
		WebhookSecret: cfg.Shipping.WebhookSecret,
	})

	smtpCfg := mailer.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     strconv.Itoa(cfg.SMTP.Port),
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}
	var sender mailer.Sender = mailer.NopSender{}
	if smtpCfg.Configured() {
		sender = mailer.NewSMTPSender(smtpCfg)
	} else {
		lg.Info("SMTP not configured, emails are dropped")
	}
	mail := mailer.New(sender, cfg.StoreName, lg)

	// Domain services.
	couponValidator := coupon.NewRepoValidator(couponRepo)
	cartService := cart.NewService(productRepo, cartRepo)
	orderService := order.NewService(
		productRepo, cartRepo, couponValidator, couponRepo, orderRepo,
		paymobClient, shippingClient, mail, lg,
	)

	// HTTP routes.
	h := handler.New(handler.Config{
		Products:   productRepo,
		Categories: categoryRepo,
		Carts:      cartService,
		Coupons:    couponRepo,
		Validator:  couponValidator,
		Orders:     orderService,
		Payments:   paymobClient,
		Carrier:    shippingClient,
		JWTSecret:  cfg.JWTSecret,
		Logger:     lg,
	})

	api := otelhttp.NewHandler(h.Routes(), "storefront",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
		otelhttp.WithMetricAttributesFn(func(r *http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("http.method", r.Method)}
		}),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveHandler)
	mux.HandleFunc("/readyz", healthSvc.ReadyHandler)
	mux.Handle("/api/", api)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "X-Guest-ID"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Abandoned cart reminders run alongside the server and stop with the
	// same context.
	if cfg.AbandonedCarts.Enabled {
		reminder := worker.NewAbandonedCartReminder(cartRepo, mail, worker.AbandonedCartConfig{
			Interval:  cfg.AbandonedCarts.Interval,
			Threshold: cfg.AbandonedCarts.Threshold,
			Cooldown:  cfg.AbandonedCarts.Cooldown,
		}, lg)
		go func() {
			if err := reminder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("Abandoned cart reminder stopped", zap.Error(err))
			}
		}()
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
