package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"milaf-storefront/internal/config"
	"milaf-storefront/internal/db"
	"milaf-storefront/internal/httpserver"
	"milaf-storefront/internal/identity"
	"milaf-storefront/internal/logging"
	"milaf-storefront/internal/migrate"
	"milaf-storefront/internal/notify"
	"milaf-storefront/internal/parcel"
	"milaf-storefront/internal/payment"
	"milaf-storefront/internal/postcode"
	anoncartrepo "milaf-storefront/internal/repository/anoncart"
	cartrepo "milaf-storefront/internal/repository/cart"
	orderrepo "milaf-storefront/internal/repository/order"
	paymentrepo "milaf-storefront/internal/repository/payment"
	productrepo "milaf-storefront/internal/repository/product"
	anonymoussvc "milaf-storefront/internal/service/anonymous"
	cartsvc "milaf-storefront/internal/service/cart"
	catalogsvc "milaf-storefront/internal/service/catalog"
	checkoutsvc "milaf-storefront/internal/service/checkout"
	ordersvc "milaf-storefront/internal/service/order"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		panic(err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("api")

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	if cfg.MigrateOnStart {
		if err := migrate.Apply(ctx, dbpool, logger); err != nil {
			logger.Fatal("apply migrations", zap.Error(err))
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not reachable; guest carts will fail until it is", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	bus := notify.NewBus(logger)
	bus.Subscribe(notify.TopicAll, func(_ context.Context, ev notify.Event) error {
		logger.Debug("event", zap.String("topic", ev.Topic), zap.String("subject", ev.Subject))
		return nil
	})
	events := notify.Fanout{bus}
	if len(cfg.KafkaBrokers) > 0 {
		kafka := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafka.Close(); err != nil {
				logger.Warn("close kafka writer", zap.Error(err))
			}
		}()
		events = append(events, kafka)
		logger.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	postcodes, err := postcode.Default()
	if err != nil {
		logger.Fatal("load postcode table", zap.Error(err))
	}

	parcelClient := &parcel.Client{
		BaseURL:      cfg.Parcel.BaseURL,
		APIKey:       cfg.Parcel.APIKey,
		FromPostcode: cfg.Parcel.FromPostcode,
		ServiceCode:  cfg.Parcel.ServiceCode,
		Profile: parcel.Profile{
			LengthCM: cfg.Parcel.LengthCM,
			WidthCM:  cfg.Parcel.WidthCM,
			HeightCM: cfg.Parcel.HeightCM,
			WeightKG: cfg.Parcel.WeightKG,
		},
		Logger: logger.Named("parcel"),
	}
	gateway := &payment.Client{
		BaseURL:       cfg.Payment.BaseURL,
		KeyID:         cfg.Payment.KeyID,
		KeySecret:     cfg.Payment.KeySecret,
		WebhookSecret: cfg.Payment.WebhookSecret,
		Logger:        logger.Named("payment"),
	}

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool)
	attemptRepo := paymentrepo.NewPostgres(dbpool)
	guestCarts := anoncartrepo.NewRedis(rdb, cfg.AnonCartTTL)

	catalogService := catalogsvc.New(productRepo)
	cartService := cartsvc.New(cartRepo, productRepo, guestCarts, events, logger)
	orderService := ordersvc.New(orderRepo, events, logger)
	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		Catalog:  catalogService,
		Shipping: parcelClient,
		Gateway:  gateway,
		Attempts: attemptRepo,
		Orders:   orderService,
		Carts:    cartService,
		Events:   events,
		Logger:   logger,
		Currency: cfg.Payment.Currency,
	})
	anonymousService := anonymoussvc.New(cfg.AnonTokenSecret, cfg.AnonCartTTL)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Parcel:       parcelClient,
		Checkout:     checkoutService,
		Catalog:      catalogService,
		Carts:        cartService,
		Guests:       anonymousService,
		GuestCarts:   guestCarts,
		Orders:       orderService,
		Identity:     identity.NewVerifier(cfg.IdentityJWTSecret),
		Postcodes:    postcodes,
		PaymentKeyID: gateway.PublicKey(),
		CORSOrigins:  cfg.CORSOrigins,
		AdminAPIKey:  cfg.AdminAPIKey,
		RateLimitRPS: cfg.RateLimitRPS,
		RateBurst:    cfg.RateLimitBurst,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}
