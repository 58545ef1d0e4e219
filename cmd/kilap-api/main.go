// README: Entry point; loads config, runs migrations, wires services and starts the HTTP server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kilap/internal/config"
	httptransport "kilap/internal/http"
	"kilap/internal/infra"
	"kilap/internal/metrics"
	"kilap/internal/modules/account"
	"kilap/internal/modules/address"
	"kilap/internal/modules/catalog"
	"kilap/internal/modules/order"
	"kilap/internal/modules/payment"
	"kilap/internal/modules/stage"
	"kilap/internal/notify"
	"kilap/internal/storage"
	"kilap/internal/types"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := infra.RunMigrations(cfg.DB.DSN, cfg.DB.MigrationsDir); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	photoStore, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("photo storage: %v", err)
	}

	stageMetrics := metrics.NewStageMetrics()

	accountStore := account.NewStore(dbPool)
	accountSvc := account.NewService(accountStore, redisClient, cfg.Session.TTL)

	geocoder, err := address.NewMapsGeocoder(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("maps client: %v", err)
	}
	fence := address.NewGeofence(cfg.Geofence)
	locator := address.NewService(geocoder, fence)

	orderStore := order.NewStore(dbPool)
	orderSvc := order.NewService(orderStore, locator, order.StoreFront{
		Name:   cfg.Store.Name,
		Street: cfg.Store.Street,
		Phone:  cfg.Store.Phone,
		Origin: types.Point{Lat: cfg.Geofence.OriginLat, Lng: cfg.Geofence.OriginLng},
	}, cfg.Deposit.Amount, stageMetrics)

	stageStore := stage.NewStore(dbPool)
	stageSvc := stage.NewService(stageStore, orderStore, photoStore, stageMetrics)

	paymentStore := payment.NewStore(dbPool)
	gateway := payment.NewHTTPGateway(cfg.Gateway)
	notifier := notify.NewNotifier(redisClient)
	paymentSvc := payment.NewService(paymentStore, orderStore, gateway, notifier, cfg.Gateway.ServerKey, stageMetrics)

	catalogStore := catalog.NewStore(dbPool)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Accounts: accountSvc,
		Orders:   orderSvc,
		Stages:   stageSvc,
		Payments: paymentSvc,
		Catalog:  catalogStore,
		Photos:   photoStore,
		Redis:    redisClient,
		Config:   &cfg,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	log.Printf("listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
