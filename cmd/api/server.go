package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mw "checkmate/internal/api/middlewares"
	"checkmate/internal/api/routers"
	"checkmate/internal/config"
	"checkmate/internal/repositories/memstore"
	"checkmate/internal/repositories/sqlconnect"
	"checkmate/internal/services"
	"checkmate/internal/settlement"
	"checkmate/pkg/cron"
	"checkmate/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		utils.Logger.Info("no .env file found, reading configuration from the environment")
	}

	cfg := config.Load()
	utils.InitLogger(cfg.Log.Level, cfg.Log.Env)
	utils.ConfigureMailer(cfg.SMTP)

	if cfg.Server.JWTSecret == "" {
		utils.Logger.Fatal("JWT_SECRET is not set")
	}

	if err := sqlconnect.ConnectDb(cfg.Database); err != nil {
		utils.Logger.Fatal("DB connection failed: ", err)
	}

	if err := sqlconnect.Migrate(sqlconnect.DB); err != nil {
		utils.Logger.Fatal(err)
	}

	trips := sqlconnect.NewTripRepository(sqlconnect.DB)
	expenses := sqlconnect.NewExpenseRepository(sqlconnect.DB)
	rates := sqlconnect.NewRateRepository(sqlconnect.DB)

	var (
		rounds  settlement.RoundStore
		pending cron.PendingLister
	)
	switch cfg.Settings.ConfirmationStore {
	case "memory":
		utils.Logger.Warn("confirmation rounds are kept in memory and will not survive a restart")
		rounds = memstore.NewRoundStore()
	default:
		repo := sqlconnect.NewRoundRepository(sqlconnect.DB)
		rounds, pending = repo, repo
	}

	opts := []services.SettlementServiceOption{
		services.WithNotifier(services.NewMailNotifier()),
		services.WithBudgetStore(sqlconnect.NewBudgetRepository(sqlconnect.DB)),
	}
	if fx, err := services.NewFXClient(cfg.FX); err == nil {
		opts = append(opts, services.WithRateProvider(fx))
	} else {
		utils.Logger.Warnf("%v, only recorded exchange rates will be used", err)
	}

	svc := services.NewSettlementService(trips, expenses, rates, settlement.NewCoordinator(rounds), opts...)

	jobs := cron.StartCronJob(trips, pending, svc)

	router := routers.MainRouter(svc)
	jwtMiddleware := mw.MiddlewaresExcludePaths(mw.JWTMiddleware(cfg.Server.JWTSecret), "/healthz")

	secureMux := mw.RequestID(mw.Cors(cfg.Server.CorsOrigins)(mw.SecurityHeaders(jwtMiddleware(router))))

	server := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           secureMux,
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	go func() {
		utils.Logger.Infof("Server is running on port %s", cfg.Server.Port)
		var err error
		if cfg.Server.CertFile != "" && cfg.Server.KeyFile != "" {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			utils.Logger.Warn("CERT_FILE/KEY_FILE not set, serving plain HTTP")
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("Error starting the server: ", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	utils.Logger.Info("Shutting down")
	<-jobs.Stop().Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("graceful shutdown failed: ", err)
	}
	sqlconnect.DB.Close()
}
