package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neoncode/backend/internal/config"
	"neoncode/backend/internal/httpapi"
	"neoncode/backend/internal/store"
	"neoncode/backend/internal/store/postgres"
	"neoncode/backend/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()
	shutdownTelemetry := telemetry.Setup("neoncode-backend", telemetry.Options{
		Endpoint: cfg.OTELEndpoint,
		Insecure: cfg.OTELInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	if err := postgres.RunMigrations(context.Background(), cfg.DatabaseURL); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool, postgres.Options{
		SessionTTL: time.Duration(cfg.SessionTTLHours) * time.Hour,
	})

	if cfg.AdminPassword != "" {
		seedAdmin(context.Background(), st, cfg.AdminPassword)
	}

	handler := httpapi.NewHandler(st)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:    cfg.RateLimitPerMinute,
		IPBurst:        cfg.RateLimitBurst,
		LoginPerMinute: cfg.LoginRatePerMinute,
		LoginBurst:     cfg.LoginRateBurst,
	})

	chain := httpapi.CORSMiddleware(cfg.CORSAllowOrigin, httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())))
	otelHandler := otelhttp.NewHandler(chain, "neoncode-backend")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("neoncode-backend listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func seedAdmin(ctx context.Context, st store.Store, password string) {
	_, err := st.RegisterUser(ctx, store.RegisterInput{
		Username: "admin",
		Email:    "admin@neoncode.dev",
		Password: password,
		FullName: "NeonCode Administrator",
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
			return
		}
		log.Printf("admin seed: %v", err)
		return
	}
	log.Printf("created default admin user")
}
