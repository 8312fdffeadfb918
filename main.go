package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "busussd/internal/config"
	"busussd/internal/db"
	router "busussd/internal/http"
	"busussd/internal/http/handlers"
	"busussd/internal/repositories"
	"busussd/internal/services"
	"busussd/internal/session"
	"busussd/internal/ussd"
	"busussd/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	env := intconfig.LoadEnv()

	if len(os.Args) > 1 && os.Args[1] == "admin-token" {
		if err := printAdminToken(env, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger, err := utils.NewLogger(env.IsProduction())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	store, sqlDB, err := openStore(env, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	sessions, rdb, err := openSessions(env)
	if err != nil {
		logger.Fatal("open session store", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	bookings := services.NewBookingService(store, logger)
	auth := &services.OperatorAuth{
		Store:    store,
		Attempts: utils.NewLimiterStore(env.PINAttemptsPerMin, time.Minute),
		Log:      logger,
	}

	handler := &handlers.Handler{
		Customer:     &ussd.CustomerMenu{Bookings: bookings, Sessions: sessions, Log: logger},
		Operator:     &ussd.OperatorMenu{Bookings: bookings, Auth: auth, Sessions: sessions, Log: logger},
		Auth:         auth,
		Store:        store,
		Manifest:     services.ManifestService{Store: store},
		Log:          logger,
		QueryTimeout: env.QueryTimeout,
	}

	r := router.NewRouter(router.Options{
		USSDRatePer15m: env.USSDRatePer15m,
		OpsRatePer15m:  env.OpsRatePer15m,
		AdminSecret:    []byte(env.AdminJWTSecret),
		AllowedOrigins: env.AllowedOrigins(),
		TrustedProxies: env.TrustedProxyList(),
	}, handler, logger)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", env.AppAddr),
			zap.String("store", env.StoreBackend),
			zap.String("sessions", env.SessionBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

func openStore(env intconfig.Env, logger *zap.Logger) (repositories.Store, *sql.DB, error) {
	switch env.StoreBackend {
	case intconfig.BackendMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return repositories.NewMemoryStore(), nil, nil
	case intconfig.BackendMySQL:
		sqlDB, err := intconfig.ConnectDB(env)
		if err != nil {
			return nil, nil, err
		}
		if env.DBAutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			created, err := db.EnsureSchema(ctx, sqlDB)
			cancel()
			if err != nil {
				_ = sqlDB.Close()
				return nil, nil, err
			}
			if len(created) > 0 {
				logger.Info("schema created", zap.Strings("tables", created))
			}
		}
		return repositories.NewMySQLStore(sqlDB), sqlDB, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", env.StoreBackend)
	}
}

func openSessions(env intconfig.Env) (session.Store, *redis.Client, error) {
	switch env.SessionBackend {
	case intconfig.BackendMemory:
		return session.NewMemoryStore(env.SessionTTL), nil, nil
	case intconfig.BackendRedis:
		rdb, err := intconfig.ConnectRedis(env)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb, env.SessionTTL), rdb, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_BACKEND %q", env.SessionBackend)
	}
}

// printAdminToken mints a bearer token for the admin API:
//
//	busussd admin-token [subject] [ttl]
func printAdminToken(env intconfig.Env, args []string) error {
	if env.AdminJWTSecret == "" {
		return errors.New("ADMIN_JWT_SECRET is not set")
	}
	subject := "admin"
	if len(args) > 0 && args[0] != "" {
		subject = args[0]
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
		ttl = d
	}
	token, err := services.IssueAdminToken([]byte(env.AdminJWTSecret), subject, ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
