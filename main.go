package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kube-rca/auth/internal/config"
	"github.com/kube-rca/auth/internal/db"
	"github.com/kube-rca/auth/internal/handler"
	"github.com/kube-rca/auth/internal/hasher"
	"github.com/kube-rca/auth/internal/limiter"
	"github.com/kube-rca/auth/internal/logging"
	"github.com/kube-rca/auth/internal/service"
	"github.com/kube-rca/auth/internal/token"
	"github.com/redis/go-redis/v9"
)

// @title kube-rca auth API
// @version 1.0
// @description Email/password authentication with JWT access and refresh tokens.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.Log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 사용자 저장소 초기화
	var users service.UserStore
	switch cfg.Server.StoreDriver {
	case "memory":
		log.Warn("using in-memory user store; users are lost on restart")
		users = db.NewMemoryStore()
	default:
		pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		users = db.NewPostgres(pool)
	}

	h, err := hasher.New(cfg.Auth.HashAlgorithm, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	codec, err := token.NewCodec([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm, token.WithLogger(log))
	if err != nil {
		return err
	}

	opts := []service.Option{service.WithLogger(log)}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable; login limiter fails open", "error", err)
		}
		opts = append(opts, service.WithLoginLimiter(limiter.NewLoginLimiter(client, limiter.Config{
			MaxFailures: cfg.Redis.LoginMaxFailures,
			Window:      cfg.Redis.LoginLockout,
		})))
	}

	authService, err := service.NewAuthService(users, h, codec, cfg.Auth, opts...)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.GinMode)
	router := handler.NewRouter(authService, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "store", cfg.Server.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
