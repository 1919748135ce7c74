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

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/familyos/internal/database"
	"github.com/dukerupert/familyos/internal/email"
	"github.com/dukerupert/familyos/internal/logging"
	"github.com/dukerupert/familyos/internal/media"
	"github.com/dukerupert/familyos/internal/push"
	"github.com/dukerupert/familyos/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("FAMILYOS_LOG_LEVEL"))

	port := os.Getenv("FAMILYOS_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("FAMILYOS_DB_PATH")
	if dbPath == "" {
		dbPath = "familyos.db"
	}

	baseURL := os.Getenv("FAMILYOS_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	jwtSecret := os.Getenv("FAMILYOS_JWT_SECRET")
	if jwtSecret == "" {
		slog.Error("FAMILYOS_JWT_SECRET is required")
		os.Exit(1)
	}

	var tokenTTL time.Duration
	if v := os.Getenv("FAMILYOS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid FAMILYOS_TOKEN_TTL", "value", v, "error", err)
			os.Exit(1)
		}
		tokenTTL = d
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Push config; keys are generated when unset so the server still starts,
	// but subscriptions will not survive a restart.
	vapidPublic := os.Getenv("FAMILYOS_VAPID_PUBLIC_KEY")
	vapidPrivate := os.Getenv("FAMILYOS_VAPID_PRIVATE_KEY")
	if vapidPublic == "" || vapidPrivate == "" {
		vapidPublic, vapidPrivate, err = push.GenerateVAPIDKeys()
		if err != nil {
			slog.Error("generate VAPID keys", "error", err)
			os.Exit(1)
		}
		slog.Warn("using ephemeral VAPID keys; set FAMILYOS_VAPID_PUBLIC_KEY and FAMILYOS_VAPID_PRIVATE_KEY to keep push subscriptions valid")
	}

	cfg := server.Config{
		JWTSecret: jwtSecret,
		TokenTTL:  tokenTTL,
		BaseURL:   baseURL,
		Media: media.Config{
			Endpoint:  os.Getenv("FAMILYOS_S3_ENDPOINT"),
			Bucket:    os.Getenv("FAMILYOS_S3_BUCKET"),
			Region:    envOr("FAMILYOS_S3_REGION", "auto"),
			AccessKey: os.Getenv("FAMILYOS_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("FAMILYOS_S3_SECRET_KEY"),
			PublicURL: os.Getenv("FAMILYOS_S3_PUBLIC_URL"),
		},
		VAPIDPublicKey:  vapidPublic,
		VAPIDPrivateKey: vapidPrivate,
		VAPIDSubscriber: os.Getenv("FAMILYOS_VAPID_SUBSCRIBER"),
		EmailClient:     email.NewClient(os.Getenv("FAMILYOS_POSTMARK_TOKEN"), os.Getenv("FAMILYOS_EMAIL_FROM"), baseURL),
	}
	if !cfg.Media.Configured() {
		slog.Warn("media storage not configured; uploads are disabled")
	}

	srv := server.New(db, cfg, logger)

	// Live channels are long-lived, so no WriteTimeout.
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if n := srv.Notifier(); n != nil {
		n.Start(ctx)
		defer n.Stop()
	}

	g.Go(func() error {
		slog.Info("familyos server starting", "addr", httpServer.Addr, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	// Background cleanup
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
