// The relay binary runs the rendezvous and relay server. It holds no
// persistent state; after a restart clients reconnect and re-register.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"closelink/internal/app"
	"closelink/internal/relaysrv"
)

func main() {
	_ = godotenv.Load()
	addr := getenv("RELAY_ADDR", ":8080")
	logger := app.NewLogger(getenv("RELAY_LOG_LEVEL", "info"))

	hub := relaysrv.New(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           hub.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("relay listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("relay server failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", "err", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
