// Command server runs the Crolars notification and gamification API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"crolars/internal/app"
	"crolars/internal/config"
)

const shutdownTimeout = 10 * time.Second

func init() {
	log.SetPrefix("[crolars] ")

	// Mirror logs into a file for the log shipper
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "/var/log/crolars"
	}
	if err := os.MkdirAll(logDir, 0755); err == nil {
		f, err := os.OpenFile(filepath.Join(logDir, "server.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// Wires postgres, redis, rabbitmq, the realtime hub and the notification worker
	router := app.NewRouter(cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler: router,
	}

	go func() {
		log.Printf("Crolars API listening on %s (streak calendar: %s)", srv.Addr, cfg.Location())
		log.Printf("Notification streams: GET /api/v1/notifications/stream (SSE), GET /ws (WebSocket)")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received %s, draining connections...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Crolars API stopped")
}
