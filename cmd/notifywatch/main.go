package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crolars/internal/config"
	"crolars/internal/model"
	"crolars/internal/notifystream"
	"crolars/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if cfg.NotifyToken == "" {
		log.Fatal("NOTIFY_TOKEN is required")
	}

	userID := cfg.NotifyUserID
	if userID == "" {
		claims, err := util.ValidateToken(cfg.NotifyToken, cfg.JWTSecret)
		if err != nil {
			log.Fatal("NOTIFY_USER_ID not set and token could not be read:", err)
		}
		userID = claims.UserID
	}

	client := notifystream.NewClient(notifystream.Options{
		BaseURL:        cfg.NotifyBaseURL,
		Token:          cfg.NotifyToken,
		BufferSize:     cfg.NotifyBufferSize,
		ReconnectDelay: cfg.NotifyReconnectDelay,
		Toaster:        notifystream.LogToaster{},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.FetchInitial(ctx); err != nil {
		log.Printf("Failed to fetch notifications: %v", err)
	} else {
		log.Printf("Loaded %d notifications, %d unread", len(client.Notifications()), client.UnreadCount())
	}
	cancel()

	unsubscribe := client.Subscribe(func(n model.Notification) {
		log.Printf("%s (%s) - %d unread", n.Title, n.Type, client.UnreadCount())
	})
	defer unsubscribe()

	client.Connect(userID)
	log.Printf("Watching notifications for user %s", userID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	client.Disconnect()
	log.Println("Disconnected")
}
