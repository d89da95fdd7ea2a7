package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/bot"
	"github.com/otcdesk/exchange-desk-bot/config"
	"github.com/otcdesk/exchange-desk-bot/db"
	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/notify"
	"github.com/otcdesk/exchange-desk-bot/orders"
	"github.com/otcdesk/exchange-desk-bot/roles"
	"github.com/otcdesk/exchange-desk-bot/web"
)

func main() {
	if err := config.Load(envPath()); err != nil {
		logger.Fatal(errors.Wrap(err, "failed to load config"))
	}
	cfg := config.Get()

	store, err := db.NewStore(cfg.DBPath)
	if err != nil {
		logger.Fatal(errors.Wrap(err, "failed to open database"))
	}
	defer store.Close()

	resolver := roles.NewResolver(store, cfg.SuperAdmins())
	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	resolver.SeedSuperAdmins(seedCtx)
	cancel()

	mainBot, err := bot.NewTelebot(cfg.TelegramToken, cfg.Polling)
	if err != nil {
		logger.Fatal(errors.Wrap(err, "failed to connect main bot"))
	}

	// The notification bot is optional. Without a token the main bot carries
	// staff notifications as well.
	var staffChannel notify.Sender = mainBot
	var notificationMsg bot.Messenger = mainBot
	if cfg.NotificationToken != "" {
		client := notify.NewClient(cfg.NotificationToken)
		staffChannel = client
		notificationMsg = bot.NewNotificationMessenger(client)
	} else {
		logger.Warn("NOTIFICATION_BOT_TOKEN not set, staff notifications use the main bot")
	}

	notifier := notify.NewNotifier(store, staffChannel)
	svc := orders.NewService(store, resolver, mainBot, notifier, cfg.BlockExplorerBaseURL)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	router := bot.NewRouter(store, svc, resolver, notifier, mainBot, rng)
	notificationRouter := bot.NewNotificationRouter(svc, resolver, notificationMsg)

	srv := web.NewServer(store, router, notificationRouter)
	go listen(srv, ":"+cfg.Port)
	if cfg.NotificationPort != "" && cfg.NotificationPort != cfg.Port {
		go listen(srv, ":"+cfg.NotificationPort)
	}

	if cfg.Polling {
		mainBot.RegisterHandlers(router)
		go mainBot.Start()
		logger.Info("main bot polling for updates")
	} else {
		logger.Info("main bot expects webhook delivery", "path", "/webhook")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	if cfg.Polling {
		mainBot.Stop()
	}
	if err := srv.Shutdown(); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

func listen(srv *web.Server, addr string) {
	if err := srv.ListenAndServe(addr); err != nil {
		logger.Error("http server stopped", "addr", addr, "error", err)
	}
}

func envPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	return ".env"
}
