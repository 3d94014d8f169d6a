package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/api"
	"github.com/nhle/mailgate/internal/cache"
	"github.com/nhle/mailgate/internal/config"
	"github.com/nhle/mailgate/internal/mailbox"
	"github.com/nhle/mailgate/internal/store"
	"github.com/nhle/mailgate/internal/token"
)

func main() {
	configPath := flag.String("config", "mailgate.yaml", "path to the configuration file")
	flag.Parse()

	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("MAILGATE_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("loading configuration")
	}
	if cfg.Server.AdminSecret == "" {
		log.Fatal("admin secret is not configured, set MAILGATE_ADMIN_SECRET")
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		log.WithError(err).Fatal("opening credential store")
	}
	defer func() { _ = st.Close() }()

	broker := token.NewBroker(cfg.OAuth.TokenURL, cfg.OAuth.Scope, log)
	sessions := mailbox.NewSessionManager(
		cfg.IMAP.Host, cfg.IMAP.Port,
		cfg.IMAP.MaxSessionsPerAccount,
		log,
	)
	listings := cache.New(time.Duration(cfg.Cache.TTLSeconds) * time.Second)
	folders := mailbox.Folders{Inbox: cfg.Folders.Inbox, Junk: cfg.Folders.Junk}

	engine := mailbox.NewService(broker, sessions, listings, folders, log)
	server := api.NewServer(engine, st, cfg.Server.AdminSecret, log)

	go func() {
		log.WithField("listen", cfg.Server.Listen).Info("mailgate listening")
		if err := server.Listen(cfg.Server.Listen); err != nil {
			log.WithError(err).Fatal("http server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	if err := server.Shutdown(); err != nil {
		log.WithError(err).Error("shutting down http server")
	}
}
