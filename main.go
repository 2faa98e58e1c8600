package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kvartaly_monitor/alert"
	"kvartaly_monitor/config"
	"kvartaly_monitor/detector"
	"kvartaly_monitor/logging"
	"kvartaly_monitor/monitor"
	"kvartaly_monitor/notifier"
	"kvartaly_monitor/scheduler"
	"kvartaly_monitor/scraper"
	"kvartaly_monitor/storage"
	"kvartaly_monitor/workers"
)

func main() {
	checkOnce := flag.Bool("check", false, "run one scan cycle and exit")
	testNotify := flag.Bool("test-notify", false, "send a test message to operator chats and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration:\n%v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	logWriter, err := logging.Setup(filepath.Join(cfg.DataDir, "monitor.log"))
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logWriter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	client := notifier.NewClient(cfg.Telegram.BotToken)
	me, err := client.GetMe(ctx)
	if err != nil {
		log.Fatalf("Telegram token check failed: %v", err)
	}
	log.Printf("Telegram bot authorized as @%s", me.Username)

	operatorChats := config.ParseChatIDs(cfg.Telegram.AdminChatID)

	if *testNotify {
		for _, chatID := range operatorChats {
			if err := client.SendMessage(ctx, chatID, "🧪 Тестовое сообщение от мониторинга квартир."); err != nil {
				log.Fatalf("Test message to %s failed: %v", chatID, err)
			}
		}
		log.Printf("Test messages sent to %d chat(s)", len(operatorChats))
		return
	}

	browser := scraper.NewBrowserHandler(cfg)
	defer browser.Close()

	alerts := alert.NewManager(store, client, operatorChats, alert.Options{})
	defer alerts.Stop()

	mon := monitor.New(cfg, browser, detector.New(store), alerts, store, client)

	if *checkOnce {
		log.Println("Running single scan cycle")
		mon.RunJob(ctx)
		return
	}

	for _, chatID := range operatorChats {
		startup := notifier.FormatStartup(len(cfg.EnabledProfiles()), int(cfg.Scheduler.CheckInterval.Minutes()))
		if err := client.SendMessage(ctx, chatID, startup); err != nil {
			log.Printf("Startup message to %s failed: %v", chatID, err)
		}
	}

	bot := notifier.NewBot(client, store, cfg, alerts, mon)
	go bot.Run(ctx)

	cleanup := workers.NewCleanupWorker(store, cfg.DataDir)
	go cleanup.Run(ctx, 6*time.Hour)

	if cfg.S3.Configured() {
		uploader, err := storage.NewS3Uploader(ctx, storage.S3Config(cfg.S3))
		if err != nil {
			log.Printf("S3 uploader disabled: %v", err)
		} else {
			shots := workers.NewScreenshotWorker(uploader, cfg.DataDir)
			go shots.Run(ctx, time.Hour)
			log.Printf("Screenshot archiving enabled (bucket %s)", cfg.S3.Bucket)
		}
	}

	// Initial scan before the cron cadence takes over.
	go mon.RunJob(ctx)

	sched := scheduler.New(cfg.Scheduler, mon)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Printf("Monitoring %d profile(s) every %s", len(cfg.EnabledProfiles()), cfg.Scheduler.CheckInterval)

	<-ctx.Done()
	log.Println("Shutting down...")
	sched.Stop()
	browser.SaveState()
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Database.UsePostgres() {
		log.Println("Using Postgres store")
		return storage.NewPostgresStore(ctx, cfg.Database.URL)
	}
	log.Printf("Using SQLite store at %s", cfg.Database.Path)
	store, err := storage.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return store, nil
}
