package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/astralship/energybot/internal/api"
	"github.com/astralship/energybot/internal/bot"
	"github.com/astralship/energybot/internal/config"
	"github.com/astralship/energybot/internal/db"
	"github.com/astralship/energybot/internal/ledger"
	"github.com/astralship/energybot/internal/session"
	"github.com/astralship/energybot/internal/transcribe"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	database, err := db.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(context.Background()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	gateway := ledger.NewPostgres(database)

	// Conversation manager drives the accounting sessions
	manager := session.NewManager(session.Config{
		Tolerance:         cfg.Tolerance,
		FuzzyThreshold:    cfg.FuzzyThreshold,
		IdleTimeout:       cfg.SessionIdleTimeout,
		DefaultCategories: cfg.DefaultCategories,
	}, gateway, database)
	manager.Start()
	defer manager.Stop()

	var transcriber transcribe.Transcriber
	if cfg.OpenAIKey != "" {
		transcriber = transcribe.NewClient(cfg.OpenAIKey)
	} else {
		log.Println("OPENAI_API_KEY not set, voice messages disabled")
	}

	// Initialize Discord bot
	discordBot, err := bot.New(cfg.DiscordToken, database, manager, gateway, transcriber, bot.Schedule{
		Channels:     cfg.ReportChannels,
		ReminderHour: cfg.ReminderHour,
		ReportHour:   cfg.ReportHour,
	})
	if err != nil {
		log.Fatalf("Failed to create discord bot: %v", err)
	}

	// Initialize API server
	apiServer := api.New(cfg, database, gateway)

	// Start Discord bot
	if err := discordBot.Start(); err != nil {
		log.Fatalf("Failed to start discord bot: %v", err)
	}
	defer discordBot.Stop()

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	// Wait for signal to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
}
