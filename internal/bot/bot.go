package bot

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/astralship/energybot/internal/db"
	"github.com/astralship/energybot/internal/ledger"
	accounting "github.com/astralship/energybot/internal/session"
	"github.com/astralship/energybot/internal/transcribe"
)

// Schedule says when the daily reminder and the weekly report go out, and
// to which channel per guild.
type Schedule struct {
	Channels     map[string]string
	ReminderHour int
	ReportHour   int
}

type Bot struct {
	session     *discordgo.Session
	db          *db.DB
	manager     *accounting.Manager
	ledger      ledger.Gateway
	transcriber transcribe.Transcriber
	worker      *scheduleWorker
}

func New(token string, database *db.DB, manager *accounting.Manager, gateway ledger.Gateway, transcriber transcribe.Transcriber, schedule Schedule) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	bot := &Bot{
		session:     session,
		db:          database,
		manager:     manager,
		ledger:      gateway,
		transcriber: transcriber,
	}
	bot.worker = newScheduleWorker(session, gateway, schedule)

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsAllWithoutPrivileged |
		discordgo.IntentsMessageContent | discordgo.IntentsDirectMessages

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.worker.start()
	log.Println("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.worker.stop()
	return b.session.Close()
}
