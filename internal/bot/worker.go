package bot

import (
	"context"
	"log"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/astralship/energybot/internal/ledger"
	"github.com/astralship/energybot/internal/report"
)

const reminderText = "Here's your friendly reminder to create your energy accounting logs if you haven't already for the day!\n\nDM me whenever you're ready."

// reportWeekday is when the weekly report goes out.
const reportWeekday = time.Friday

// scheduleWorker posts the daily accounting reminder and the weekly crew
// report to each configured guild channel.
type scheduleWorker struct {
	ledger   ledger.Gateway
	session  channelSender
	schedule Schedule
	stopChan chan struct{}
	ticker   *time.Ticker
	interval time.Duration

	lastReminder string // date of the last reminder sent, YYYY-MM-DD
	lastReport   string
}

// Minimal session interface for sending channel messages.
type channelSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func newScheduleWorker(session channelSender, gateway ledger.Gateway, schedule Schedule) *scheduleWorker {
	return &scheduleWorker{
		ledger:   gateway,
		session:  session,
		schedule: schedule,
		stopChan: make(chan struct{}),
		interval: time.Minute,
	}
}

func (w *scheduleWorker) start() {
	if w == nil || len(w.schedule.Channels) == 0 {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *scheduleWorker) stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *scheduleWorker) loop() {
	ctx := context.Background()
	for {
		select {
		case now := <-w.ticker.C:
			w.tick(ctx, now)
		case <-w.stopChan:
			return
		}
	}
}

func (w *scheduleWorker) tick(ctx context.Context, now time.Time) {
	day := now.Format("2006-01-02")

	if now.Hour() >= w.schedule.ReminderHour && w.lastReminder != day {
		w.lastReminder = day
		w.sendReminders(ctx)
	}

	if now.Weekday() == reportWeekday && now.Hour() >= w.schedule.ReportHour && w.lastReport != day {
		w.lastReport = day
		w.sendReports(ctx, now)
	}
}

func (w *scheduleWorker) sendReminders(ctx context.Context) {
	log.Println("reminding voyagers to account their energy")
	for guildID, channelID := range w.schedule.Channels {
		if err := w.sendWithRetry(ctx, channelID, reminderText); err != nil {
			log.Printf("failed to send reminder to guild %s channel %s: %v", guildID, channelID, err)
		}
	}
}

func (w *scheduleWorker) sendReports(ctx context.Context, now time.Time) {
	log.Println("generating weekly reports")
	for guildID, channelID := range w.schedule.Channels {
		entries, err := w.ledger.Query(ctx, ledger.Filter{
			GuildID: guildID,
			From:    now.AddDate(0, 0, -7),
			To:      now,
		})
		if err != nil {
			log.Printf("failed to load ledger entries for guild %s: %v", guildID, err)
			continue
		}
		msg := report.Render(report.Build(entries))
		if err := w.sendWithRetry(ctx, channelID, msg); err != nil {
			log.Printf("failed to send weekly report to guild %s channel %s: %v", guildID, channelID, err)
		}
	}
}

func (w *scheduleWorker) sendWithRetry(ctx context.Context, channelID, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := w.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout() || ne.Temporary()
	}
	return false
}
