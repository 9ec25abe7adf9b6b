package commands

import (
	"context"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/astralship/energybot/internal/ledger"
	"github.com/astralship/energybot/internal/report"
)

// HandleReport renders the guild's committed accounts for the trailing
// seven days on demand, same format as the scheduled weekly post.
func HandleReport(s *discordgo.Session, i *discordgo.InteractionCreate, gateway ledger.Gateway) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	entries, err := gateway.Query(ctx, ledger.Filter{
		GuildID: i.GuildID,
		From:    now.AddDate(0, 0, -7),
		To:      now,
	})
	if err != nil {
		log.Printf("failed to load ledger entries for guild %s: %v", i.GuildID, err)
		respond(s, i, "Couldn't load this week's accounts.")
		return
	}

	respond(s, i, report.Render(report.Build(entries)))
}
