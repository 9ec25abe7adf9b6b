package commands

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	accounting "github.com/astralship/energybot/internal/session"
)

// HandleAccount opens an accounting session for the invoking voyager by
// feeding a start utterance through the conversation manager.
func HandleAccount(s *discordgo.Session, i *discordgo.InteractionCreate, manager *accounting.Manager) {
	forwardToManager(s, i, manager, "start")
}

func HandleCancel(s *discordgo.Session, i *discordgo.InteractionCreate, manager *accounting.Manager) {
	forwardToManager(s, i, manager, "cancel")
}

func forwardToManager(s *discordgo.Session, i *discordgo.InteractionCreate, manager *accounting.Manager, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user := interactionUser(i)
	resp := manager.HandleUtterance(ctx, user.ID, interactionDisplayName(i), i.GuildID, text)
	respond(s, i, resp.Text)
}
