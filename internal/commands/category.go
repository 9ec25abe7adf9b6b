package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/astralship/energybot/internal/db"
)

func HandleCategory(s *discordgo.Session, i *discordgo.InteractionCreate, database *db.DB) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respond(s, i, "Missing subcommand.")
		return
	}
	sub := data.Options[0]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch sub.Name {
	case "add":
		name := stringOption(sub.Options, "name")
		if err := database.AddCategory(ctx, i.GuildID, name); err != nil {
			respond(s, i, fmt.Sprintf("Couldn't add '%s': %v", name, err))
			return
		}
		respond(s, i, fmt.Sprintf("Category '%s' added.", name))

	case "remove":
		name := stringOption(sub.Options, "name")
		if err := database.RemoveCategory(ctx, i.GuildID, name); err != nil {
			respond(s, i, fmt.Sprintf("Couldn't remove '%s': %v", name, err))
			return
		}
		respond(s, i, fmt.Sprintf("Category '%s' removed.", name))

	case "list":
		categories, err := database.ListCategories(ctx, i.GuildID)
		if err != nil {
			respond(s, i, "Couldn't load the category list.")
			return
		}
		if len(categories) == 0 {
			respond(s, i, "No categories registered for this guild yet.")
			return
		}
		respond(s, i, "Categories: "+strings.Join(categories, ", "))
	}
}

func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}
