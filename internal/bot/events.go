package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/astralship/energybot/internal/commands"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("%s is connected!", event.User.Username)

	// Register commands for all guilds
	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(guild.ID); err != nil {
			log.Printf("Failed to register commands for guild %s: %v", guild.ID, err)
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	log.Printf("Guild available/joined: %s (id=%s), ensuring commands", event.Name, event.ID)
	if err := b.registerGuildCommands(event.ID); err != nil {
		log.Printf("Failed to register commands for guild %s: %v", event.ID, err)
	}
}

func (b *Bot) registerGuildCommands(guildID string) error {
	cmds := commands.GetCommands()
	// Delete existing commands and register new ones
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, guildID, cmds)
	if err != nil {
		return err
	}

	log.Printf("Registered application commands for guild %s", guildID)
	return nil
}

// onMessageCreate feeds direct messages, and guild messages that mention
// the bot, into the accounting conversation. Voice attachments are
// transcribed first so they take the same path as text.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore bot messages
	if m.Author.Bot {
		return
	}

	text := strings.TrimSpace(m.Content)
	isDM := m.GuildID == ""
	if !isDM {
		mentioned := false
		for _, u := range m.Mentions {
			if u.ID == s.State.User.ID {
				mentioned = true
				break
			}
		}
		if !mentioned {
			return
		}
		text = stripMention(text, s.State.User.ID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if audio := firstVoiceAttachment(m.Attachments); audio != nil {
		transcript, err := b.transcribeAttachment(ctx, audio)
		if err != nil {
			log.Printf("failed to transcribe voice message from %s: %v", m.Author.ID, err)
			s.ChannelMessageSend(m.ChannelID, "I couldn't make out that voice message. Could you type it instead?")
			return
		}
		if text != "" {
			text += "\n"
		}
		text += transcript
	}

	resp := b.manager.HandleUtterance(ctx, m.Author.ID, displayName(m.Member, m.Author), m.GuildID, text)
	if _, err := s.ChannelMessageSend(m.ChannelID, resp.Text); err != nil {
		log.Printf("failed to send reply to channel %s: %v", m.ChannelID, err)
	}
}

func stripMention(text, botID string) string {
	for _, tag := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		text = strings.ReplaceAll(text, tag, "")
	}
	return strings.TrimSpace(text)
}

func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

func firstVoiceAttachment(attachments []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, a := range attachments {
		if strings.HasPrefix(a.ContentType, "audio/") {
			return a
		}
		switch strings.ToLower(path.Ext(a.Filename)) {
		case ".ogg", ".mp3", ".wav", ".m4a":
			return a
		}
	}
	return nil
}

func (b *Bot) transcribeAttachment(ctx context.Context, a *discordgo.MessageAttachment) (string, error) {
	if b.transcriber == nil {
		return "", fmt.Errorf("voice transcription is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("attachment download returned status %d", resp.StatusCode)
	}

	return b.transcriber.Transcribe(ctx, a.Filename, resp.Body)
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	switch data.Name {
	case "account":
		commands.HandleAccount(s, i, b.manager)
	case "cancel":
		commands.HandleCancel(s, i, b.manager)
	case "category":
		commands.HandleCategory(s, i, b.db)
	case "report":
		commands.HandleReport(s, i, b.ledger)
	}
}
