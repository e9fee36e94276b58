package discord

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/hectorgimenez/afkbot/internal/bot"
)

// Controller is the part of the bot manager driven by chat commands.
type Controller interface {
	Start() error
	Stop()
	Running() bool
	Status() bot.Stats
}

type Options struct {
	Token                  string
	Username               string
	ChannelID              string
	BotAdmins              []string
	UseWebhook             bool
	WebhookURL             string
	EnableSessionMessages  bool
	EnableKickMessages     bool
	EnableDeathMessages    bool
	EnableAuthFailMessages bool
}

type Bot struct {
	discordSession *discordgo.Session
	opts           Options
	manager        Controller
	webhookClient  *webhookClient
}

func NewBot(opts Options, manager Controller) (*Bot, error) {
	botInstance := &Bot{
		opts:    opts,
		manager: manager,
	}

	if opts.UseWebhook {
		if strings.TrimSpace(opts.WebhookURL) == "" {
			return nil, fmt.Errorf("webhook URL is required when using webhook mode")
		}
		botInstance.webhookClient = newWebhookClient(opts.WebhookURL, opts.Username)
		return botInstance, nil
	}

	dg, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	botInstance.discordSession = dg

	return botInstance, nil
}

// Start listens for admin commands until ctx is done. In webhook mode there is
// nothing to listen to and it only waits.
func (b *Bot) Start(ctx context.Context) error {
	if b.opts.UseWebhook {
		<-ctx.Done()
		return nil
	}

	b.discordSession.AddHandler(b.onMessageCreated)
	b.discordSession.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	if err := b.discordSession.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	<-ctx.Done()

	return b.discordSession.Close()
}

func (b *Bot) onMessageCreated(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	if !slices.Contains(b.opts.BotAdmins, m.Author.ID) {
		return
	}

	reply, ok := b.handleCommand(m.Content)
	if !ok {
		return
	}
	s.ChannelMessageSend(m.ChannelID, reply)
}
