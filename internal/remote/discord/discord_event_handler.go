package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/hectorgimenez/afkbot/internal/event"
)

const (
	colorGreen  = 0x2ecc71
	colorYellow = 0xf1c40f
	colorRed    = 0xe74c3c
)

func (b *Bot) Handle(ctx context.Context, e event.Event) error {
	if !b.shouldPublish(e) {
		return nil
	}

	switch evt := e.(type) {
	case event.KickedEvent:
		return b.sendEmbed(ctx, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("[%s] %s", evt.Supervisor(), evt.Message()),
			Description: evt.Reason,
			Color:       colorYellow,
		})
	case event.SessionEndedEvent:
		next := "not reconnecting"
		if evt.Reconnecting {
			next = "reconnecting"
		}
		return b.sendEmbed(ctx, &discordgo.MessageEmbed{
			Title:       fmt.Sprintf("[%s] %s", evt.Supervisor(), evt.Message()),
			Description: fmt.Sprintf("Reason: %s (%s)", evt.Reason, next),
			Color:       colorRed,
		})
	case event.AuthFinishedEvent:
		return b.sendEventMessage(ctx, fmt.Sprintf("**[%s]** %s: %s", evt.Supervisor(), evt.Message(), evt.Reason))
	case event.SessionStartedEvent:
		return b.sendEmbed(ctx, &discordgo.MessageEmbed{
			Title: fmt.Sprintf("[%s] %s", evt.Supervisor(), evt.Message()),
			Color: colorGreen,
		})
	case event.NgrokTunnelEvent:
		return b.sendEventMessage(ctx, evt.Message())
	}

	return b.sendEventMessage(ctx, fmt.Sprintf("**[%s]** %s", e.Supervisor(), e.Message()))
}

func (b *Bot) shouldPublish(e event.Event) bool {
	switch evt := e.(type) {
	case event.SessionStartedEvent, event.SessionEndedEvent:
		return b.opts.EnableSessionMessages
	case event.KickedEvent:
		return b.opts.EnableKickMessages
	case event.DiedEvent:
		return b.opts.EnableDeathMessages
	case event.AuthFinishedEvent:
		return !evt.Success && b.opts.EnableAuthFailMessages
	}
	return true
}

func (b *Bot) sendEventMessage(ctx context.Context, message string) error {
	if b.opts.UseWebhook {
		return b.webhookClient.Send(ctx, message)
	}

	_, err := b.discordSession.ChannelMessageSend(b.opts.ChannelID, message)
	return err
}

func (b *Bot) sendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) error {
	if b.opts.UseWebhook {
		return b.webhookClient.SendEmbed(ctx, embed)
	}

	_, err := b.discordSession.ChannelMessageSendEmbed(b.opts.ChannelID, embed)
	return err
}
