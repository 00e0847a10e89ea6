package discord

import (
	"context"
	"log"
)

const colorCritical = 0xE74C3C

// Alerter delivers critical alerts as red embeds to an operator channel.
// Delivery is best-effort: failures are logged and never raised.
type Alerter struct {
	client    *Client
	channelID string
}

// NewAlerter creates an alerter posting to channelID.
func NewAlerter(client *Client, channelID string) *Alerter {
	return &Alerter{client: client, channelID: channelID}
}

// Critical posts a structured alert. Never returns an error.
func (a *Alerter) Critical(ctx context.Context, title string, fields map[string]string) {
	if a.channelID == "" {
		log.Printf("[Alerter] No alert channel configured, dropping alert: %s %v", title, fields)
		return
	}

	embed := Embed{Title: title, Color: colorCritical}
	for k, v := range fields {
		embed.Fields = append(embed.Fields, EmbedField{Name: k, Value: v})
	}

	if err := a.client.ChannelEmbed(ctx, a.channelID, embed); err != nil {
		log.Printf("[Alerter] Failed to deliver alert %q: %v", title, err)
	}
}
