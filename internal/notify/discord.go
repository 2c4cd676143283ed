package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// DiscordSender posts embeds to a webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

// embedColor is red for failures, amber for degraded pricing, green otherwise.
func embedColor(event string) int {
	switch event {
	case domain.EventBuildFailed:
		return 0xd32f2f
	case domain.EventOracleFallback, domain.EventVaultExpired:
		return 0xffa000
	default:
		return 0x388e3c
	}
}

func (d *DiscordSender) Send(ctx context.Context, event, title, message string) error {
	embed := discordEmbed{Title: title, Description: message, Color: embedColor(event)}
	embed.Footer.Text = event
	if err := postJSON(ctx, d.client, d.webhookURL, map[string]any{"embeds": []discordEmbed{embed}}); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }
