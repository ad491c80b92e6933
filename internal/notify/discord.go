package notify

import (
	"context"
	"fmt"
	"unicode/utf8"
)

const discordMaxContent = 2000

// DiscordSender delivers notifications via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	hook       webhook
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, hook: newWebhook("discord")}
}

// Send posts the title in bold followed by message.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := truncateRunes(fmt.Sprintf("**%s**\n%s", title, message), discordMaxContent)
	return d.hook.post(ctx, d.webhookURL, map[string]string{"content": content})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

// truncateRunes cuts s to at most max characters, ending in "..." when cut.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
