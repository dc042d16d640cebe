// Package telegram provides a client for sending notifications via Telegram Bot API.
// It formats finished analysis runs into human-readable messages and handles
// delivery with retry logic for reliability.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/spotfit/internal/report"
)

// sender is the part of tgbotapi.BotAPI the client needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send sends a summary of a finished run
func (c *Client) Send(run *report.Run, elapsed time.Duration) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(run, elapsed))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatMessage formats a run into a Telegram message
func formatMessage(run *report.Run, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔭 *Spot fit finished: %s*\n\n", escapeMarkdownV2(run.Label))

	source := "sampled in " + formatDuration(elapsed)
	if run.FromCache {
		source = "loaded from cache"
	}
	samples := humanize.Comma(int64(run.Walkers * run.Steps))
	fmt.Fprintf(&b, "%s samples, %s\n", escapeMarkdownV2(samples), escapeMarkdownV2(source))
	fmt.Fprintf(&b, "Terms: %s\n\n", escapeMarkdownV2(strings.Join(run.ActiveTerms, ", ")))

	for _, s := range run.Summaries {
		line := fmt.Sprintf("%s = %.4g (%.4g to %.4g)", s.Name, s.Median, s.Lower, s.Upper)
		fmt.Fprintf(&b, "• `%s`\n", escapeMarkdownV2(line))
	}

	d := run.Diagnostics
	status := "✅ converged"
	if !d.Converged {
		status = "⚠️ not converged"
	}
	fmt.Fprintf(&b, "\n%s, acceptance %s, max τ %s\n", status,
		escapeMarkdownV2(fmt.Sprintf("%.2f", d.AcceptanceFraction)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", d.MaxTau)))
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh%dm", hours, int(d.Minutes())%60)
	}
	if mins := int(d.Minutes()); mins >= 1 {
		return fmt.Sprintf("%dm%ds", mins, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
