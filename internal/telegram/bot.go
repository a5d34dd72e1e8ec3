package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"go-jdcrawler/internal/models"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewBot(token string, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:    api,
		chatID: chatID,
	}, nil
}

// newBotWithEndpoint points the bot at another Bot API server.
func newBotWithEndpoint(token, endpoint string, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, err
	}
	return &Bot{api: api, chatID: chatID}, nil
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(",
		")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#",
		"+", "\\+", "-", "\\-", "=", "\\=", "|", "\\|", "{", "\\{",
		"}", "\\}", ".", "\\.", "!", "\\!",
	)
	return replacer.Replace(text)
}

// escapeLinkURL escapes what MarkdownV2 requires inside (...) of a link.
func escapeLinkURL(url string) string {
	return strings.NewReplacer(`\`, `\\`, ")", `\)`).Replace(url)
}

// formatJob renders one posting as a MarkdownV2 message.
func formatJob(job *models.Job) string {
	var b strings.Builder

	//build message chunks
	fmt.Fprintf(&b, "🏢 *%s*\n", escapeMarkdown(job.Company))
	fmt.Fprintf(&b, "💼 %s\n", escapeMarkdown(job.Title))
	fmt.Fprintf(&b, "🔗 [View Job](%s)\n", escapeLinkURL(job.URL))
	if job.Salary != nil {
		fmt.Fprintf(&b, "💰 %s\n", escapeMarkdown(*job.Salary))
	}
	if job.Experience != nil {
		fmt.Fprintf(&b, "🧭 %s\n", escapeMarkdown(*job.Experience))
	}

	loc := models.Deref(job.Location)
	if loc == "" {
		loc = "N/A"
	}
	fmt.Fprintf(&b, "📍 %s\n", escapeMarkdown(loc))

	if job.Deadline != nil {
		fmt.Fprintf(&b, "📅 %s\n", escapeMarkdown(*job.Deadline))
	}

	switch job.ScoreStatus {
	case models.ScoreCompleted:
		fmt.Fprintf(&b, "🤖 Match Score: %d/100\n", job.Score)
	case models.ScoreFiltered:
		fmt.Fprintf(&b, "🚫 %s\n", escapeMarkdown(models.Deref(job.Summary)))
	default:
		fmt.Fprintf(&b, "📊 Rule Score: %d/100\n", job.Score)
	}
	fmt.Fprintf(&b, "🔖 Source: %s\n", escapeMarkdown(string(job.Site)))
	return b.String()
}

func (b *Bot) SendJob(job *models.Job) error {
	//create inline keyboard
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔗 View Job", job.URL),
		),
	)

	msg := tgbotapi.NewMessage(b.chatID, formatJob(job))
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = keyboard

	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendError(err error) error {
	msg := tgbotapi.NewMessage(b.chatID, fmt.Sprintf("❌ Error: %v", err))
	_, sendErr := b.api.Send(msg)
	return sendErr
}

func (b *Bot) SendStatus(message string) error {
	msg := tgbotapi.NewMessage(b.chatID, "ℹ️ "+message)
	_, err := b.api.Send(msg)
	return err
}
