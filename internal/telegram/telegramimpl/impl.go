package telegramimpl

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/orgball2608/insta-downloader-client/internal/telegram"
	"github.com/orgball2608/insta-downloader-client/pkg/config"
	"github.com/orgball2608/insta-downloader-client/pkg/formatter"
	"github.com/orgball2608/insta-downloader-client/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

// Sender is the part of the bot API used for alerts.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramImpl struct {
	bot    Sender
	userID int64
	logger logger.Logger
}

var _ telegram.Client = (*TelegramImpl)(nil)

// New returns a bot-backed client, or a Noop when alerts are not configured.
func New(opts Opts) (telegram.Client, error) {
	if !opts.Config.AlertsEnabled() {
		opts.Logger.Info("Telegram alerts disabled")
		return Noop{}, nil
	}

	tgBot, err := tgbotapi.NewBotAPI(opts.Config.Telegram.Token)
	if err != nil {
		opts.Logger.Error("Error creating bot", "error", err)
		return nil, err
	}

	return NewWithSender(tgBot, opts.Config.Telegram.User, opts.Logger), nil
}

func NewWithSender(bot Sender, userID int64, log logger.Logger) *TelegramImpl {
	return &TelegramImpl{
		bot:    bot,
		userID: userID,
		logger: log.WithComponent("Telegram"),
	}
}

func (tg *TelegramImpl) SendMessageToUser(text string) error {
	return tg.send(tgbotapi.NewMessage(tg.userID, text))
}

func (tg *TelegramImpl) SendAlert(title, detail string) error {
	msg := tgbotapi.NewMessage(tg.userID, fmt.Sprintf("*%s*\n%s", formatter.EscapeMarkdownV2(title), formatter.EscapeMarkdownV2(detail)))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return tg.send(msg)
}

func (tg *TelegramImpl) send(msg tgbotapi.MessageConfig) error {
	if _, err := tg.bot.Send(msg); err != nil {
		tg.logger.Error("Error sending message to user", "userID", tg.userID, "error", err)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	tg.logger.Info("Message sent to user", "userID", tg.userID)
	return nil
}

// Noop drops every message.
type Noop struct{}

var _ telegram.Client = Noop{}

func (Noop) SendMessageToUser(string) error { return nil }

func (Noop) SendAlert(string, string) error { return nil }
