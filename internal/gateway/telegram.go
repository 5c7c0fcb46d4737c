package gateway

import (
	"context"
	"log"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/glide/internal/observability"
)

// Telegram rejects messages longer than this.
const telegramMaxMessage = 4096

type TelegramGateway struct {
	Bot    *tgbotapi.BotAPI
	Router *Router
	Logger *observability.Logger
	format TextFormatter
}

func NewTelegramGateway(token string, router *Router, logger *observability.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &TelegramGateway{
		Bot:    bot,
		Router: router,
		Logger: logger,
		format: HTMLFormatter(),
	}, nil
}

func (tg *TelegramGateway) Name() string {
	return "telegram"
}

func (tg *TelegramGateway) Formatter() Formatter {
	return tg.format
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}

		native := update.Message.Chat.ID
		chatID := ChatID(tg.Name(), strconv.FormatInt(native, 10))
		tg.Logger.LogGateway(tg.Name(), chatID, update.Message.Text)

		if _, err := tg.Bot.Request(tgbotapi.NewChatAction(native, tgbotapi.ChatTyping)); err != nil {
			log.Printf("Error sending chat action: %v", err)
		}

		progress := func(msg string) {
			if err := tg.sendNative(native, tg.format.Text(msg)); err != nil {
				log.Printf("Error sending progress: %v", err)
			}
		}

		reply := tg.Router.Handle(context.Background(), chatID, update.Message.Text, tg.format, progress)
		if err := tg.sendNative(native, reply); err != nil {
			log.Printf("Error sending reply to %s: %v", chatID, err)
		}
	}
	return nil
}

// Send delivers HTML-formatted text to a chat issued by this gateway.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	_, native, err := SplitChatID(chatID)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(native, 10, 64)
	if err != nil {
		return err
	}
	return tg.sendNative(id, text)
}

func (tg *TelegramGateway) sendNative(id int64, text string) error {
	for _, part := range chunk(text, telegramMaxMessage) {
		msg := tgbotapi.NewMessage(id, part)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := tg.Bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}
