package telegram_api

import (
	"fmt"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"
)

// Sender is the part of the bot API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotClient wraps the Telegram Bot API. The server only sends; it never polls
// for updates.
type BotClient struct {
	api    *tgbotapi.BotAPI
	logger *zap.Logger
	Debug  bool
}

// NewBotClient authorises the bot token.
func NewBotClient(token string, debug bool, logger *zap.Logger) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram API token is not set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot API: %w", err)
	}
	api.Debug = debug
	logger.Info("telegram bot authorised", zap.String("username", api.Self.UserName))

	return &BotClient{api: api, logger: logger, Debug: debug}, nil
}

// Send delivers a message or other chattable.
func (bc *BotClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if bc == nil || bc.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("telegram bot client is not initialised")
	}
	if bc.Debug {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			bc.logger.Debug("sending telegram message", zap.Int64("chat_id", msg.ChatID), zap.Int("length", len(msg.Text)))
		} else {
			bc.logger.Debug("sending telegram request", zap.String("type", fmt.Sprintf("%T", c)))
		}
	}
	return bc.api.Send(c)
}
