package bot

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	api  *tgbotapi.BotAPI
	Self *tgbotapi.User
}

func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("bot token cannot be empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api instance: %w", err)
	}

	api.Debug = false

	log.Printf("Verifying API token...")
	ok, err := api.GetMe()
	if err != nil {
		return nil, fmt.Errorf("failed to verify bot token with GetMe(): %w", err)
	}
	log.Printf("Token verified successfully.")

	client := &Client{
		api:  api,
		Self: &ok,
	}

	return client, nil
}

func (c *Client) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)

	msg.ParseMode = ""

	sentMsg, err := c.api.Send(msg)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	return sentMsg, nil
}

func (c *Client) SendDocument(chatID int64, filename string, data []byte) (tgbotapi.Message, error) {
	if filename == "" {
		return tgbotapi.Message{}, fmt.Errorf("document filename cannot be empty")
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  filename,
		Bytes: data,
	})

	sentMsg, err := c.api.Send(doc)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("failed to send document %s: %w", filename, err)
	}
	return sentMsg, nil
}

func (c *Client) GetUpdatesChan(timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout

	return c.api.GetUpdatesChan(u)
}
