package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/nkobot/internal/text"
)

// DefaultTypingInterval refreshes the typing indicator before Telegram
// hides it after five seconds.
const DefaultTypingInterval = 4 * time.Second

// Chat sends messages to one Telegram chat.
type Chat struct {
	b      *bot.Bot
	chatID int64
	log    *slog.Logger
}

// NewChat binds b to chatID.
func NewChat(b *bot.Bot, chatID int64, log *slog.Logger) *Chat {
	return &Chat{b: b, chatID: chatID, log: log}
}

// ID returns the chat id.
func (c *Chat) ID() int64 {
	return c.chatID
}

// Send sends a single message and returns its id.
func (c *Chat) Send(ctx context.Context, msg string, markup models.ReplyMarkup) (int, error) {
	m, err := c.b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      c.chatID,
		Text:        msg,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message to chat %d: %w", c.chatID, err)
	}
	return m.ID, nil
}

// SendLong sanitizes msg and sends it in as many messages as the Telegram
// length limit requires. markup is attached to the last message. The id of
// the last message is returned.
func (c *Chat) SendLong(ctx context.Context, msg string, markup models.ReplyMarkup) (int, error) {
	chunks := text.Split(text.Sanitize(msg), text.MaxMessageLength)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("message for chat %d is empty", c.chatID)
	}

	var lastID int
	for i, chunk := range chunks {
		var m models.ReplyMarkup
		if i == len(chunks)-1 {
			m = markup
		}
		id, err := c.Send(ctx, chunk, m)
		if err != nil {
			return lastID, err
		}
		lastID = id
	}
	return lastID, nil
}

// Edit replaces the text and inline keyboard of a message. Telegram's
// "message is not modified" answer is not an error.
func (c *Chat) Edit(ctx context.Context, messageID int, msg string, markup models.ReplyMarkup) error {
	_, err := c.b.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      c.chatID,
		MessageID:   messageID,
		Text:        msg,
		ReplyMarkup: markup,
	})
	if err != nil {
		if IsNotModified(err) {
			return nil
		}
		return fmt.Errorf("failed to edit message %d in chat %d: %w", messageID, c.chatID, err)
	}
	return nil
}

// SendPhoto uploads an image.
func (c *Chat) SendPhoto(ctx context.Context, data []byte, filename string, markup models.ReplyMarkup) error {
	_, err := c.b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:      c.chatID,
		Photo:       &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(data)},
		ReplyMarkup: markup,
	})
	if err != nil {
		return fmt.Errorf("failed to send photo to chat %d: %w", c.chatID, err)
	}
	return nil
}

// KeepTyping shows the typing indicator until the returned stop function is
// called or ctx ends.
func (c *Chat) KeepTyping(ctx context.Context, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultTypingInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if _, err := c.b.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: c.chatID,
				Action: models.ChatActionTyping,
			}); err != nil && ctx.Err() == nil {
				c.log.DebugContext(ctx, "Typing action failed", "chat_id", c.chatID, "error", err)
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// IsNotModified reports whether err is Telegram's answer to an edit that
// does not change the message.
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
