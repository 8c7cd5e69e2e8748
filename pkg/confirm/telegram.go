package confirm

import (
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// TelegramAPI is the subset of the bot API the forwarder needs.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramForwarder relays approve/deny questions to a Telegram chat as
// inline-button messages. Richer question kinds (select, text) stay on the
// websocket surface; Telegram only handles the binary shapes.
type TelegramForwarder struct {
	api    TelegramAPI
	bus    *Bus
	chatID int64

	mu       sync.Mutex
	messages map[string]int // callID -> message ID, for edit-on-resolve
	done     chan struct{}
	stopOnce sync.Once
}

// NewTelegramForwarder creates a forwarder and starts relaying bus events.
func NewTelegramForwarder(api TelegramAPI, bus *Bus, chatID int64) *TelegramForwarder {
	f := &TelegramForwarder{
		api:      api,
		bus:      bus,
		chatID:   chatID,
		messages: make(map[string]int),
		done:     make(chan struct{}),
	}

	events, unsubscribe := bus.Subscribe()
	go f.loop(events, unsubscribe)

	return f
}

func (f *TelegramForwarder) loop(events <-chan Event, unsubscribe func()) {
	defer unsubscribe()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			switch event.Type {
			case "request":
				f.send(event)
			case "withdraw":
				f.edit(event.CallID, "⏱️ Withdrawn")
			}
		case <-f.done:
			return
		}
	}
}

func (f *TelegramForwarder) send(event Event) {
	q := event.Question
	if q == nil {
		return
	}
	if q.Kind != QuestionApprove && q.Kind != QuestionYesNo {
		return
	}

	text := "🔐 *Approval Required*\n\n" + q.Prompt
	if q.Warning != "" {
		text += fmt.Sprintf("\n\n⚠️ %s", q.Warning)
	}

	approveLabel, denyLabel := "✅ Approve", "❌ Deny"
	if q.Kind == QuestionYesNo {
		approveLabel, denyLabel = "Yes", "No"
	}

	msg := tgbotapi.NewMessage(f.chatID, text)
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(approveLabel, "cq_"+q.CallID+"_approve"),
			tgbotapi.NewInlineKeyboardButtonData(denyLabel, "cq_"+q.CallID+"_deny"),
		),
	)

	sent, err := f.api.Send(msg)
	if err != nil {
		log.Error().Err(err).Str("callId", q.CallID).Msg("Failed to send approval request")
		return
	}

	f.mu.Lock()
	f.messages[q.CallID] = sent.MessageID
	f.mu.Unlock()

	log.Info().
		Str("callId", q.CallID).
		Int("message_id", sent.MessageID).
		Msg("Approval request sent to Telegram")
}

// HandleCallback resolves the question referenced by an inline-button
// callback. Non-approval callbacks are ignored.
func (f *TelegramForwarder) HandleCallback(callback *tgbotapi.CallbackQuery) error {
	if callback == nil {
		return fmt.Errorf("callback is nil")
	}

	data := callback.Data
	if !strings.HasPrefix(data, "cq_") {
		return nil
	}

	var callID string
	var approved bool
	switch {
	case strings.HasSuffix(data, "_approve"):
		callID = strings.TrimSuffix(strings.TrimPrefix(data, "cq_"), "_approve")
		approved = true
	case strings.HasSuffix(data, "_deny"):
		callID = strings.TrimSuffix(strings.TrimPrefix(data, "cq_"), "_deny")
	default:
		return nil
	}

	actor := "@" + callback.From.UserName

	err := f.bus.Resolve(callID, Answer{
		Approved: approved,
		Actor:    actor,
		Reason:   fmt.Sprintf("answered by %s", actor),
	})
	if err != nil {
		f.answerCallback(callback.ID, "This approval request has expired")
		return nil
	}

	if approved {
		f.answerCallback(callback.ID, "✅ Approved")
		f.edit(callID, fmt.Sprintf("✅ *Approved* by %s", actor))
	} else {
		f.answerCallback(callback.ID, "❌ Denied")
		f.edit(callID, fmt.Sprintf("❌ *Denied* by %s", actor))
	}

	return nil
}

func (f *TelegramForwarder) edit(callID string, text string) {
	f.mu.Lock()
	messageID, ok := f.messages[callID]
	if ok {
		delete(f.messages, callID)
	}
	f.mu.Unlock()

	if !ok {
		return
	}

	edit := tgbotapi.NewEditMessageText(f.chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if _, err := f.api.Send(edit); err != nil {
		log.Error().Err(err).Int("message_id", messageID).Msg("Failed to update approval message")
	}
}

func (f *TelegramForwarder) answerCallback(callbackID string, text string) {
	if _, err := f.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Error().Err(err).Str("callback_id", callbackID).Msg("Failed to answer callback")
	}
}

// Stop stops relaying bus events.
func (f *TelegramForwarder) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}
