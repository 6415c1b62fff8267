// Package bot routes inbound Telegram updates to the login flow, the
// eligibility scan and the approval pipeline.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/approve"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/auth"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/session"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

const helpText = `Welcome to the Join Request Approver Bot!

This bot can help you approve pending join requests for your channels and groups.

Available Commands:
▶️ /login - Log in with your user account.
✅ /approve - Approve join requests after logging in.
⏹️ /logout - Log out and delete your session.

⚠️ IMPORTANT: This bot logs into your personal account to perform administrative actions. Only run it on a server you trust.`

// callbackPrefix tags selection-menu buttons; the rest of the payload is
// an opaque per-menu token.
const callbackPrefix = "approve_"

// sender is the slice of the Telegram bot API the handlers need.
// *tgbotapi.BotAPI satisfies it; tests substitute a recorder.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type BotService struct {
	botAPI   *tgbotapi.BotAPI
	api      sender
	registry *session.Registry
	auth     *auth.Manager
	pipeline *approve.Pipeline

	mu         sync.Mutex
	selections map[int64]*selection
}

func New(botAPI *tgbotapi.BotAPI, registry *session.Registry, authManager *auth.Manager, pipeline *approve.Pipeline) *BotService {
	b := newService(botAPI, registry, authManager, pipeline)
	b.botAPI = botAPI
	return b
}

func newService(api sender, registry *session.Registry, authManager *auth.Manager, pipeline *approve.Pipeline) *BotService {
	return &BotService{
		api:        api,
		registry:   registry,
		auth:       authManager,
		pipeline:   pipeline,
		selections: make(map[int64]*selection),
	}
}

// Start consumes updates until the channel closes. Every update runs on
// its own goroutine; per-operator ordering is enforced by the auth
// manager and the registry, not by the loop, so one operator's slow RPC
// never stalls another's.
func (b *BotService) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.botAPI.GetUpdatesChan(u)

	for update := range updates {
		go b.handleUpdate(context.Background(), update)
	}
}

// Notify pushes a plain message to an operator outside a request/reply
// exchange (login timeout notices).
func (b *BotService) Notify(operatorID int64, text string) {
	b.reply(operatorID, text)
}

func (b *BotService) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *BotService) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	operatorID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.reply(chatID, helpText)
	case "login":
		b.reply(chatID, b.auth.Begin(ctx, operatorID))
	case "approve":
		b.handleApprove(ctx, chatID, operatorID)
	case "logout":
		b.handleLogout(ctx, chatID, operatorID)
	default:
		if msg.IsCommand() {
			return
		}
		// Free text feeds the login conversation only while one is
		// pending; anything else is ignored.
		if b.auth.Active(operatorID) {
			b.reply(chatID, b.auth.HandleText(ctx, operatorID, msg.Text))
		}
	}
}

func (b *BotService) handleApprove(ctx context.Context, chatID, operatorID int64) {
	sess, ok := b.registry.Get(operatorID)
	if !ok {
		b.reply(chatID, "You need to /login first.")
		return
	}

	b.reply(chatID, "⏳ Fetching your chats, please wait...")

	chats, err := approve.Eligible(ctx, sess.Client)
	if err != nil {
		log.Error().Err(err).Int64("operator", operatorID).Msg("eligibility scan failed")
		if errors.Is(err, userbot.ErrSessionRevoked) {
			b.registry.Remove(operatorID)
			b.reply(chatID, "Your session has expired. Please /login again.")
			return
		}
		b.reply(chatID, fmt.Sprintf("An error occurred while fetching chats: %v", err))
		return
	}

	if len(chats) == 0 {
		b.reply(chatID, "Couldn't find any channels or groups where you have permission to approve members.")
		return
	}

	sel := &selection{chats: make(map[string]approve.EligibleChat, len(chats))}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(chats))
	for _, c := range chats {
		token := uuid.New().String()
		sel.chats[token] = c
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.Title, callbackPrefix+token),
		))
	}

	b.mu.Lock()
	b.selections[operatorID] = sel
	b.mu.Unlock()

	menu := tgbotapi.NewMessage(chatID, "Select a chat to approve join requests:")
	menu.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(menu); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("failed to send selection menu")
	}
}

func (b *BotService) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.From == nil || !strings.HasPrefix(q.Data, callbackPrefix) {
		return
	}
	operatorID := q.From.ID
	token := strings.TrimPrefix(q.Data, callbackPrefix)

	sess, ok := b.registry.Get(operatorID)
	if !ok {
		b.answerAlert(q.ID, "Your session has expired. Please /login again.")
		return
	}

	// The token must belong to this operator's own pending menu; a stale
	// or foreign callback is rejected without touching anything.
	b.mu.Lock()
	sel := b.selections[operatorID]
	var chat approve.EligibleChat
	found := false
	if sel != nil {
		chat, found = sel.chats[token]
		if found {
			delete(b.selections, operatorID)
		}
	}
	b.mu.Unlock()

	if !found {
		b.answerAlert(q.ID, "That menu is no longer valid. Send /approve again.")
		return
	}

	b.answer(q.ID)

	if q.Message == nil {
		return
	}
	msgChatID := q.Message.Chat.ID
	msgID := q.Message.MessageID
	b.edit(msgChatID, msgID, "⏳ Processing...\nFetching and approving requests. This may take a moment.")

	run, err := b.pipeline.ApproveAll(ctx, sess.Client, chat.ID)
	if err != nil {
		log.Error().Err(err).Int64("operator", operatorID).Int64("chat", chat.ID).Msg("approval run failed")
		if errors.Is(err, userbot.ErrSessionRevoked) {
			b.registry.Remove(operatorID)
			b.edit(msgChatID, msgID, "Your session has expired. Please /login again.")
			return
		}
		b.edit(msgChatID, msgID, fmt.Sprintf("❌ Error: could not process approvals.\n%v", err))
		return
	}

	if run.Approved == 0 && run.Failed == 0 {
		b.edit(msgChatID, msgID, "✅ No pending join requests found for the selected chat.")
		return
	}
	b.edit(msgChatID, msgID, fmt.Sprintf("Approval Complete!\n\n✅ Approved: %d\n❌ Failed: %d", run.Approved, run.Failed))
}

func (b *BotService) handleLogout(ctx context.Context, chatID, operatorID int64) {
	b.auth.Cancel(operatorID)

	b.mu.Lock()
	delete(b.selections, operatorID)
	b.mu.Unlock()

	if b.registry.Logout(ctx, operatorID) {
		log.Info().Int64("operator", operatorID).Msg("logged out")
		b.reply(chatID, "You have been successfully logged out.")
		return
	}
	b.reply(chatID, "You are not logged in.")
}

func (b *BotService) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("failed to send message")
	}
}

func (b *BotService) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		log.Error().Err(err).Int64("chat", chatID).Msg("failed to edit message")
	}
}

func (b *BotService) answer(callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		log.Warn().Err(err).Msg("failed to answer callback")
	}
}

func (b *BotService) answerAlert(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		log.Warn().Err(err).Msg("failed to answer callback")
	}
}
