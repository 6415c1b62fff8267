// Package auth drives the multi-step login of an operator's personal
// account: phone number, login code, then an optional 2FA password.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/session"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// DefaultTimeout is how long a conversation may sit in any awaiting phase
// before it is abandoned.
const DefaultTimeout = 5 * time.Minute

// NotifyFunc pushes a message to an operator outside a request/reply
// exchange, used for timeout notices.
type NotifyFunc func(operatorID int64, text string)

// Manager owns every pending login conversation. All methods are safe for
// concurrent use; the per-conversation busy flag keeps one operator's
// messages from interleaving mid-RPC.
type Manager struct {
	registry  *session.Registry
	connector userbot.Connector
	timeout   time.Duration
	notify    NotifyFunc

	mu            sync.Mutex
	conversations map[int64]*conversation
}

func NewManager(registry *session.Registry, connector userbot.Connector, timeout time.Duration, notify NotifyFunc) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if notify == nil {
		notify = func(int64, string) {}
	}
	return &Manager{
		registry:      registry,
		connector:     connector,
		timeout:       timeout,
		notify:        notify,
		conversations: make(map[int64]*conversation),
	}
}

// Active reports whether the operator has a login conversation pending.
func (m *Manager) Active(operatorID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conversations[operatorID]
	return ok
}

// Begin handles /login. A second /login while a conversation is pending is
// rejected rather than spawning a parallel flow; a still-valid session
// short-circuits; otherwise a fresh handle is opened and the operator is
// asked for their phone number.
func (m *Manager) Begin(ctx context.Context, operatorID int64) string {
	m.mu.Lock()
	if _, ok := m.conversations[operatorID]; ok {
		m.mu.Unlock()
		return "⏳ A login is already in progress. Finish it or wait for it to time out."
	}
	conv := &conversation{operatorID: operatorID, phase: PhaseAwaitingPhone}
	m.conversations[operatorID] = conv
	m.mu.Unlock()

	if sess, ok := m.registry.Get(operatorID); ok {
		authorized, err := sess.Client.IsAuthorized(ctx)
		if err == nil && authorized {
			m.drop(operatorID)
			return "✅ You are already logged in."
		}
		log.Info().Int64("operator", operatorID).Msg("existing session no longer valid, re-authenticating")
		m.registry.Remove(operatorID)
	}

	client, err := m.connector.Open(ctx)
	if err == nil {
		if err = client.Connect(ctx); err != nil {
			if derr := client.Disconnect(); derr != nil {
				log.Warn().Err(derr).Int64("operator", operatorID).Msg("disconnect unconnected login client")
			}
		}
	}
	if err != nil {
		m.drop(operatorID)
		log.Error().Err(err).Int64("operator", operatorID).Msg("could not open login client")
		return fmt.Sprintf("An error occurred: %v. Please start again with /login.", err)
	}

	m.mu.Lock()
	conv.client = client
	conv.timer = time.AfterFunc(m.timeout, func() { m.expire(operatorID, conv) })
	m.mu.Unlock()

	return "🚀 Starting Login Process...\n\nPlease enter your phone number (with country code, e.g. +1234567890):"
}

// HandleText advances the operator's conversation with a free-text
// message. Returns the reply to send, or "" when no conversation exists.
func (m *Manager) HandleText(ctx context.Context, operatorID int64, text string) string {
	m.mu.Lock()
	conv, ok := m.conversations[operatorID]
	if !ok {
		m.mu.Unlock()
		return ""
	}
	if conv.busy || conv.client == nil {
		m.mu.Unlock()
		return "⏳ Still working on your previous message, one moment."
	}
	conv.busy = true
	phase := conv.phase
	m.mu.Unlock()

	text = strings.TrimSpace(text)

	switch phase {
	case PhaseAwaitingPhone:
		return m.handlePhone(ctx, conv, text)
	case PhaseAwaitingCode:
		return m.handleCode(ctx, conv, text)
	case PhaseAwaitingPassword:
		return m.handlePassword(ctx, conv, text)
	default:
		return m.fail(operatorID, "Something went wrong. Please start again with /login.")
	}
}

// Cancel abandons any pending conversation, releasing its handle.
func (m *Manager) Cancel(operatorID int64) {
	if conv := m.drop(operatorID); conv != nil && conv.client != nil {
		if err := conv.client.Disconnect(); err != nil {
			log.Warn().Err(err).Int64("operator", operatorID).Msg("disconnect pending login client")
		}
	}
}

func (m *Manager) handlePhone(ctx context.Context, conv *conversation, phone string) string {
	sent, err := conv.client.RequestLoginCode(ctx, phone)
	switch {
	case errors.Is(err, userbot.ErrPhoneInvalid):
		return m.fail(conv.operatorID, "❌ Invalid phone number. Please start again with /login.")
	case err != nil:
		log.Error().Err(err).Int64("operator", conv.operatorID).Str("phase", conv.phase.String()).Msg("request login code")
		return m.fail(conv.operatorID, fmt.Sprintf("An error occurred while requesting a code: %v. Please start again with /login.", err))
	}

	m.advance(conv, PhaseAwaitingCode, func() {
		conv.phone = phone
		conv.sent = sent
	})
	return "A login code has been sent to your Telegram app. Please enter it here:"
}

func (m *Manager) handleCode(ctx context.Context, conv *conversation, code string) string {
	account, err := conv.client.SignIn(ctx, conv.phone, code, conv.sent)
	switch {
	case errors.Is(err, userbot.ErrSecondFactorRequired):
		m.advance(conv, PhaseAwaitingPassword, nil)
		return "Your account has 2FA enabled. Please enter your password:"
	case errors.Is(err, userbot.ErrCodeInvalid), errors.Is(err, userbot.ErrCodeExpired):
		return m.fail(conv.operatorID, "❌ Invalid or expired code. Please start again with /login.")
	case err != nil:
		log.Error().Err(err).Int64("operator", conv.operatorID).Str("phase", conv.phase.String()).Msg("sign in")
		return m.fail(conv.operatorID, fmt.Sprintf("An error occurred during sign in: %v. Please start again with /login.", err))
	}
	return m.commit(conv, account)
}

func (m *Manager) handlePassword(ctx context.Context, conv *conversation, password string) string {
	account, err := conv.client.VerifySecondFactor(ctx, password)
	switch {
	case errors.Is(err, userbot.ErrPasswordInvalid):
		return m.fail(conv.operatorID, "❌ Incorrect password. Please start again with /login.")
	case err != nil:
		log.Error().Err(err).Int64("operator", conv.operatorID).Str("phase", conv.phase.String()).Msg("verify 2FA password")
		return m.fail(conv.operatorID, fmt.Sprintf("An error occurred while checking the password: %v. Please start again with /login.", err))
	}
	return m.commit(conv, account)
}

// advance moves the conversation to the next phase and re-arms the
// timeout. apply, when non-nil, mutates the conversation under the lock.
func (m *Manager) advance(conv *conversation, next Phase, apply func()) {
	m.mu.Lock()
	if apply != nil {
		apply()
	}
	conv.phase = next
	conv.busy = false
	if conv.timer != nil {
		conv.timer.Reset(m.timeout)
	}
	m.mu.Unlock()
}

// commit installs the session and ends the conversation. A conversation
// cancelled while the final RPC was in flight must not produce a session:
// the operator asked to be logged out, so the handle is released instead.
func (m *Manager) commit(conv *conversation, account userbot.Account) string {
	if m.drop(conv.operatorID) == nil {
		if err := conv.client.Disconnect(); err != nil {
			log.Warn().Err(err).Int64("operator", conv.operatorID).Msg("disconnect cancelled login client")
		}
		log.Info().Int64("operator", conv.operatorID).Msg("login cancelled during sign in")
		return "Login was cancelled. Please start again with /login."
	}
	m.registry.Put(&session.Session{
		OperatorID: conv.operatorID,
		Account:    account,
		Client:     conv.client,
	})
	log.Info().Int64("operator", conv.operatorID).Str("username", account.Username).Msg("login successful")
	return fmt.Sprintf("✅ Login successful! Welcome, %s.\nYou can now use the /approve command.", account.FirstName)
}

// fail ends the conversation, releases its handle and returns the
// user-visible reason.
func (m *Manager) fail(operatorID int64, text string) string {
	if conv := m.drop(operatorID); conv != nil && conv.client != nil {
		if err := conv.client.Disconnect(); err != nil {
			log.Warn().Err(err).Int64("operator", operatorID).Msg("disconnect pending login client")
		}
	}
	return text
}

// drop removes the conversation and stops its timer without touching the
// handle.
func (m *Manager) drop(operatorID int64) *conversation {
	m.mu.Lock()
	conv := m.conversations[operatorID]
	delete(m.conversations, operatorID)
	if conv != nil && conv.timer != nil {
		conv.timer.Stop()
	}
	m.mu.Unlock()
	return conv
}

// expire abandons a conversation that saw no qualifying reply within the
// window. A conversation with an RPC in flight is left alone; finishing
// that input either ends it or re-arms the timer.
func (m *Manager) expire(operatorID int64, conv *conversation) {
	m.mu.Lock()
	cur, ok := m.conversations[operatorID]
	if !ok || cur != conv || conv.busy {
		m.mu.Unlock()
		return
	}
	delete(m.conversations, operatorID)
	m.mu.Unlock()

	if conv.client != nil {
		if err := conv.client.Disconnect(); err != nil {
			log.Warn().Err(err).Int64("operator", operatorID).Msg("disconnect timed out login client")
		}
	}
	log.Info().Int64("operator", operatorID).Str("phase", conv.phase.String()).Msg("login conversation timed out")
	m.notify(operatorID, "⌛ Login timed out. Please start again with /login.")
}
