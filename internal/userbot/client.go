// Package userbot defines the contract with the chat platform's user-account
// client: the handle the bot drives on the operator's behalf once they log
// in. Production uses the MTProto-backed implementation in internal/mtproto;
// tests use the fake in userbottest.
package userbot

import "context"

// Client is a single connection acting as the operator's personal account.
// A handle starts unauthenticated; the login flow walks it through
// RequestLoginCode / SignIn / VerifySecondFactor.
type Client interface {
	Connect(ctx context.Context) error

	// RequestLoginCode asks the platform to deliver a login code for the
	// given phone number. Returns ErrPhoneInvalid for a malformed or
	// unknown number.
	RequestLoginCode(ctx context.Context, phone string) (SentCode, error)

	// SignIn exchanges phone, code and the SentCode correlation for an
	// authorized account. Returns ErrSecondFactorRequired when the account
	// has 2FA enabled, ErrCodeInvalid or ErrCodeExpired for bad codes.
	SignIn(ctx context.Context, phone, code string, sent SentCode) (Account, error)

	// VerifySecondFactor completes a 2FA sign-in. Returns
	// ErrPasswordInvalid for a wrong password.
	VerifySecondFactor(ctx context.Context, password string) (Account, error)

	IsAuthorized(ctx context.Context) (bool, error)

	// Dialogs returns a lazy, one-shot iterator over the account's dialog
	// list.
	Dialogs(ctx context.Context) DialogIterator

	ResolveChat(ctx context.Context, chatID int64) (Chat, error)

	// MembershipPrivileges reports the operator's own rights in chat.
	MembershipPrivileges(ctx context.Context, chat Chat) (Privileges, error)

	// ListJoinRequests fetches up to limit pending join requests for chat.
	// A non-nil returned cursor resumes the listing at the next page.
	ListJoinRequests(ctx context.Context, chat Chat, limit int, cursor *string) ([]JoinRequest, *string, error)

	// ApproveJoinRequest approves a single pending request. A rate-limit
	// signal from the platform surfaces as *RateLimitError.
	ApproveJoinRequest(ctx context.Context, chat Chat, userID int64) error

	Disconnect() error

	// LogOut invalidates the remote session before the handle is dropped,
	// so no session artifact survives a /logout.
	LogOut(ctx context.Context) error
}

// DialogIterator walks the dialog list sql.Rows style: Next advances,
// Dialog reads the current entry, Err reports the enumeration failure
// after Next returns false. Not restartable.
type DialogIterator interface {
	Next(ctx context.Context) bool
	Dialog() Dialog
	Err() error
}

// Connector opens fresh, unauthenticated handles. The login flow opens
// exactly one handle per conversation.
type Connector interface {
	Open(ctx context.Context) (Client, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Client, error)

func (f ConnectorFunc) Open(ctx context.Context) (Client, error) { return f(ctx) }
