package userbot

// ChatKind classifies a dialog peer. Only groups and channels can carry
// pending join requests.
type ChatKind int

const (
	ChatKindOther ChatKind = iota
	ChatKindGroup
	ChatKindChannel
)

// Account is the profile of the operator's own user account.
type Account struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Phone     string
}

// Chat is a resolved channel or group handle.
type Chat struct {
	ID    int64
	Title string
	Kind  ChatKind
}

// Dialog is one entry of the account's dialog list.
type Dialog struct {
	Chat Chat
}

// Capability is a tri-state privilege probe: a privilege can be
// inapplicable for the peer kind, absent, or present.
type Capability int

const (
	CapabilityNotApplicable Capability = iota
	CapabilityAbsent
	CapabilityPresent
)

// Privileges describes the operator's own rights in a chat.
type Privileges struct {
	Invite Capability
}

// SentCode correlates a requested login code with the later sign-in
// attempt.
type SentCode struct {
	PhoneCodeHash string
}

// JoinRequest is one pending membership request awaiting approval.
type JoinRequest struct {
	ChatID int64
	UserID int64
}
