package auth

import (
	"time"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// Phase is the position of a login conversation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingPhone
	PhaseAwaitingCode
	PhaseAwaitingPassword
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingPhone:
		return "awaiting_phone"
	case PhaseAwaitingCode:
		return "awaiting_code"
	case PhaseAwaitingPassword:
		return "awaiting_password"
	default:
		return "idle"
	}
}

// conversation is the in-progress login of one operator. The Manager map
// is its single owner; at most one exists per operator.
type conversation struct {
	operatorID int64
	phase      Phase
	phone      string
	sent       userbot.SentCode
	client     userbot.Client
	timer      *time.Timer
	busy       bool // an RPC for this conversation is in flight
}
