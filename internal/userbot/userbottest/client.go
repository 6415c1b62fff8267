// Package userbottest provides an in-memory userbot.Client for tests.
package userbottest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// Client is a scriptable implementation of userbot.Client. Configure the
// exported fields before use; the zero value accepts any phone starting
// with "+" and rejects every code.
type Client struct {
	mu sync.Mutex

	Account  userbot.Account
	Code     string // login code accepted by SignIn
	CodeHash string // correlation hash handed out by RequestLoginCode
	Password string // non-empty enables the second factor

	DialogList []userbot.Dialog
	DialogsErr error
	Privileges map[int64]userbot.Privileges
	PrivErrs   map[int64]error
	Chats      map[int64]userbot.Chat
	Requests   map[int64][]userbot.JoinRequest

	ConnectErr     error
	RequestCodeErr error
	SignInErr      error
	ResolveErr     error
	ListErr        error

	// SignInHook, when set, runs at the top of SignIn before any state is
	// touched, letting tests hold the call in flight.
	SignInHook func()

	// ApproveErrs queues one error per approval attempt for a user; a nil
	// entry (or an exhausted queue) means the attempt succeeds.
	ApproveErrs map[int64][]error

	Authorized   bool
	Connected    bool
	Disconnected bool
	LoggedOut    bool

	ApprovedUsers []int64
}

var _ userbot.Client = (*Client)(nil)

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.Connected = true
	return nil
}

func (c *Client) RequestLoginCode(ctx context.Context, phone string) (userbot.SentCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.RequestCodeErr != nil {
		return userbot.SentCode{}, c.RequestCodeErr
	}
	if !strings.HasPrefix(phone, "+") {
		return userbot.SentCode{}, userbot.ErrPhoneInvalid
	}
	return userbot.SentCode{PhoneCodeHash: c.CodeHash}, nil
}

func (c *Client) SignIn(ctx context.Context, phone, code string, sent userbot.SentCode) (userbot.Account, error) {
	if c.SignInHook != nil {
		c.SignInHook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SignInErr != nil {
		return userbot.Account{}, c.SignInErr
	}
	if sent.PhoneCodeHash != c.CodeHash {
		return userbot.Account{}, userbot.ErrCodeExpired
	}
	if code != c.Code {
		return userbot.Account{}, userbot.ErrCodeInvalid
	}
	if c.Password != "" {
		return userbot.Account{}, userbot.ErrSecondFactorRequired
	}
	c.Authorized = true
	return c.Account, nil
}

func (c *Client) VerifySecondFactor(ctx context.Context, password string) (userbot.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Password == "" || password != c.Password {
		return userbot.Account{}, userbot.ErrPasswordInvalid
	}
	c.Authorized = true
	return c.Account, nil
}

func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Authorized, nil
}

func (c *Client) Dialogs(ctx context.Context) userbot.DialogIterator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &dialogIter{dialogs: c.DialogList, finalErr: c.DialogsErr}
}

func (c *Client) ResolveChat(ctx context.Context, chatID int64) (userbot.Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ResolveErr != nil {
		return userbot.Chat{}, c.ResolveErr
	}
	chat, ok := c.Chats[chatID]
	if !ok {
		return userbot.Chat{}, fmt.Errorf("userbottest: unknown chat %d", chatID)
	}
	return chat, nil
}

func (c *Client) MembershipPrivileges(ctx context.Context, chat userbot.Chat) (userbot.Privileges, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.PrivErrs[chat.ID]; err != nil {
		return userbot.Privileges{}, err
	}
	return c.Privileges[chat.ID], nil
}

func (c *Client) ListJoinRequests(ctx context.Context, chat userbot.Chat, limit int, cursor *string) ([]userbot.JoinRequest, *string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, nil, c.ListErr
	}
	reqs := c.Requests[chat.ID]
	if len(reqs) > limit {
		reqs = reqs[:limit]
	}
	return reqs, nil, nil
}

func (c *Client) ApproveJoinRequest(ctx context.Context, chat userbot.Chat, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if queue := c.ApproveErrs[userID]; len(queue) > 0 {
		err := queue[0]
		c.ApproveErrs[userID] = queue[1:]
		if err != nil {
			return err
		}
	}
	c.ApprovedUsers = append(c.ApprovedUsers, userID)
	return nil
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Connected = false
	c.Disconnected = true
	return nil
}

func (c *Client) LogOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Authorized = false
	c.LoggedOut = true
	return nil
}

type dialogIter struct {
	dialogs  []userbot.Dialog
	finalErr error
	idx      int
	cur      userbot.Dialog
	err      error
}

func (it *dialogIter) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if it.idx >= len(it.dialogs) {
		it.err = it.finalErr
		return false
	}
	it.cur = it.dialogs[it.idx]
	it.idx++
	return true
}

func (it *dialogIter) Dialog() userbot.Dialog { return it.cur }

func (it *dialogIter) Err() error { return it.err }

// Connector hands out the configured clients in order, reusing the last
// one once the list is exhausted.
type Connector struct {
	mu      sync.Mutex
	Clients []*Client
	Err     error
	Opened  int
}

func (c *Connector) Open(ctx context.Context) (userbot.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	i := c.Opened
	if i >= len(c.Clients) {
		i = len(c.Clients) - 1
	}
	c.Opened++
	return c.Clients[i], nil
}
