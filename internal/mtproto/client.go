// Package mtproto implements the userbot client over the gotd MTProto
// library. Each handle is one user-account connection with an in-memory
// session, mirroring the handle lifecycle of the login flow: opened on
// /login, committed on success, disconnected on failure or /logout.
package mtproto

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AlekSi/pointer"
	"github.com/gotd/contrib/bg"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

// Connector opens fresh unauthenticated handles.
type Connector struct {
	apiID   int
	apiHash string
}

func NewConnector(apiID int, apiHash string) *Connector {
	return &Connector{apiID: apiID, apiHash: apiHash}
}

func (c *Connector) Open(ctx context.Context) (userbot.Client, error) {
	tc := telegram.NewClient(c.apiID, c.apiHash, telegram.Options{
		SessionStorage: &session.StorageMemory{},
	})
	return &Client{
		client: tc,
		api:    tc.API(),
		chats:  make(map[int64]*chatEntity),
		users:  make(map[int64]int64),
	}, nil
}

// chatEntity is what the adapter remembers about a chat from dialog
// enumeration: enough to build input peers and answer privilege probes
// without another round trip.
type chatEntity struct {
	chat    userbot.Chat
	peer    tg.InputPeerClass
	rights  *tg.ChatAdminRights
	creator bool
}

type Client struct {
	client *telegram.Client
	api    *tg.Client
	stop   bg.StopFunc

	mu    sync.Mutex
	chats map[int64]*chatEntity
	users map[int64]int64 // user id -> access hash
}

var _ userbot.Client = (*Client)(nil)

func (c *Client) Connect(ctx context.Context) error {
	stop, err := bg.Connect(c.client)
	if err != nil {
		return fmt.Errorf("mtproto: connect: %w", err)
	}
	c.stop = stop
	return nil
}

func (c *Client) Disconnect() error {
	if c.stop == nil {
		return nil
	}
	return c.stop()
}

func (c *Client) RequestLoginCode(ctx context.Context, phone string) (userbot.SentCode, error) {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		if tgerr.Is(err, "PHONE_NUMBER_INVALID") {
			return userbot.SentCode{}, userbot.ErrPhoneInvalid
		}
		return userbot.SentCode{}, wrapRPC("send code", err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return userbot.SentCode{}, fmt.Errorf("mtproto: unexpected sent code %T", sent)
	}
	return userbot.SentCode{PhoneCodeHash: code.PhoneCodeHash}, nil
}

func (c *Client) SignIn(ctx context.Context, phone, code string, sent userbot.SentCode) (userbot.Account, error) {
	authz, err := c.client.Auth().SignIn(ctx, phone, code, sent.PhoneCodeHash)
	switch {
	case errors.Is(err, auth.ErrPasswordAuthNeeded):
		return userbot.Account{}, userbot.ErrSecondFactorRequired
	case tgerr.Is(err, "PHONE_CODE_INVALID"):
		return userbot.Account{}, userbot.ErrCodeInvalid
	case tgerr.Is(err, "PHONE_CODE_EXPIRED"):
		return userbot.Account{}, userbot.ErrCodeExpired
	case err != nil:
		return userbot.Account{}, wrapRPC("sign in", err)
	}
	return accountFrom(authz)
}

func (c *Client) VerifySecondFactor(ctx context.Context, password string) (userbot.Account, error) {
	authz, err := c.client.Auth().Password(ctx, password)
	if err != nil {
		if tgerr.Is(err, "PASSWORD_HASH_INVALID") {
			return userbot.Account{}, userbot.ErrPasswordInvalid
		}
		return userbot.Account{}, wrapRPC("check password", err)
	}
	return accountFrom(authz)
}

func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, wrapRPC("auth status", err)
	}
	return status.Authorized, nil
}

func (c *Client) ResolveChat(ctx context.Context, chatID int64) (userbot.Chat, error) {
	if ent := c.entity(chatID); ent != nil {
		return ent.chat, nil
	}
	// Unknown entity: refresh the cache from the dialog list once.
	it := c.Dialogs(ctx)
	for it.Next(ctx) {
	}
	if err := it.Err(); err != nil {
		return userbot.Chat{}, err
	}
	if ent := c.entity(chatID); ent != nil {
		return ent.chat, nil
	}
	return userbot.Chat{}, fmt.Errorf("mtproto: chat %d not found in dialogs", chatID)
}

func (c *Client) MembershipPrivileges(ctx context.Context, chat userbot.Chat) (userbot.Privileges, error) {
	ent := c.entity(chat.ID)
	if ent == nil {
		return userbot.Privileges{}, fmt.Errorf("mtproto: unknown chat %d", chat.ID)
	}
	if ent.chat.Kind == userbot.ChatKindOther {
		return userbot.Privileges{Invite: userbot.CapabilityNotApplicable}, nil
	}
	if ent.creator || (ent.rights != nil && ent.rights.InviteUsers) {
		return userbot.Privileges{Invite: userbot.CapabilityPresent}, nil
	}
	return userbot.Privileges{Invite: userbot.CapabilityAbsent}, nil
}

func (c *Client) ListJoinRequests(ctx context.Context, chat userbot.Chat, limit int, cursor *string) ([]userbot.JoinRequest, *string, error) {
	ent := c.entity(chat.ID)
	if ent == nil {
		return nil, nil, fmt.Errorf("mtproto: unknown chat %d", chat.ID)
	}

	req := &tg.MessagesGetChatInviteImportersRequest{
		Peer:       ent.peer,
		Requested:  true,
		Limit:      limit,
		OffsetUser: &tg.InputUserEmpty{},
	}
	if cursor != nil {
		var date int
		var uid int64
		if _, err := fmt.Sscanf(*cursor, "%d:%d", &date, &uid); err == nil {
			req.OffsetDate = date
			if hash, ok := c.userHash(uid); ok {
				req.OffsetUser = &tg.InputUser{UserID: uid, AccessHash: hash}
			}
		}
	}

	res, err := c.api.MessagesGetChatInviteImporters(ctx, req)
	if err != nil {
		return nil, nil, wrapRPC("list join requests", err)
	}

	c.registerUsers(res.Users)

	out := make([]userbot.JoinRequest, 0, len(res.Importers))
	for _, imp := range res.Importers {
		out = append(out, userbot.JoinRequest{ChatID: chat.ID, UserID: imp.UserID})
	}

	var next *string
	if len(res.Importers) > 0 && len(res.Importers) == limit {
		last := res.Importers[len(res.Importers)-1]
		next = pointer.To(fmt.Sprintf("%d:%d", last.Date, last.UserID))
	}
	return out, next, nil
}

func (c *Client) ApproveJoinRequest(ctx context.Context, chat userbot.Chat, userID int64) error {
	ent := c.entity(chat.ID)
	if ent == nil {
		return fmt.Errorf("mtproto: unknown chat %d", chat.ID)
	}
	hash, _ := c.userHash(userID)
	_, err := c.api.MessagesHideChatJoinRequest(ctx, &tg.MessagesHideChatJoinRequestRequest{
		Approved: true,
		Peer:     ent.peer,
		UserID:   &tg.InputUser{UserID: userID, AccessHash: hash},
	})
	if err != nil {
		return wrapRPC("approve join request", err)
	}
	return nil
}

func (c *Client) LogOut(ctx context.Context) error {
	if _, err := c.api.AuthLogOut(ctx); err != nil {
		return wrapRPC("log out", err)
	}
	return nil
}

func (c *Client) entity(chatID int64) *chatEntity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chats[chatID]
}

func (c *Client) userHash(userID int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	hash, ok := c.users[userID]
	return hash, ok
}

func (c *Client) registerUsers(users []tg.UserClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, uc := range users {
		if u, ok := uc.(*tg.User); ok {
			c.users[u.ID] = u.AccessHash
		}
	}
}

func (c *Client) registerChats(chats []tg.ChatClass) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cc := range chats {
		switch ch := cc.(type) {
		case *tg.Chat:
			ent := &chatEntity{
				chat:    userbot.Chat{ID: ch.ID, Title: ch.Title, Kind: userbot.ChatKindGroup},
				peer:    &tg.InputPeerChat{ChatID: ch.ID},
				creator: ch.Creator,
			}
			if rights, ok := ch.GetAdminRights(); ok {
				ent.rights = &rights
			}
			c.chats[ch.ID] = ent
		case *tg.Channel:
			kind := userbot.ChatKindGroup
			if ch.Broadcast {
				kind = userbot.ChatKindChannel
			}
			ent := &chatEntity{
				chat:    userbot.Chat{ID: ch.ID, Title: ch.Title, Kind: kind},
				peer:    &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
				creator: ch.Creator,
			}
			if rights, ok := ch.GetAdminRights(); ok {
				ent.rights = &rights
			}
			c.chats[ch.ID] = ent
		}
	}
}

func accountFrom(a *tg.AuthAuthorization) (userbot.Account, error) {
	u, ok := a.User.(*tg.User)
	if !ok {
		return userbot.Account{}, fmt.Errorf("mtproto: unexpected user %T in authorization", a.User)
	}
	return userbot.Account{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
		Phone:     u.Phone,
	}, nil
}

// wrapRPC converts platform error codes into the userbot error kinds the
// core dispatches on.
func wrapRPC(op string, err error) error {
	if wait, ok := tgerr.AsFloodWait(err); ok {
		return &userbot.RateLimitError{Wait: wait}
	}
	if tgerr.Is(err, "AUTH_KEY_UNREGISTERED") || tgerr.Is(err, "SESSION_REVOKED") || tgerr.Is(err, "SESSION_EXPIRED") {
		return fmt.Errorf("mtproto: %s: %w", op, userbot.ErrSessionRevoked)
	}
	return fmt.Errorf("mtproto: %s: %w", op, err)
}
