package mtproto

import (
	"context"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog/log"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

const dialogPageSize = 100

// Dialogs pages through the account's dialog list lazily, caching every
// chat and user entity it sees on the way.
func (c *Client) Dialogs(ctx context.Context) userbot.DialogIterator {
	return &dialogIter{c: c, offsetPeer: &tg.InputPeerEmpty{}}
}

type dialogIter struct {
	c   *Client
	buf []userbot.Dialog
	cur userbot.Dialog
	err error

	done       bool
	offsetDate int
	offsetID   int
	offsetPeer tg.InputPeerClass
}

func (it *dialogIter) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for len(it.buf) == 0 {
		if it.done {
			return false
		}
		if err := it.fetch(ctx); err != nil {
			it.err = err
			return false
		}
	}
	it.cur = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

func (it *dialogIter) Dialog() userbot.Dialog { return it.cur }

func (it *dialogIter) Err() error { return it.err }

func (it *dialogIter) fetch(ctx context.Context) error {
	res, err := it.c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      dialogPageSize,
		OffsetDate: it.offsetDate,
		OffsetID:   it.offsetID,
		OffsetPeer: it.offsetPeer,
	})
	if err != nil {
		return wrapRPC("get dialogs", err)
	}

	var (
		dialogs  []tg.DialogClass
		chats    []tg.ChatClass
		users    []tg.UserClass
		messages []tg.MessageClass
	)
	switch d := res.(type) {
	case *tg.MessagesDialogs:
		dialogs, chats, users, messages = d.Dialogs, d.Chats, d.Users, d.Messages
		it.done = true
	case *tg.MessagesDialogsSlice:
		dialogs, chats, users, messages = d.Dialogs, d.Chats, d.Users, d.Messages
		if len(dialogs) < dialogPageSize {
			it.done = true
		}
	default:
		it.done = true
		return nil
	}

	it.c.registerChats(chats)
	it.c.registerUsers(users)

	for _, dc := range dialogs {
		d, ok := dc.(*tg.Dialog)
		if !ok {
			continue
		}
		var id int64
		switch p := d.Peer.(type) {
		case *tg.PeerChat:
			id = p.ChatID
		case *tg.PeerChannel:
			id = p.ChannelID
		default:
			continue
		}
		if ent := it.c.entity(id); ent != nil {
			it.buf = append(it.buf, userbot.Dialog{Chat: ent.chat})
		}
	}

	if it.done || len(dialogs) == 0 {
		it.done = true
		return nil
	}

	if !it.advance(dialogs, messages) {
		log.Warn().Msg("dialog pagination offset lost, stopping enumeration early")
		it.done = true
	}
	return nil
}

// advance rebuilds the offset triple from the last dialog of the page and
// reports whether the next page can be requested. A missing top-message
// date is tolerated (the peer and message id offsets still page correctly);
// only a peer that cannot be rebuilt stops enumeration, as re-requesting
// the same page would loop forever.
func (it *dialogIter) advance(dialogs []tg.DialogClass, messages []tg.MessageClass) bool {
	last, ok := dialogs[len(dialogs)-1].(*tg.Dialog)
	if !ok {
		return false
	}
	it.offsetID = last.TopMessage
	it.offsetDate = messageDate(messages, last.TopMessage)
	it.offsetPeer = it.inputPeer(last.Peer)
	return it.offsetPeer != nil
}

func (it *dialogIter) inputPeer(peer tg.PeerClass) tg.InputPeerClass {
	switch p := peer.(type) {
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}
	case *tg.PeerChannel:
		if ent := it.c.entity(p.ChannelID); ent != nil {
			return ent.peer
		}
	case *tg.PeerUser:
		if hash, ok := it.c.userHash(p.UserID); ok {
			return &tg.InputPeerUser{UserID: p.UserID, AccessHash: hash}
		}
	}
	return nil
}

func messageDate(messages []tg.MessageClass, id int) int {
	for _, mc := range messages {
		if m, ok := mc.(*tg.Message); ok && m.ID == id {
			return m.Date
		}
	}
	return 0
}
