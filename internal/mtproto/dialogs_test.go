package mtproto

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/require"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
)

func newCachedClient() *Client {
	return &Client{
		chats: map[int64]*chatEntity{
			100: {
				chat: userbot.Chat{ID: 100, Title: "My Channel", Kind: userbot.ChatKindChannel},
				peer: &tg.InputPeerChannel{ChannelID: 100, AccessHash: 7},
			},
		},
		users: map[int64]int64{5: 9},
	}
}

func TestAdvanceToleratesMissingTopMessageDate(t *testing.T) {
	it := &dialogIter{c: newCachedClient()}
	dialogs := []tg.DialogClass{
		&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 100}, TopMessage: 41},
	}

	// No messages in the response, so the date offset cannot be rebuilt;
	// pagination must still continue off the peer and message id.
	require.True(t, it.advance(dialogs, nil))
	require.Equal(t, 41, it.offsetID)
	require.Zero(t, it.offsetDate)
	require.Equal(t, &tg.InputPeerChannel{ChannelID: 100, AccessHash: 7}, it.offsetPeer)
}

func TestAdvancePicksUpTopMessageDate(t *testing.T) {
	it := &dialogIter{c: newCachedClient()}
	dialogs := []tg.DialogClass{
		&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 100}, TopMessage: 41},
	}
	messages := []tg.MessageClass{
		&tg.Message{ID: 41, Date: 1700000000},
	}

	require.True(t, it.advance(dialogs, messages))
	require.Equal(t, 1700000000, it.offsetDate)
}

func TestAdvanceStopsWhenPeerUnknown(t *testing.T) {
	it := &dialogIter{c: newCachedClient()}
	dialogs := []tg.DialogClass{
		&tg.Dialog{Peer: &tg.PeerChannel{ChannelID: 999}, TopMessage: 41},
	}

	require.False(t, it.advance(dialogs, nil))
}

func TestInputPeerFromCaches(t *testing.T) {
	it := &dialogIter{c: newCachedClient()}

	require.Equal(t, &tg.InputPeerChat{ChatID: 12}, it.inputPeer(&tg.PeerChat{ChatID: 12}))
	require.Equal(t, &tg.InputPeerUser{UserID: 5, AccessHash: 9}, it.inputPeer(&tg.PeerUser{UserID: 5}))
	require.Nil(t, it.inputPeer(&tg.PeerUser{UserID: 77}))
}
