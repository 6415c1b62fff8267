package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/session"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot"
	"github.com/Apurv-Arya/Advanced-Approver-Bot/internal/userbot/userbottest"
)

const operatorID int64 = 42

func newTestManager(t *testing.T, client *userbottest.Client) (*Manager, *session.Registry) {
	t.Helper()
	registry := session.NewRegistry()
	connector := &userbottest.Connector{Clients: []*userbottest.Client{client}}
	return NewManager(registry, connector, DefaultTimeout, nil), registry
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{
		Account:  userbot.Account{ID: 9, FirstName: "Alice"},
		Code:     "12345",
		CodeHash: "hash-1",
	}
	m, registry := newTestManager(t, fc)

	reply := m.Begin(ctx, operatorID)
	require.Contains(t, reply, "phone number")
	require.True(t, m.Active(operatorID))

	reply = m.HandleText(ctx, operatorID, "+15551234567")
	require.Contains(t, reply, "login code has been sent")

	reply = m.HandleText(ctx, operatorID, "12345")
	require.Contains(t, reply, "Login successful")
	require.Contains(t, reply, "Alice")
	require.False(t, m.Active(operatorID))

	sess, ok := registry.Get(operatorID)
	require.True(t, ok)
	require.Equal(t, int64(9), sess.Account.ID)
}

func TestLoginWithSecondFactor(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{
		Account:  userbot.Account{FirstName: "Bob"},
		Code:     "12345",
		CodeHash: "hash-1",
		Password: "hunter2",
	}
	m, registry := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	m.HandleText(ctx, operatorID, "+15551234567")

	reply := m.HandleText(ctx, operatorID, "12345")
	require.Contains(t, reply, "2FA")
	require.True(t, m.Active(operatorID))

	reply = m.HandleText(ctx, operatorID, "hunter2")
	require.Contains(t, reply, "Login successful")

	_, ok := registry.Get(operatorID)
	require.True(t, ok)
}

func TestWrongPasswordResetsConversation(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{Code: "12345", CodeHash: "h", Password: "hunter2"}
	m, registry := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	m.HandleText(ctx, operatorID, "+15551234567")
	m.HandleText(ctx, operatorID, "12345")

	reply := m.HandleText(ctx, operatorID, "wrong")
	require.Contains(t, reply, "Incorrect password")
	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)

	_, ok := registry.Get(operatorID)
	require.False(t, ok)
}

func TestInvalidPhoneResetsConversation(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	m, _ := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	reply := m.HandleText(ctx, operatorID, "not-a-phone")
	require.Contains(t, reply, "Invalid phone number")
	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)
}

func TestInvalidCodeResetsConversation(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{Code: "12345", CodeHash: "h"}
	m, _ := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	m.HandleText(ctx, operatorID, "+15551234567")

	reply := m.HandleText(ctx, operatorID, "00000")
	require.Contains(t, reply, "Invalid or expired code")
	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)
}

func TestTransportErrorDuringCodeRequest(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{RequestCodeErr: errors.New("connection reset")}
	m, _ := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	reply := m.HandleText(ctx, operatorID, "+15551234567")
	require.Contains(t, reply, "An error occurred")
	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)
}

func TestDuplicateLoginRejected(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	m, _ := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	reply := m.Begin(ctx, operatorID)
	require.Contains(t, reply, "already in progress")
}

func TestConcurrentLoginsYieldOneConversation(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	m, _ := newTestManager(t, fc)

	const n = 8
	replies := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i] = m.Begin(ctx, operatorID)
		}(i)
	}
	wg.Wait()

	started := 0
	for _, r := range replies {
		if strings.Contains(r, "Starting Login Process") {
			started++
		}
	}
	require.Equal(t, 1, started)
	require.True(t, m.Active(operatorID))
}

func TestLoginWithValidSession(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	m, registry := newTestManager(t, fc)

	existing := &userbottest.Client{Authorized: true}
	registry.Put(&session.Session{OperatorID: operatorID, Client: existing})

	reply := m.Begin(ctx, operatorID)
	require.Contains(t, reply, "already logged in")
	require.False(t, m.Active(operatorID))
}

func TestLoginReplacesStaleSession(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	m, registry := newTestManager(t, fc)

	stale := &userbottest.Client{Authorized: false}
	registry.Put(&session.Session{OperatorID: operatorID, Client: stale})

	reply := m.Begin(ctx, operatorID)
	require.Contains(t, reply, "phone number")
	require.True(t, stale.Disconnected)

	_, ok := registry.Get(operatorID)
	require.False(t, ok)
}

func TestConversationTimeout(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	registry := session.NewRegistry()
	connector := &userbottest.Connector{Clients: []*userbottest.Client{fc}}

	notified := make(chan string, 1)
	m := NewManager(registry, connector, 20*time.Millisecond, func(id int64, text string) {
		require.Equal(t, operatorID, id)
		notified <- text
	})

	m.Begin(ctx, operatorID)
	require.True(t, m.Active(operatorID))

	select {
	case text := <-notified:
		require.Contains(t, text, "timed out")
	case <-time.After(time.Second):
		t.Fatal("timeout notice never arrived")
	}
	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)
}

func TestHandleTextWithoutConversation(t *testing.T) {
	fc := &userbottest.Client{}
	m, _ := newTestManager(t, fc)

	require.Equal(t, "", m.HandleText(context.Background(), operatorID, "hello"))
}

func TestCancelDuringSignInDoesNotInstallSession(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{
		Account:  userbot.Account{FirstName: "Alice"},
		Code:     "12345",
		CodeHash: "h",
	}
	entered := make(chan struct{})
	release := make(chan struct{})
	fc.SignInHook = func() {
		close(entered)
		<-release
	}
	m, registry := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	m.HandleText(ctx, operatorID, "+15551234567")

	replies := make(chan string, 1)
	go func() { replies <- m.HandleText(ctx, operatorID, "12345") }()

	<-entered
	m.Cancel(operatorID)
	require.True(t, fc.Disconnected)
	close(release)

	reply := <-replies
	require.Contains(t, reply, "cancelled")
	require.NotContains(t, reply, "Login successful")

	_, ok := registry.Get(operatorID)
	require.False(t, ok)
	require.False(t, m.Active(operatorID))
}

func TestConnectFailureReleasesHandle(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{ConnectErr: errors.New("dc unreachable")}
	m, _ := newTestManager(t, fc)

	reply := m.Begin(ctx, operatorID)
	require.Contains(t, reply, "An error occurred")
	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)
}

func TestCancelReleasesHandle(t *testing.T) {
	ctx := context.Background()
	fc := &userbottest.Client{}
	m, _ := newTestManager(t, fc)

	m.Begin(ctx, operatorID)
	m.Cancel(operatorID)

	require.False(t, m.Active(operatorID))
	require.True(t, fc.Disconnected)
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "idle", PhaseIdle.String())
	require.Equal(t, "awaiting_phone", PhaseAwaitingPhone.String())
	require.Equal(t, "awaiting_code", PhaseAwaitingCode.String())
	require.Equal(t, "awaiting_password", PhaseAwaitingPassword.String())
}
