package mailbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-imap/v2/imapserver"
	"github.com/emersion/go-imap/v2/imapserver/imapmemserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

const (
	testUser     = "a@x.com"
	testPassword = "secret"
)

// startServer runs an in-memory IMAP server with an INBOX and an empty Archive folder
func startServer(t *testing.T) (host string, port int) {
	t.Helper()

	memServer := imapmemserver.New()
	user := imapmemserver.NewUser(testUser, testPassword)
	require.NoError(t, user.Create("INBOX", nil))
	require.NoError(t, user.Create("Archive", nil))
	memServer.AddUser(user)

	server := imapserver.New(&imapserver.Options{
		NewSession: func(*imapserver.Conn) (imapserver.Session, *imapserver.GreetingData, error) {
			return memServer.NewSession(), nil, nil
		},
		Caps: imap.CapSet{
			imap.CapIMAP4rev1: {},
			imap.CapIMAP4rev2: {},
		},
		InsecureAuth: true,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	h, p, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port
}

func message(n int) []byte {
	return []byte(fmt.Sprintf("From: sender%d@example.com\r\nSubject: message %d\r\n\r\nbody %d\r\n", n, n, n))
}

// seed appends messages to INBOX through a regular client session
func seed(t *testing.T, host string, port int, count int) {
	t.Helper()

	client, err := imapclient.DialInsecure(net.JoinHostPort(host, strconv.Itoa(port)), nil)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Login(testUser, testPassword).Wait())

	for i := 1; i <= count; i++ {
		b := message(i)
		cmd := client.Append("INBOX", int64(len(b)), nil)
		_, err := cmd.Write(b)
		require.NoError(t, err)
		require.NoError(t, cmd.Close())
		_, err = cmd.Wait()
		require.NoError(t, err)
	}
	require.NoError(t, client.Logout().Wait())
}

type trackingConn struct {
	net.Conn
	closed atomic.Bool
}

func (c *trackingConn) Close() error {
	c.closed.Store(true)
	return c.Conn.Close()
}

type tracker struct {
	mu    sync.Mutex
	conns []*trackingConn
}

func (tr *tracker) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(context.Background(), network, addr)
	if err != nil {
		return nil, err
	}
	tc := &trackingConn{Conn: conn}
	tr.mu.Lock()
	tr.conns = append(tr.conns, tc)
	tr.mu.Unlock()
	return tc, nil
}

func (tr *tracker) allClosed() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, c := range tr.conns {
		if !c.closed.Load() {
			return false
		}
	}
	return len(tr.conns) > 0
}

func newTestReader(host string, port int, password string) (*Reader, *tracker) {
	tr := &tracker{}
	r := NewReader(Settings{
		Host:        host,
		Port:        port,
		Security:    SecurityNone,
		Auth:        AuthLogin,
		Account:     testUser,
		Password:    password,
		DialTimeout: 5 * time.Second,
	}, zap.NewNop()).WithDialer(tr.dial)
	return r, tr
}

func TestFetchBatch_FirstMessagesInOrder(t *testing.T) {
	host, port := startServer(t)
	seed(t, host, port, 5)

	r, tr := newTestReader(host, port, testPassword)
	msgs, err := r.FetchBatch(context.Background(), "INBOX", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	for i, m := range msgs {
		assert.Equal(t, message(i+1), m.Bytes)
		assert.Equal(t, "INBOX", m.Folder)
		assert.Equal(t, testUser, m.Account)
		if i > 0 {
			assert.Greater(t, m.UID, msgs[i-1].UID)
		}
	}
	assert.True(t, tr.allClosed(), "session must be released")
}

func TestFetchBatch_LimitLargerThanFolder(t *testing.T) {
	host, port := startServer(t)
	seed(t, host, port, 2)

	r, _ := newTestReader(host, port, testPassword)
	msgs, err := r.FetchBatch(context.Background(), "INBOX", 20)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestFetchBatch_EmptyFolder(t *testing.T) {
	host, port := startServer(t)

	r, tr := newTestReader(host, port, testPassword)
	msgs, err := r.FetchBatch(context.Background(), "Archive", 20)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.True(t, tr.allClosed())
}

func TestFetchBatch_BadCredentials(t *testing.T) {
	host, port := startServer(t)

	r, tr := newTestReader(host, port, "wrong")
	_, err := r.FetchBatch(context.Background(), "INBOX", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAuth), "got %v", err)
	assert.True(t, tr.allClosed(), "session must be released on error")
}

func TestFetchBatch_UnknownFolder(t *testing.T) {
	host, port := startServer(t)

	r, tr := newTestReader(host, port, testPassword)
	_, err := r.FetchBatch(context.Background(), "Nope", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMailbox), "got %v", err)
	assert.False(t, errors.Is(err, core.ErrAuth))
	assert.True(t, tr.allClosed())
}

func TestFetchBatch_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	r := NewReader(Settings{
		Host:        "127.0.0.1",
		Port:        addr.Port,
		Security:    SecurityNone,
		Account:     testUser,
		DialTimeout: time.Second,
	}, zap.NewNop())
	_, err = r.FetchBatch(context.Background(), "INBOX", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMailbox))
}

func TestFetchBatch_CancelledContextReleasesSession(t *testing.T) {
	host, port := startServer(t)
	seed(t, host, port, 3)

	r, tr := newTestReader(host, port, testPassword)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.FetchBatch(ctx, "INBOX", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Eventually(t, tr.allClosed, time.Second, 10*time.Millisecond)
}

func TestFetchBatch_OAuthBearerWithoutTokenSource(t *testing.T) {
	host, port := startServer(t)

	r, _ := newTestReader(host, port, "")
	r.settings.Auth = AuthOAuthBearer
	_, err := r.FetchBatch(context.Background(), "INBOX", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAuth))
}
