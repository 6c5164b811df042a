package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
)

// DialFunc opens the raw network connection to the server
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Reader fetches raw messages over IMAP with go-imap v2
type Reader struct {
	settings Settings
	logger   *zap.Logger
	dial     DialFunc
}

// NewReader creates a new IMAP mailbox reader
func NewReader(settings Settings, logger *zap.Logger) *Reader {
	dialer := &net.Dialer{Timeout: settings.DialTimeout}
	return &Reader{
		settings: settings,
		logger:   logger,
		dial:     dialer.DialContext,
	}
}

// WithDialer replaces the function used to open connections
func (r *Reader) WithDialer(dial DialFunc) *Reader {
	r.dial = dial
	return r
}

// FetchBatch connects, authenticates, selects folder read-only and returns the
// first limit messages in ascending UID order. The session is always released
// before returning. Any error discards the whole batch.
func (r *Reader) FetchBatch(ctx context.Context, folder string, limit int) ([]core.RawMessage, error) {
	client, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}

	// Cancelling ctx closes the connection, which unblocks any pending command
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()
	defer r.release(ctx, client)

	if err := r.authenticate(client); err != nil {
		return nil, ctxErr(ctx, err)
	}

	messages, err := r.fetch(client, folder, limit)
	if err != nil {
		return nil, ctxErr(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, core.Wrap(core.ErrMailbox, "fetching batch", err)
	}
	return messages, nil
}

func (r *Reader) fetch(client *imapclient.Client, folder string, limit int) ([]core.RawMessage, error) {
	selected, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, core.Wrap(core.ErrMailbox, fmt.Sprintf("selecting %s", folder), err)
	}
	r.logger.Debug("Mailbox selected",
		zap.String("folder", folder),
		zap.Uint32("messages", selected.NumMessages))

	if selected.NumMessages == 0 {
		return []core.RawMessage{}, nil
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, core.Wrap(core.ErrMailbox, "listing messages", err)
	}

	uids := searchData.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}
	if len(uids) == 0 {
		return []core.RawMessage{}, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return nil, core.Wrap(core.ErrMailbox, "fetching messages", err)
	}

	bodies := make(map[imap.UID][]byte, len(buffers))
	for _, buf := range buffers {
		bodies[buf.UID] = buf.FindBodySection(bodySection)
	}

	messages := make([]core.RawMessage, 0, len(uids))
	for _, uid := range uids {
		body, ok := bodies[uid]
		if !ok {
			// Expunged between SEARCH and FETCH
			r.logger.Warn("Message vanished before it could be fetched",
				zap.String("folder", folder),
				zap.Uint32("uid", uint32(uid)))
			continue
		}
		messages = append(messages, core.RawMessage{
			UID:     uint32(uid),
			Folder:  folder,
			Account: r.settings.Account,
			Bytes:   body,
		})
	}

	r.logger.Info("Fetched messages",
		zap.String("folder", folder),
		zap.Int("count", len(messages)))
	return messages, nil
}

// connect opens the transport according to the configured security
func (r *Reader) connect(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(r.settings.Host, strconv.Itoa(r.settings.Port))
	tlsConfig := &tls.Config{ServerName: r.settings.Host}
	options := &imapclient.Options{TLSConfig: tlsConfig}

	conn, err := r.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, core.Wrap(core.ErrMailbox, fmt.Sprintf("connecting to IMAP %s", addr), ctxErr(ctx, err))
	}

	switch r.settings.Security {
	case SecurityNone:
		return imapclient.New(conn, options), nil
	case SecurityStartTLS:
		client, err := imapclient.NewStartTLS(conn, options)
		if err != nil {
			_ = conn.Close()
			return nil, core.Wrap(core.ErrMailbox, fmt.Sprintf("STARTTLS with %s", addr), err)
		}
		return client, nil
	default:
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, core.Wrap(core.ErrMailbox, fmt.Sprintf("TLS handshake with %s", addr), ctxErr(ctx, err))
		}
		return imapclient.New(tlsConn, options), nil
	}
}

func (r *Reader) authenticate(client *imapclient.Client) error {
	var err error
	switch r.settings.Auth {
	case AuthPlain:
		err = client.Authenticate(sasl.NewPlainClient("", r.settings.Account, r.settings.Password))
	case AuthOAuthBearer:
		if r.settings.TokenSource == nil {
			return core.Errorf(core.ErrAuth, "authenticating", "no OAuth2 token source configured")
		}
		token, tokenErr := r.settings.TokenSource.Token()
		if tokenErr != nil {
			return core.Wrap(core.ErrAuth, "obtaining OAuth2 access token", tokenErr)
		}
		err = client.Authenticate(sasl.NewOAuthBearerClient(&sasl.OAuthBearerOptions{
			Username: r.settings.Account,
			Token:    token.AccessToken,
			Host:     r.settings.Host,
			Port:     r.settings.Port,
		}))
	default:
		err = client.Login(r.settings.Account, r.settings.Password).Wait()
	}

	if err != nil {
		var imapErr *imap.Error
		if errors.As(err, &imapErr) {
			return core.Wrap(core.ErrAuth, fmt.Sprintf("authenticating %s", r.settings.Account), err)
		}
		return core.Wrap(core.ErrMailbox, fmt.Sprintf("authenticating %s", r.settings.Account), err)
	}
	return nil
}

// release logs out when the connection is still usable and always closes it
func (r *Reader) release(ctx context.Context, client *imapclient.Client) {
	if ctx.Err() == nil {
		if err := client.Logout().Wait(); err != nil {
			r.logger.Debug("IMAP logout failed", zap.Error(err))
		}
	}
	if err := client.Close(); err != nil {
		r.logger.Debug("Closing IMAP connection", zap.Error(err))
	}
}

// ctxErr attaches the context error when the context ended, since a closed
// connection is only the symptom
func ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}
