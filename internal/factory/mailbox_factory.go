package factory

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/mikey/mailindex/internal/adapters/mailbox"
	"github.com/mikey/mailindex/internal/config"
	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/credential"
)

// SecretSource looks up a secret by key
type SecretSource interface {
	Get(key string) (string, error)
}

// MailboxFactory creates the IMAP mailbox reader
type MailboxFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	secrets func() (SecretSource, error)
}

// NewMailboxFactory creates a new mailbox factory backed by the system keyring
func NewMailboxFactory(cfg *config.Config, logger *zap.Logger) *MailboxFactory {
	return &MailboxFactory{
		cfg:    cfg,
		logger: logger,
		secrets: func() (SecretSource, error) {
			return credential.Open()
		},
	}
}

// WithSecrets replaces the keyring lookup
func (f *MailboxFactory) WithSecrets(secrets SecretSource) *MailboxFactory {
	f.secrets = func() (SecretSource, error) { return secrets, nil }
	return f
}

// CreateReader creates a mailbox reader with resolved credentials
func (f *MailboxFactory) CreateReader(ctx context.Context) (core.MailboxReader, error) {
	settings, err := f.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return mailbox.NewReader(settings, f.logger), nil
}

// Settings resolves the reader settings, including the password or token source
func (f *MailboxFactory) Settings(ctx context.Context) (mailbox.Settings, error) {
	imapCfg := f.cfg.GetIMAP()
	settings := mailbox.Settings{
		Host:        imapCfg.Host,
		Port:        imapCfg.Port,
		Security:    mailbox.Security(imapCfg.Security),
		Auth:        mailbox.AuthMechanism(imapCfg.Auth),
		Account:     imapCfg.Account,
		DialTimeout: imapCfg.DialTimeout,
	}

	if settings.Auth == mailbox.AuthOAuthBearer {
		settings.TokenSource = f.tokenSource(ctx, imapCfg.OAuth)
		return settings, nil
	}

	password, err := f.password(imapCfg)
	if err != nil {
		return settings, err
	}
	settings.Password = password
	return settings, nil
}

func (f *MailboxFactory) password(imapCfg config.IMAPConfig) (string, error) {
	if imapCfg.Password != "" || imapCfg.PasswordKeyringKey == "" {
		return imapCfg.Password, nil
	}

	secrets, err := f.secrets()
	if err != nil {
		return "", core.Wrap(core.ErrConfig, "opening keyring", err)
	}
	password, err := secrets.Get(imapCfg.PasswordKeyringKey)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return "", core.Wrap(core.ErrConfig, "resolving IMAP password", err)
		}
		return "", core.Wrap(core.ErrConfig, "reading IMAP password from keyring", err)
	}

	f.logger.Debug("Loaded IMAP password from keyring",
		zap.String("key", imapCfg.PasswordKeyringKey))
	return password, nil
}

// tokenSource mints access tokens from the configured refresh token.
// Google's endpoint is used unless a token URL is configured.
func (f *MailboxFactory) tokenSource(ctx context.Context, oauthCfg config.OAuthConfig) oauth2.TokenSource {
	endpoint := google.Endpoint
	if oauthCfg.TokenURL != "" {
		endpoint = oauth2.Endpoint{TokenURL: oauthCfg.TokenURL}
	}

	conf := &oauth2.Config{
		ClientID:     oauthCfg.ClientID,
		ClientSecret: oauthCfg.ClientSecret,
		Endpoint:     endpoint,
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: oauthCfg.RefreshToken})
}
