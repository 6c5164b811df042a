package mailbox

import (
	"time"

	"golang.org/x/oauth2"
)

// Security selects how the IMAP connection is protected
type Security string

const (
	SecurityImplicitTLS Security = "implicit"
	SecurityStartTLS    Security = "starttls"
	SecurityNone        Security = "none"
)

// AuthMechanism selects how the reader authenticates
type AuthMechanism string

const (
	AuthLogin       AuthMechanism = "login"
	AuthPlain       AuthMechanism = "plain"
	AuthOAuthBearer AuthMechanism = "oauthbearer"
)

// Settings holds everything needed to open a session
type Settings struct {
	Host        string
	Port        int
	Security    Security
	Auth        AuthMechanism
	Account     string
	Password    string
	DialTimeout time.Duration

	// TokenSource mints access tokens for AuthOAuthBearer
	TokenSource oauth2.TokenSource
}
