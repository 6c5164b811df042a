package message

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

func newTestNormalizer() *Normalizer {
	logger := zap.NewNop()
	return NewNormalizer(utils.NewTextProcessor(logger), logger)
}

// crlf lets fixtures be written with plain newlines
func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func raw(body string) core.RawMessage {
	return core.RawMessage{UID: 7, Folder: "INBOX", Account: "a@x.com", Bytes: crlf(body)}
}

func TestNormalize_PlainSinglePart(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw(`From: Alice <alice@example.com>
To: a@x.com
Subject: Lunch on Friday?
Date: Mon, 3 Mar 2025 10:15:00 +0100
Content-Type: text/plain; charset=utf-8

Are you free for lunch?
`))
	require.NoError(t, err)

	assert.Equal(t, "Lunch on Friday?", doc.Subject)
	assert.Equal(t, "Alice <alice@example.com>", doc.Sender)
	assert.Equal(t, "Mon, 3 Mar 2025 10:15:00 +0100", doc.Date)
	assert.Equal(t, "Are you free for lunch?\r\n", doc.Content)
	assert.Equal(t, "INBOX", doc.Folder)
	assert.Equal(t, "a@x.com", doc.Account)
	assert.Nil(t, doc.Spam)
}

func TestNormalize_EncodedSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"utf-8 base64", "=?UTF-8?B?UsOpdW5pb24gw6AgMTBo?=", "Réunion à 10h"},
		{"latin-1 quoted-printable", "=?iso-8859-1?q?caf=E9_cr=E8me?=", "café crème"},
		{"mixed plain and encoded", "Re: =?utf-8?q?r=C3=A9sum=C3=A9?= attached", "Re: résumé attached"},
		{"folded", "=?UTF-8?B?UXVhcnRlcmx5IG1lZXRpbmcgbm90ZXM=?=\n =?UTF-8?Q?_2025?=", "Quarterly meeting notes 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := newTestNormalizer().Normalize(raw("From: bob@example.com\nSubject: " + tt.subject + "\n\nbody\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.Subject)
		})
	}
}

func TestNormalize_MultipartTakesFirstPlainTextPart(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw(`From: carol@example.com
Subject: Agenda
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: text/html; charset=utf-8

<p>The <b>html</b> version</p>
--XYZ
Content-Type: text/plain; charset=utf-8

The plain version
--XYZ
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="notes.txt"

attached notes
--XYZ
Content-Type: application/pdf
Content-Disposition: attachment; filename="agenda.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQK
--XYZ--
`))
	require.NoError(t, err)
	assert.Equal(t, "The plain version", doc.Content)
}

func TestNormalize_NestedAlternative(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw(`From: dave@example.com
Subject: Nested
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: multipart/alternative; boundary="inner"

--inner
Content-Type: text/html

<p>hi</p>
--inner
Content-Type: text/plain; charset=us-ascii
Content-Transfer-Encoding: quoted-printable

soft=
 wrapped line
--inner--
--outer
Content-Type: image/png
Content-Transfer-Encoding: base64

iVBORw0KGgo=
--outer--
`))
	require.NoError(t, err)
	assert.Equal(t, "soft wrapped line", doc.Content)
}

func TestNormalize_MultipartWithoutPlainText(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw(`From: eve@example.com
Subject: Only html
Content-Type: multipart/alternative; boundary="b"

--b
Content-Type: text/html

<p>hello</p>
--b--
`))
	require.NoError(t, err)
	assert.Equal(t, "", doc.Content)
}

func TestNormalize_SinglePartDecodesTransferEncoding(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw(`From: frank@example.com
Subject: b64
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: base64

aGVsbG8gZnJvbSBiYXNlNjQNCg==
`))
	require.NoError(t, err)
	assert.Equal(t, "hello from base64\r\n", doc.Content)
}

func TestNormalize_Latin1BodyIsConverted(t *testing.T) {
	msg := crlf("From: g@example.com\nSubject: latin\nContent-Type: text/plain; charset=iso-8859-1\n\n")
	msg = append(msg, []byte("caf\xe9")...)
	doc, err := newTestNormalizer().Normalize(core.RawMessage{UID: 1, Bytes: msg})
	require.NoError(t, err)
	assert.Equal(t, "café", doc.Content)
}

func TestNormalize_InvalidBytesAreDropped(t *testing.T) {
	msg := crlf("From: h@example.com\nSubject: bytes\nContent-Type: text/plain; charset=utf-8\n\n")
	msg = append(msg, []byte("good\xff\xfe text")...)
	doc, err := newTestNormalizer().Normalize(core.RawMessage{UID: 1, Bytes: msg})
	require.NoError(t, err)
	assert.Equal(t, "good text", doc.Content)
}

func TestNormalize_MissingHeaders(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw("X-Other: 1\n\njust a body\n"))
	require.NoError(t, err)
	assert.Equal(t, "", doc.Subject)
	assert.Equal(t, "", doc.Sender)
	assert.Equal(t, "", doc.Date)
	assert.Equal(t, "just a body\r\n", doc.Content)
}

func TestNormalize_Malformed(t *testing.T) {
	n := newTestNormalizer()

	_, err := n.Normalize(core.RawMessage{UID: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformed))

	_, err = n.Normalize(raw("this line has no colon\n\nbody\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformed))
}

func TestNormalize_ForwardedMessageBody(t *testing.T) {
	doc, err := newTestNormalizer().Normalize(raw(`From: erin@example.com
Subject: Fwd: Agenda
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="fwd"

--fwd
Content-Type: text/html

<p>see below</p>
--fwd
Content-Type: message/rfc822

From: frank@example.com
Subject: Agenda
Content-Type: text/plain; charset=utf-8

Budget meeting at 3pm
--fwd--
`))
	require.NoError(t, err)
	assert.Equal(t, "Fwd: Agenda", doc.Subject)
	assert.Equal(t, "erin@example.com", doc.Sender)
	assert.Equal(t, "Budget meeting at 3pm", doc.Content)
}
