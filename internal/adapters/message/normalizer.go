package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/mikey/mailindex/internal/core"
	"github.com/mikey/mailindex/internal/utils"
)

// Normalizer turns raw RFC 5322 messages into email documents using go-message
type Normalizer struct {
	text   *utils.TextProcessor
	logger *zap.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(text *utils.TextProcessor, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		text:   text,
		logger: logger,
	}
}

// Normalize parses raw and extracts subject, sender, date and the plain-text body.
// Only an unreadable header block is an error; body problems degrade to less content.
func (n *Normalizer) Normalize(raw core.RawMessage) (*core.EmailDocument, error) {
	if len(bytes.TrimSpace(raw.Bytes)) == 0 {
		return nil, core.Errorf(core.ErrMalformed, "normalize", "message %d is empty", raw.UID)
	}

	entity, err := gomessage.Read(bytes.NewReader(raw.Bytes))
	if err != nil && !isCharsetOrEncodingErr(err) {
		return nil, core.Wrap(core.ErrMalformed, fmt.Sprintf("parsing message %d", raw.UID), err)
	}
	if err != nil {
		n.logger.Debug("Message body left undecoded",
			zap.Uint32("uid", raw.UID),
			zap.Error(err))
	}

	header := mail.Header{Header: entity.Header}
	doc := &core.EmailDocument{
		Subject: n.headerText(header, "Subject"),
		Sender:  n.headerText(header, "From"),
		Date:    unfold(header.Get("Date")),
		Folder:  raw.Folder,
		Account: raw.Account,
	}

	content, err := n.extractContent(entity)
	if err != nil {
		n.logger.Debug("Message content partially extracted",
			zap.Uint32("uid", raw.UID),
			zap.Error(err))
	}
	doc.Content = n.text.SanitizeUTF8(content)

	return doc, nil
}

// headerText decodes RFC 2047 encoded words, falling back to the raw value
// when the charset is unknown
func (n *Normalizer) headerText(header mail.Header, key string) string {
	value, err := header.Text(key)
	if err != nil {
		value = header.Get(key)
	}
	return n.text.SanitizeUTF8(unfold(value))
}

// extractContent returns the body of a single-part message, or the body of the
// first text/plain leaf of a multipart message
func (n *Normalizer) extractContent(entity *gomessage.Entity) (string, error) {
	mr := entity.MultipartReader()
	if mr == nil {
		body, err := io.ReadAll(entity.Body)
		return string(body), err
	}

	content, _, err := firstPlainTextPart(mr)
	return content, err
}

// firstPlainTextPart walks the MIME tree depth-first in original part order
func firstPlainTextPart(mr gomessage.MultipartReader) (string, bool, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", false, nil
		}
		if err != nil && (part == nil || !isCharsetOrEncodingErr(err)) {
			return "", false, fmt.Errorf("reading multipart: %w", err)
		}

		content, found, err := firstPlainText(part)
		if found || err != nil {
			return content, found, err
		}
	}
}

func firstPlainText(entity *gomessage.Entity) (string, bool, error) {
	if mr := entity.MultipartReader(); mr != nil {
		return firstPlainTextPart(mr)
	}

	switch mediaType(entity) {
	case "text/plain":
	case "message/rfc822":
		// Forwarded message: search its body like any other part
		inner, err := gomessage.Read(entity.Body)
		if err != nil && (inner == nil || !isCharsetOrEncodingErr(err)) {
			return "", false, nil
		}
		return firstPlainText(inner)
	default:
		return "", false, nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		// Keep whatever decoded cleanly
		return string(body), true, fmt.Errorf("reading text/plain part: %w", err)
	}
	return string(body), true, nil
}

// mediaType returns the lowercased media type of entity, text/plain when absent
// or unparseable
func mediaType(entity *gomessage.Entity) string {
	if entity.Header.Get("Content-Type") == "" {
		return "text/plain"
	}
	t, _, err := entity.Header.ContentType()
	if err != nil || t == "" {
		return "text/plain"
	}
	return strings.ToLower(t)
}

func isCharsetOrEncodingErr(err error) bool {
	return gomessage.IsUnknownCharset(err) || gomessage.IsUnknownEncoding(err)
}

var unfolder = strings.NewReplacer("\r\n", "", "\n", "")

// unfold removes header folding line breaks
func unfold(value string) string {
	return unfolder.Replace(value)
}
