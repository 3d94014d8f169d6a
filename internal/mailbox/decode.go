package mailbox

import (
	"bytes"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	// Registers extended charsets so encoded-word decoding handles
	// non-UTF8 headers.
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/sirupsen/logrus"

	"github.com/nhle/mailgate/internal/model"
)

const (
	noSubject     = "(No Subject)"
	unknownSender = "(Unknown Sender)"
	unknownRcpt   = "(Unknown Recipient)"
)

// seenFlag marks a message the server considers read.
const seenFlag = "\\Seen"

// decodeHeaderRecord parses one fetched header payload into a listing
// summary. Dates are best-effort display data: a header that cannot be
// parsed yields now instead of an error. The returned time is the
// decoded date used for final page ordering.
func decodeHeaderRecord(
	rec HeaderRecord,
	folder string,
	now time.Time,
	log *logrus.Entry,
) (model.EmailSummary, time.Time) {
	subject := noSubject
	from := unknownSender
	date := now

	entity, err := message.Read(bytes.NewReader(rec.Header))
	if err != nil && entity == nil {
		log.WithError(err).Warn("unparseable header record")
	}
	if entity != nil {
		if s := decodeHeaderText(entity.Header, "Subject"); s != "" {
			subject = s
		}
		if f := decodeHeaderText(entity.Header, "From"); f != "" {
			from = f
		}
		if d, err := netmail.ParseDate(entity.Header.Get("Date")); err == nil {
			date = d
		}
	}

	isRead := false
	for _, f := range rec.Flags {
		if f == seenFlag {
			isRead = true
			break
		}
	}

	ref := MessageRef{Folder: folder, NativeID: rec.NativeID}
	summary := model.EmailSummary{
		MessageID:     ref.CompositeID(),
		Folder:        folder,
		Subject:       subject,
		From:          from,
		Date:          date.Format(time.RFC3339),
		IsRead:        isRead,
		SenderInitial: senderInitial(from),
	}
	return summary, date
}

// decodeHeaderText returns the decoded text of a header field.
// Unsupported charsets or truncated encoded words fall back to the
// permissively decoded value go-message produces alongside the error.
func decodeHeaderText(h message.Header, key string) string {
	text, err := h.Text(key)
	if err != nil && text == "" {
		text = h.Get(key)
	}
	return strings.TrimSpace(text)
}

// senderInitial derives the avatar initial from a decoded From field:
// the first ASCII letter upper-cased, or "?" when there is none.
func senderInitial(from string) string {
	for _, r := range from {
		if r >= 'a' && r <= 'z' {
			return strings.ToUpper(string(r))
		}
		if r >= 'A' && r <= 'Z' {
			return string(r)
		}
	}
	return "?"
}

// decodeFullMessage parses a complete raw message into an EmailDetail.
// Body extraction walks the MIME tree: the first non-attachment
// text/plain part and the first text/html part win; a part that fails
// to decode is logged and skipped, never fatal to the message.
func decodeFullMessage(
	raw []byte,
	messageID string,
	now time.Time,
	log *logrus.Entry,
) model.EmailDetail {
	detail := model.EmailDetail{
		MessageID: messageID,
		Subject:   noSubject,
		From:      unknownSender,
		To:        unknownRcpt,
		Date:      now.Format(time.RFC3339),
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Malformed beyond MIME parsing: surface the raw text rather
		// than failing the request.
		log.WithError(err).Warn("unparseable message, returning raw body")
		detail.BodyPlain = string(raw)
		return detail
	}
	defer mr.Close()

	h := mr.Header.Header
	if s := decodeHeaderText(h, "Subject"); s != "" {
		detail.Subject = s
	}
	if f := decodeHeaderText(h, "From"); f != "" {
		detail.From = f
	}
	if t := decodeHeaderText(h, "To"); t != "" {
		detail.To = t
	}
	if d, err := netmail.ParseDate(h.Get("Date")); err == nil {
		detail.Date = d.Format(time.RFC3339)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.WithError(err).Warn("skipping undecodable message part")
			break
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachment parts contribute nothing to the body text.
			continue
		}

		contentType, _, _ := inline.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			log.WithError(readErr).Warn("skipping unreadable message part")
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && detail.BodyPlain == "":
			detail.BodyPlain = string(body)
		case strings.HasPrefix(contentType, "text/html") && detail.BodyHTML == "":
			detail.BodyHTML = string(body)
		}
	}

	return detail
}
