// Package mailbox imports messages from mbox files and single RFC 5322 messages.
package mailbox

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

func init() {
	message.CharsetReader = charsetReader
}

// ErrNoBody is returned for messages without a text or html part
var ErrNoBody = errors.New("message has no displayable body")

// Inline is a part referenced from the html body by Content-ID
type Inline struct {
	ContentID string
	MimeType  string
	Data      []byte
}

// Message is one imported message
type Message struct {
	MessageID  string
	InReplyTo  string
	References []string
	From       string
	To         string
	Subject    string
	Date       time.Time
	Text       string
	HTML       string
	Inline     []Inline
}

// Sender returns the display name of the sender, falling back to the address
func (m *Message) Sender() string {
	addrs, err := mail.ParseAddressList(m.From)
	if err != nil || len(addrs) == 0 {
		return m.From
	}
	if addrs[0].Name != "" {
		return addrs[0].Name
	}
	return addrs[0].Address
}

// ReadMbox parses every message of an mbox stream. Messages that fail to parse are skipped
// and their errors joined into the returned error.
func ReadMbox(r io.Reader) ([]*Message, error) {
	reader := mbox.NewReader(r)
	var (
		msgs []*Message
		errs []error
	)
	for i := 0; ; i++ {
		mr, err := reader.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return msgs, fmt.Errorf("read mbox: %w", err)
		}
		msg, err := ParseMessage(mr)
		if err != nil {
			errs = append(errs, fmt.Errorf("message %d: %w", i, err))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, errors.Join(errs...)
}

// ParseMessage parses a single message
func ParseMessage(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	msg := &Message{}
	msg.MessageID, _ = h.MessageID()
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil && len(ids) > 0 {
		msg.InReplyTo = ids[0]
	}
	msg.References, _ = h.MsgIDList("References")
	if subject, err := h.Subject(); err == nil {
		msg.Subject = subject
	} else {
		msg.Subject = h.Get("Subject")
	}
	msg.From = formatAddresses(h, "From")
	msg.To = formatAddresses(h, "To")
	if date, err := h.Date(); err == nil {
		msg.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("read part: %w", err)
		}
		if part == nil {
			continue
		}
		typed, ok := part.Header.(interface {
			ContentType() (string, map[string]string, error)
		})
		if !ok {
			continue
		}
		contentType, _, _ := typed.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		attachment := strings.HasPrefix(strings.ToLower(strings.TrimSpace(part.Header.Get("Content-Disposition"))), "attachment")
		switch {
		case contentType == "text/plain" && msg.Text == "" && !attachment:
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("read part body: %w", err)
			}
			msg.Text = string(data)
		case contentType == "text/html" && msg.HTML == "" && !attachment:
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("read part body: %w", err)
			}
			msg.HTML = string(data)
		case strings.HasPrefix(contentType, "image/"):
			cid := contentID(part.Header.Get("Content-Id"))
			if cid == "" {
				// only images referenced from the body are rendered
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("read part body: %w", err)
			}
			msg.Inline = append(msg.Inline, Inline{ContentID: cid, MimeType: contentType, Data: data})
		}
	}

	if msg.Text == "" && msg.HTML == "" {
		return msg, ErrNoBody
	}
	return msg, nil
}

// InlineByContentID returns the inline part with the given Content-ID
func (m *Message) InlineByContentID(cid string) (Inline, bool) {
	for _, in := range m.Inline {
		if in.ContentID == cid {
			return in, true
		}
	}
	return Inline{}, false
}

func formatAddresses(h mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return h.Get(key)
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return strings.Join(out, ", ")
}

func contentID(v string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(v), "<"), ">")
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	if charset == "" {
		return input, nil
	}
	enc, err := ianaindex.IANA.Encoding(strings.ToLower(charset))
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unhandled charset %q", charset)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
