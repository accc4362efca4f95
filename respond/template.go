package respond

import (
	"fmt"
	"strings"

	"github.com/mjl-/mimeengine/message"
)

// Kind is the kind of derived message a template is processed for.
type Kind int

const (
	KindReply Kind = iota
	KindReplyAll
	KindForward
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindReplyAll:
		return "replyall"
	case KindForward:
		return "forward"
	}
	return "unknown"
}

// Templater fills in the body of a reply or forward m, created from orig.
// For forwards, m may already hold a copy of the content of orig.
type Templater interface {
	Process(kind Kind, m, orig *message.Message, opts ReplyOptions) error
}

// QuoteTemplater quotes the text of the original in replies, prefixing each
// line with the quote prefix of the configuration, and adds the header fields
// of the original above its text in forwards.
type QuoteTemplater struct{}

var _ Templater = QuoteTemplater{}

// Process implements Templater.
func (QuoteTemplater) Process(kind Kind, m, orig *message.Message, opts ReplyOptions) error {
	conf := m.Config()
	switch kind {
	case KindReply, KindReplyAll:
		if opts.NoQuote {
			m.SetBodyText("", false)
			return nil
		}
		text := opts.Selection
		if text == "" {
			var err error
			text, err = originalText(orig)
			if err != nil {
				return err
			}
		}
		var b strings.Builder
		b.WriteString(attribution(orig) + "\n")
		for _, line := range strings.Split(strings.TrimRight(text, "\r\n"), "\n") {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				b.WriteString(strings.TrimRight(conf.QuotePrefix, " ") + "\n")
			} else {
				b.WriteString(conf.QuotePrefix + line + "\n")
			}
		}
		m.SetBodyText(b.String(), false)

	case KindForward:
		var b strings.Builder
		b.WriteString("\n----------  Forwarded Message  ----------\n\n")
		for _, k := range []string{"Subject", "Date", "From", "To", "Cc"} {
			if v := orig.HeaderField(k, message.Decoded); v != "" {
				fmt.Fprintf(&b, "%s: %s\n", k, v)
			}
		}
		b.WriteString("\n")

		if m.NumBodyParts() == 0 {
			if orig.Type() == "text/plain" {
				// m holds a copy of the text body, the header block goes above it.
				b.WriteString(normalizeNewlines(m.BodyText()))
			} else {
				text, err := originalText(orig)
				if err != nil {
					return err
				}
				b.WriteString(text)
				m.SetHeaderField("Content-Type", "text/plain", message.Structured, false)
			}
			b.WriteString("\n-------------------------------------------------------\n")
			m.SetBodyText(normalizeNewlines(b.String()), false)
			return nil
		}

		// Multipart, the first text part gets the header block.
		i := m.FindPart("text", "plain")
		if i < 0 {
			return nil
		}
		bp, _ := m.BodyPart(i)
		b.WriteString(bp.Text())
		b.WriteString("\n-------------------------------------------------------\n")
		np := message.TextBodyPart("plain", normalizeNewlines(b.String()), conf.PreferredCharsets, false)
		np.Disposition = bp.Disposition
		if err := m.ReplaceBodyPart(i, np); err != nil {
			return fmt.Errorf("replacing text part: %w", err)
		}
	}
	return nil
}

// attribution returns the line above quoted text.
func attribution(orig *message.Message) string {
	from := "you"
	if l := orig.FromAddrs(); len(l) > 0 {
		from = l[0].Name
		if from == "" {
			from = l[0].String()
		}
	}
	if d := orig.Date(); !d.IsZero() {
		return fmt.Sprintf("On %s, %s wrote:", d.Format("Monday 02 January 2006 15:04"), from)
	}
	return from + " wrote:"
}

// originalText returns the text of orig for quoting: the first text/plain
// part, or the text of the first text/html part.
func originalText(orig *message.Message) (string, error) {
	if orig.NumBodyParts() == 0 {
		switch orig.Type() {
		case "text/plain":
			return normalizeNewlines(orig.BodyText()), nil
		case "text/html":
			return htmlText(orig.BodyText())
		}
		return "", nil
	}
	if i := orig.FindPart("text", "plain"); i >= 0 {
		bp, _ := orig.BodyPart(i)
		return normalizeNewlines(bp.Text()), nil
	}
	if i := orig.FindPart("text", "html"); i >= 0 {
		bp, _ := orig.BodyPart(i)
		return htmlText(bp.Text())
	}
	return "", nil
}

func htmlText(s string) (string, error) {
	text, err := message.HTMLToText(s)
	if err != nil {
		return "", fmt.Errorf("converting html to text: %w", err)
	}
	return text, nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
