package respond

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/metrics"
)

// ReplyOptions influence the body of a reply.
type ReplyOptions struct {
	Selection string // If set, quoted instead of the body of the original.
	NoQuote   bool   // Don't quote the original.
}

// mailingListAddresses returns the posting addresses from the List-Post
// header, e.g. "<mailto:list@example.org>".
func mailingListAddresses(m *message.Message) []message.Address {
	var r []message.Address
	for _, v := range m.HeaderFields("List-Post", message.Raw) {
		// ../rfc/2369:283
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			s = strings.TrimSuffix(strings.TrimPrefix(s, "<"), ">")
			if len(s) < len("mailto:") || !strings.EqualFold(s[:len("mailto:")], "mailto:") {
				continue
			}
			s = s[len("mailto:"):]
			if i := strings.Index(s, "?"); i >= 0 {
				s = s[:i]
			}
			for _, a := range message.ParseAddressList(s) {
				if !a.Addr.IsZero() {
					r = append(r, a)
				}
			}
		}
	}
	return r
}

// addresses returns the addresses of all header fields named name.
func addresses(m *message.Message, name string) []message.Address {
	return message.ParseAddressList(strings.Join(m.RawHeaderFields(name), ", "))
}

func joinAddresses(l []message.Address) string {
	var r []string
	for _, a := range l {
		r = append(r, a.String())
	}
	return strings.Join(r, ", ")
}

// recipients returns the To and Cc addresses of a reply to orig, and whether
// the reply goes to all recipients.
func (e *Engine) recipients(orig *message.Message, strategy Strategy) (to, cc []message.Address, replyAll bool) {
	lists := mailingListAddresses(orig)
	replyTo := addresses(orig, "Reply-To")
	from := addresses(orig, "From")
	followup := addresses(orig, "Mail-Followup-To")

	// Strips own addresses. If that removes all, the first address is kept, for
	// replies to self.
	stripMine := func(l []message.Address) []message.Address {
		r := e.stripMyAddresses(l)
		if len(r) == 0 && len(l) > 0 {
			r = l[:1]
		}
		return r
	}
	withoutLists := func(l []message.Address) []message.Address {
		for _, a := range lists {
			l = message.StripAddress(a, l)
		}
		return l
	}

	replyAll = true
	switch strategy {
	case Smart:
		switch {
		case len(followup) > 0:
			to = followup
		case len(replyTo) > 0:
			// Possibly a mailing list that set Reply-To to itself.
			to = replyTo
			replyAll = len(lists) > 0
		case len(lists) > 0:
			to = lists[:1]
		default:
			to = from
			replyAll = false
		}
		to = stripMine(to)

	case List:
		switch {
		case len(followup) > 0:
			to = followup
		case len(lists) > 0:
			to = lists[:1]
		default:
			to = replyTo
		}
		to = stripMine(to)

	case All:
		var recipients []message.Address
		if len(replyTo) > 0 {
			recipients = withoutLists(replyTo)
		}
		if len(lists) > 0 {
			if len(recipients) == 0 && len(from) > 0 {
				// No Reply-To, the author is added to Cc.
				cc = append(cc, from...)
			}
			recipients = append([]message.Address{lists[0]}, recipients...)
		} else if len(recipients) == 0 {
			recipients = from
		}
		to = e.stripMyAddresses(recipients)

		others := append(addresses(orig, "To"), addresses(orig, "Cc")...)
		for _, a := range others {
			if !message.ContainsAddress(a, recipients) && !message.ContainsAddress(a, cc) {
				cc = append(cc, a)
			}
		}
		cc = e.stripMyAddresses(cc)
		// Reply to self, promote a Cc recipient.
		if len(to) == 0 && len(cc) > 0 {
			to, cc = cc[:1], cc[1:]
		}
		if len(to) == 0 && len(recipients) > 0 {
			to = recipients[:1]
		}

	case Author:
		if len(replyTo) > 0 {
			to = withoutLists(replyTo)
		}
		if len(to) == 0 {
			to = from
		}
		replyAll = false

	case None:
	}
	return to, cc, replyAll
}

// CreateReply returns a reply to orig, with recipients selected by strategy.
// The body is created by the templater.
func (e *Engine) CreateReply(orig *message.Message, strategy Strategy, opts ReplyOptions) (*message.Message, error) {
	if !orig.Complete {
		return nil, ErrIncomplete
	}
	m := e.newFrom(orig)
	m.SetCharset("utf-8")

	to, cc, replyAll := e.recipients(orig, strategy)
	m.SetTo(joinAddresses(to))
	m.SetCc(joinAddresses(cc))

	if refs := orig.GetRefStr(); refs != "" {
		m.SetHeaderField("References", refs, message.Structured, false)
	}
	if id := orig.MsgID(); id != "" {
		m.SetHeaderField("In-Reply-To", id, message.Structured, false)
	}
	m.SetSubject(orig.ReplySubject())
	m.SetHeaderField("X-KMail-QuotePrefix", e.Conf.QuotePrefix, message.Unstructured, false)

	kind := KindReply
	if replyAll {
		kind = KindReplyAll
	}
	if err := e.templater().Process(kind, m, orig, opts); err != nil {
		return nil, fmt.Errorf("processing reply template: %w", err)
	}

	m.Link(orig, message.LinkReplied)
	if orig.EncryptionState == message.FullyEncrypted || orig.EncryptionState == message.PartiallyEncrypted {
		m.EncryptionState = message.FullyEncrypted
	}
	e.log.Debug("created reply",
		slog.String("strategy", strategy.String()),
		slog.Bool("replyall", replyAll),
		slog.Int("to", len(to)),
		slog.Int("cc", len(cc)))
	metrics.RespondInc("reply", strategy.String())
	return m, nil
}
