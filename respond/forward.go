package respond

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/metrics"
)

// contentFields are the header fields copied with the body of an original
// that is wrapped into a forward.
var contentFields = []string{"Content-Type", "Content-Transfer-Encoding", "Content-Disposition", "Content-Description", "Content-Id"}

// CreateForward returns a forward of orig as a new message. Multipart and
// text/plain originals are copied, without their non-content header fields
// and without parts of the media types configured to be stripped. A text/html
// original is converted to text. Other originals are attached after an empty
// text part. The templater adds the header fields of the original.
func (e *Engine) CreateForward(orig *message.Message) (*message.Message, error) {
	if !orig.Complete {
		return nil, ErrIncomplete
	}

	var m *message.Message
	switch t := orig.Type(); {
	case strings.HasPrefix(t, "multipart/") || t == "text/plain":
		m = message.Parse(e.Conf, orig.Bytes())
		contentType := m.HeaderField("Content-Type", message.Raw)
		m.SanitizeHeaders("MIME-Version")
		for _, mt := range e.Conf.StripWhenInlineForwarding {
			typ, subtype, _ := strings.Cut(strings.ToLower(mt), "/")
			for {
				i := m.FindPart(typ, subtype)
				if i < 0 {
					break
				}
				e.log.Debug("removing part from forward", slog.String("mediatype", mt), slog.Int("part", i))
				if err := m.RemoveBodyPart(i); err != nil {
					return nil, fmt.Errorf("removing part: %w", err)
				}
			}
		}
		m.InitFromMessage(e.Identities, orig, true)
		// InitHeader sets a text/plain Content-Type.
		m.SetHeaderField("Content-Type", contentType, message.Structured, false)

	case t == "text/html":
		// The templater converts the html of orig to text.
		m = e.newFrom(orig)
		m.CleanupHeader()

	default:
		m = e.newFrom(orig)
		m.RemoveHeaderField("Content-Type")
		m.RemoveHeaderField("Content-Transfer-Encoding")
		m.SetAutomaticFields(true)
		m.AddBodyPart(message.BodyPart{Type: "text", Subtype: "plain"})
		var h message.Header
		oh := orig.Header()
		for _, k := range contentFields {
			for _, v := range oh.Values(k) {
				h.Add(k, v)
			}
		}
		m.AddBodyPart(message.BodyPart{Header: h, Body: orig.Body()})
		m.CleanupHeader()
	}

	m.SetSubject(orig.ForwardSubject())
	if err := e.templater().Process(KindForward, m, orig, ReplyOptions{}); err != nil {
		return nil, fmt.Errorf("processing forward template: %w", err)
	}
	m.Link(orig, message.LinkForwarded)
	e.log.Debug("created forward", slog.String("mediatype", orig.Type()), slog.Int("parts", m.NumBodyParts()))
	metrics.RespondInc("forward", "")
	return m, nil
}

// ForwardDigest returns a message forwarding origs as a multipart/digest: an
// explanatory text part followed by each message as message/rfc822 part,
// without private header fields and Bcc. The identity is that of the first
// original that has one.
func (e *Engine) ForwardDigest(origs []*message.Message) (*message.Message, error) {
	if len(origs) == 0 {
		return nil, ErrNoMessages
	}
	var uoid uint32
	for _, o := range origs {
		if !o.Complete {
			return nil, ErrIncomplete
		}
		if uoid == 0 {
			uoid = o.IdentityUOID()
		}
	}

	m := message.New(e.Conf)
	m.InitHeader(e.Identities.IdentityForUOIDOrDefault(uoid))
	m.SetHeaderField("MIME-Version", "1.0", message.Structured, false)
	// Kept when the first part is added, with a new boundary.
	m.SetHeaderField("Content-Type", "multipart/digest", message.Structured, false)

	text := "This is a MIME digest forward. The content of the message is contained in the attachment(s).\n"
	m.AddBodyPart(message.TextBodyPart("plain", text, []string{"us-ascii"}, false))
	for _, o := range origs {
		buf := o.AsSendableString()
		cte := message.CTE7Bit
		if message.AnalyzeCharFreq(buf).EightBit > 0 {
			cte = message.CTE8Bit
		}
		m.AddBodyPart(message.BodyPart{
			Type:               "message",
			Subtype:            "rfc822",
			CTE:                cte,
			ContentDescription: o.Subject() + " (fwd)",
			Body:               buf,
		})
		m.Link(o, message.LinkForwarded)
	}
	e.log.Debug("created digest", slog.Int("messages", len(origs)))
	metrics.RespondInc("digest", "")
	return m, nil
}
