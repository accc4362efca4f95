package respond

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/metrics"
)

// CreateRedirect returns a copy of orig to be sent to the addresses in to,
// with Resent-* fields added at the top. The original header, including Date
// and Message-ID, is kept. The recipients are stored in X-KMail-Recipients for
// the transport, they are not added to To or Cc.
func (e *Engine) CreateRedirect(orig *message.Message, to string) (*message.Message, error) {
	if to == "" {
		return nil, ErrNoRecipient
	}
	if !orig.Complete {
		return nil, ErrIncomplete
	}

	m := message.Parse(e.Conf, orig.Bytes())
	id := e.identity(orig)
	from := id.FullEmailAddr()

	// Prepended in reverse, resulting in Resent-From, Resent-To, Resent-Date
	// and Resent-Message-ID. ../rfc/5322:1390
	m.SetHeaderField("Resent-Message-ID", message.GenerateMessageID(id.Email, e.Conf.Hostname), message.Structured, true)
	m.SetHeaderField("Resent-Date", message.FormatDate(time.Now()), message.Structured, true)
	m.SetHeaderField("Resent-To", to, message.AddressList, true)
	m.SetHeaderField("Resent-From", from, message.AddressList, true)

	origFrom := orig.HeaderField("From", message.Decoded)
	m.SetHeaderField("X-KMail-Redirect-From", fmt.Sprintf("%s (by way of %s)", origFrom, from), message.Unstructured, false)
	m.SetHeaderField("X-KMail-Recipients", to, message.AddressList, false)
	m.Link(orig, message.LinkForwarded)

	e.log.Debug("created redirect", slog.String("to", to), slog.Uint64("identity", uint64(id.UOID)))
	metrics.RespondInc("redirect", "")
	return m, nil
}
