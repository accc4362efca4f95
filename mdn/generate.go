package mdn

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/metrics"
	"github.com/mjl-/mimeengine/mlog"
)

// Result is the outcome of Create. Message is only set for states Sent and
// Denied.
type Result struct {
	State       State
	Disposition DispositionType
	Message     *message.Message
}

// Generator creates notifications for received messages.
type Generator struct {
	Conf       Config
	MsgConf    *message.Config
	Identities message.Identities
	Asker      Asker // Can be nil, requests needing a decision then remain pending.

	log mlog.Log
}

// NewGenerator returns a generator. If msgConf is nil, the default message
// configuration is used.
func NewGenerator(conf Config, msgConf *message.Config, ids message.Identities, asker Asker) *Generator {
	if msgConf == nil {
		msgConf = message.DefaultConfig()
	}
	return &Generator{
		Conf:       conf,
		MsgConf:    msgConf,
		Identities: ids,
		Asker:      asker,
		log:        mlog.New("mdn", msgConf.Log),
	}
}

// Create decides whether a notification with disposition d should be sent for
// m, and if so returns it. The decision is recorded in the MDN sent-state of m,
// except when the request remains pending. If the user would have to be asked
// but allowGUI is false, the result is PendingDecision.
//
// Once a decision has been recorded, later calls return AlreadySent.
func (g *Generator) Create(m *message.Message, action ActionMode, d DispositionType, allowGUI bool, modifiers []Modifier) (Result, error) {
	if !m.Complete {
		return Result{}, ErrIncomplete
	}
	r, err := g.create(m, action, d, allowGUI, modifiers)
	if err != nil {
		return Result{}, err
	}
	g.log.Debug("disposition notification decision",
		slog.String("state", r.State.String()),
		slog.String("disposition", string(r.Disposition)),
		slog.String("msgid", m.MsgID()))
	metrics.MDNInc(r.State.String())
	return r, nil
}

func (g *Generator) create(m *message.Message, action ActionMode, d DispositionType, allowGUI bool, modifiers []Modifier) (Result, error) {
	if m.MDNSentState.Sent() {
		return Result{State: AlreadySent}, nil
	}

	// ../rfc/2298:529 Never respond to a notification.
	if m.FindPart("message", "disposition-notification") >= 0 {
		m.MDNSentState = message.MDNIgnore
		return Result{State: Ignored}, nil
	}

	receiptTo := strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(m.HeaderField("Disposition-Notification-To", message.Raw)))
	if receiptTo == "" {
		return Result{State: NotRequested}, nil
	}

	policy := g.Conf.Policy
	if policy == Ignore {
		m.MDNSentState = message.MDNIgnore
		return Result{State: Ignored}, nil
	}

	sending := SentAutomatically
	var failure string

	// Each of these checks asks the user, the answer replacing the policy.
	ask := func(reason Reason) bool {
		if !allowGUI || g.Asker == nil {
			g.log.Debug("decision on disposition notification needed, but not allowed to ask", slog.String("reason", string(reason)))
			return false
		}
		policy = g.Asker.AskMDN(reason)
		sending = SentManually
		return true
	}

	// ../rfc/2298:421
	if requiredOption(m.HeaderField("Disposition-Notification-Options", message.Raw)) {
		if !ask(ReasonUnknownOption) {
			return Result{State: PendingDecision}, nil
		}
		failure = `Header "Disposition-Notification-Options" contained required, but unknown parameter`
		d = DispositionFailed
		if !hasModifier(modifiers, ModifierError) {
			modifiers = append(modifiers[:len(modifiers):len(modifiers)], ModifierError)
		}
	}

	// ../rfc/2298:305
	if len(message.ParseAddressList(receiptTo)) > 1 {
		if !ask(ReasonMultipleAddresses) {
			return Result{State: PendingDecision}, nil
		}
	}

	// ../rfc/2298:313
	returnPath := returnPathAddress(m)
	if returnPath == "" || !strings.Contains(strings.ToLower(receiptTo), strings.ToLower(returnPath)) {
		reason := ReasonReturnPathMismatch
		if returnPath == "" {
			reason = ReasonReturnPathEmpty
		}
		if !ask(reason) {
			return Result{State: PendingDecision}, nil
		}
	}

	if policy == Ask {
		// Asked before without an answer, not allowed to ask, or no answer now.
		if sending == SentManually || !ask(ReasonNormalAsk) || policy == Ask {
			return Result{State: PendingDecision}, nil
		}
	}

	state := Sent
	switch policy {
	case Ignore:
		m.MDNSentState = message.MDNIgnore
		return Result{State: Ignored}, nil
	case Deny:
		d = DispositionDenied
		modifiers = nil
		state = Denied
	}

	r, err := g.compose(m, receiptTo, action, sending, d, modifiers, failure)
	if err != nil {
		return Result{}, err
	}
	m.MDNSentState = d.sentState()
	return Result{State: state, Disposition: d, Message: r}, nil
}

// requiredOption returns whether a Disposition-Notification-Options value has
// a parameter with importance "required". None are understood.
func requiredOption(v string) bool {
	// ../rfc/2298:411
	for _, p := range strings.Split(v, ";") {
		_, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		importance, _, _ := strings.Cut(value, ",")
		if strings.EqualFold(strings.TrimSpace(importance), "required") {
			return true
		}
	}
	return false
}

// returnPathAddress returns the address in the Return-Path, without angle
// brackets.
func returnPathAddress(m *message.Message) string {
	v := strings.TrimSpace(m.HeaderField("Return-Path", message.Raw))
	v = strings.TrimSuffix(strings.TrimPrefix(v, "<"), ">")
	l := message.ParseAddressList(v)
	if len(l) == 0 || l[0].Addr.IsZero() {
		return ""
	}
	return l[0].Email()
}

// Explanations for the human-readable part.
var descriptions = map[DispositionType]string{
	DispositionDisplayed:  "The message sent on ${date} to ${to} with subject \"${subject}\" has been displayed. This is no guarantee that the message has been read or understood.",
	DispositionDeleted:    "The message sent on ${date} to ${to} with subject \"${subject}\" has been deleted unseen. This is no guarantee that the message will not be \"undeleted\" and nonetheless read later on.",
	DispositionDispatched: "The message sent on ${date} to ${to} with subject \"${subject}\" has been dispatched. This is no guarantee that the message will not be read later on.",
	DispositionProcessed:  "The message sent on ${date} to ${to} with subject \"${subject}\" has been processed by some automatic means.",
	DispositionDenied:     "The message sent on ${date} to ${to} with subject \"${subject}\" has been acted upon. The sender does not wish to disclose more details to you than that.",
	DispositionFailed:     "Generation of the Message Disposition Notification for the message sent on ${date} to ${to} with subject \"${subject}\" failed. Reason is given in the Failure: header field below.",
}

var templateVar = regexp.MustCompile(`\$\{([A-Za-z0-9-]+)\}`)

// expand replaces ${date} with the date of m and ${name} with its decoded
// header field name.
func expand(tmpl string, m *message.Message) string {
	return templateVar.ReplaceAllStringFunc(tmpl, func(s string) string {
		name := s[2 : len(s)-1]
		if strings.EqualFold(name, "date") {
			if t := m.Date(); !t.IsZero() {
				return t.Format("Mon, 02 Jan 2006 15:04:05 -0700")
			}
		}
		return m.HeaderField(name, message.Decoded)
	})
}

// compose returns the multipart/report notification.
func (g *Generator) compose(m *message.Message, receiptTo string, action ActionMode, sending SendingMode, d DispositionType, modifiers []Modifier, failure string) (*message.Message, error) {
	id := g.Identities.IdentityForUOIDOrDefault(m.IdentityUOID())

	r := message.New(g.MsgConf)
	r.InitFromMessage(g.Identities, m, true)
	r.RemoveHeaderField("Content-Type")
	r.RemoveHeaderField("Content-Transfer-Encoding")
	// ../rfc/3462:119
	r.SetHeaderField("MIME-Version", "1.0", message.Structured, false)
	r.SetHeaderField("Content-Type", "multipart/report; report-type=disposition-notification", message.Structured, false)

	text := expand(descriptions[d], m) + "\n"
	r.AddBodyPart(message.TextBodyPart("plain", text, g.MsgConf.PreferredCharsets, false))

	buf, err := g.dispositionBody(m, id.Email, action, sending, d, modifiers, failure)
	if err != nil {
		return nil, fmt.Errorf("composing disposition notification: %w", err)
	}
	r.AddBodyPart(message.BodyPart{Type: "message", Subtype: "disposition-notification", CTE: cteFor(buf), Body: buf})

	switch g.Conf.QuoteMessage {
	case QuoteFull:
		buf := m.AsSendableString()
		r.AddBodyPart(message.BodyPart{Type: "message", Subtype: "rfc822", CTE: cteFor(buf), Body: buf})
	case QuoteHeaders:
		// ../rfc/3462:186
		buf := []byte(m.HeaderAsSendableString())
		r.AddBodyPart(message.BodyPart{Type: "text", Subtype: "rfc822-headers", CTE: cteFor(buf), Body: buf})
	}

	r.SetTo(receiptTo)
	r.SetSubject("Message Disposition Notification")
	r.SetHeaderField("In-Reply-To", m.MsgID(), message.Structured, false)
	r.SetHeaderField("References", m.GetRefStr(), message.Structured, false)
	r.CleanupHeader()
	return r, nil
}

func cteFor(buf []byte) message.CTE {
	if message.AnalyzeCharFreq(buf).EightBit > 0 {
		return message.CTE8Bit
	}
	return message.CTE7Bit
}

// dispositionBody returns the machine-readable part. ../rfc/2298:279
func (g *Generator) dispositionBody(m *message.Message, finalRecipient string, action ActionMode, sending SendingMode, d DispositionType, modifiers []Modifier, failure string) (rbuf []byte, rerr error) {
	defer func() {
		x := recover()
		if x == nil {
			return
		}
		if err, ok := x.(error); ok && errors.Is(err, message.ErrCompose) {
			metrics.PanicInc("mdn")
			rerr = err
			return
		}
		panic(x)
	}()

	ua := g.Conf.ReportingUA
	if ua == "" {
		ua = g.MsgConf.Hostname
	}
	c := message.NewComposer("\r\n")
	c.Header("Reporting-UA", ua+"; "+g.MsgConf.UserAgent)
	if v := strings.TrimSpace(m.HeaderField("Original-Recipient", message.Raw)); v != "" {
		c.Header("Original-Recipient", v)
	}
	if finalRecipient == "" {
		c.Checkf(errors.New("no address for identity"), "final recipient")
	}
	c.Header("Final-Recipient", "rfc822; "+finalRecipient)
	if id := m.MsgID(); id != "" {
		c.Header("Original-Message-ID", id)
	}

	disposition := fmt.Sprintf("%s/%s; %s", action, sending, d)
	if len(modifiers) > 0 {
		var l []string
		for _, mod := range modifiers {
			l = append(l, string(mod))
		}
		disposition += "/" + strings.Join(l, ",")
	}
	c.Header("Disposition", disposition)

	if failure != "" {
		switch {
		case d == DispositionFailed:
			c.Header("Failure", failure)
		case hasModifier(modifiers, ModifierError):
			c.Header("Error", failure)
		case hasModifier(modifiers, ModifierWarning):
			c.Header("Warning", failure)
		}
	}
	return c.Bytes(), nil
}

func hasModifier(l []Modifier, mod Modifier) bool {
	for _, e := range l {
		if e == mod {
			return true
		}
	}
	return false
}
