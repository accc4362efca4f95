package respond

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/mjl-/mimeengine/message"
)

func tcheck(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

func tcompare(t *testing.T, got, exp any) {
	t.Helper()
	if !reflect.DeepEqual(got, exp) {
		t.Fatalf("got %q, expected %q", got, exp)
	}
}

func tfail(t *testing.T, err, expErr error) {
	t.Helper()
	if (err == nil) != (expErr == nil) || expErr != nil && !errors.Is(err, expErr) {
		t.Fatalf("got err %v, expected %v", err, expErr)
	}
}

type testIdentities []message.Identity

func (l testIdentities) IdentityForUOIDOrDefault(uoid uint32) message.Identity {
	for _, id := range l {
		if id.UOID == uoid {
			return id
		}
	}
	for _, id := range l {
		if id.Default {
			return id
		}
	}
	return message.Identity{}
}

func (l testIdentities) IsMyAddress(addr string) bool {
	for _, id := range l {
		if strings.EqualFold(id.Email, addr) {
			return true
		}
	}
	return false
}

var identities = testIdentities{
	{UOID: 1, Name: "default", FullName: "Mjl", Email: "mjl@mox.example", Default: true},
	{UOID: 2, Name: "work", FullName: "Work", Email: "work@mox.example", Transport: "smtp-work"},
}

func newEngine(conf *message.Config) *Engine {
	if conf == nil {
		conf = message.DefaultConfig()
	}
	return NewEngine(conf, identities, nil)
}

func parse(s string) *message.Message {
	return message.Parse(nil, []byte(strings.ReplaceAll(s, "\n", "\r\n")))
}

func nl(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

const origMsg = `From: Alice <alice@a.example>
To: mjl@mox.example, bob@b.example
Cc: carol@c.example
Subject: Budget
Date: Mon, 02 Jan 2006 15:04:05 -0700
Message-Id: <orig@a.example>
References: <first@a.example>
Content-Type: text/plain; charset=us-ascii

hello
world
`

func TestReplyAll(t *testing.T) {
	e := newEngine(nil)
	orig := parse(origMsg)
	m, err := e.CreateReply(orig, All, ReplyOptions{})
	tcheck(t, err, "reply")

	tcompare(t, m.From(), "Mjl <mjl@mox.example>")
	// Own address is not in the recipients.
	tcompare(t, m.To(), "Alice <alice@a.example>")
	tcompare(t, m.Cc(), "bob@b.example, carol@c.example")
	tcompare(t, m.Subject(), "Re: Budget")
	tcompare(t, m.HeaderField("In-Reply-To", message.Raw), "<orig@a.example>")
	tcompare(t, m.HeaderField("References", message.Raw), "<first@a.example> <orig@a.example>")
	tcompare(t, m.HeaderField("X-KMail-Identity", message.Raw), "")
	tcompare(t, m.HeaderField("X-KMail-QuotePrefix", message.Raw), "> ")
	tcompare(t, nl(m.BodyText()), "On Monday 02 January 2006 15:04, Alice wrote:\n> hello\n> world\n")

	// Replying to the reply doesn't accumulate prefixes.
	m.SetMsgID("<reply@mox.example>")
	m2, err := e.CreateReply(m, Author, ReplyOptions{NoQuote: true})
	tcheck(t, err, "reply to reply")
	tcompare(t, m2.Subject(), "Re: Budget")
	tcompare(t, m2.HeaderField("References", message.Raw), "<first@a.example> <orig@a.example> <reply@mox.example>")
	tcompare(t, m2.BodyText(), "")
}

func TestReplyStrategies(t *testing.T) {
	const listMsg = `From: Alice <alice@a.example>
To: list@l.example
Cc: mjl@mox.example
Reply-To: list@l.example
List-Post: <mailto:list@l.example?subject=hi>
Subject: Meeting
Message-Id: <list@a.example>

text
`
	const followupMsg = `From: Alice <alice@a.example>
To: list@l.example
Mail-Followup-To: followup@l.example, mjl@mox.example
List-Post: <mailto:list@l.example>
Subject: Meeting

text
`
	const plainMsg = `From: Alice <alice@a.example>
To: mjl@mox.example
Subject: Meeting

text
`
	const selfMsg = `From: mjl@mox.example
To: bob@b.example
Subject: Meeting

text
`

	e := newEngine(nil)
	check := func(msg string, strategy Strategy, expTo, expCc string) {
		t.Helper()
		m, err := e.CreateReply(parse(msg), strategy, ReplyOptions{NoQuote: true})
		tcheck(t, err, "reply")
		tcompare(t, m.To(), expTo)
		tcompare(t, m.Cc(), expCc)
	}

	check(listMsg, Smart, "list@l.example", "")
	check(listMsg, Author, "Alice <alice@a.example>", "")
	check(listMsg, List, "list@l.example", "")
	check(listMsg, All, "list@l.example", "Alice <alice@a.example>")
	check(listMsg, None, "", "")

	check(followupMsg, Smart, "followup@l.example", "")
	check(followupMsg, List, "followup@l.example", "")

	check(plainMsg, Smart, "Alice <alice@a.example>", "")
	check(plainMsg, List, "", "")
	check(plainMsg, All, "Alice <alice@a.example>", "")

	// Replies to own messages keep the own address.
	check(selfMsg, Smart, "mjl@mox.example", "")
	check(selfMsg, All, "bob@b.example", "")
}

func TestReplyOptions(t *testing.T) {
	e := newEngine(nil)
	orig := parse(origMsg)

	m, err := e.CreateReply(orig, Smart, ReplyOptions{Selection: "just this\n\nand this"})
	tcheck(t, err, "reply")
	tcompare(t, nl(m.BodyText()), "On Monday 02 January 2006 15:04, Alice wrote:\n> just this\n>\n> and this\n")

	orig.Complete = false
	_, err = e.CreateReply(orig, Smart, ReplyOptions{})
	tfail(t, err, ErrIncomplete)

	s, ok := ParseStrategy("ALL")
	tcompare(t, ok, true)
	tcompare(t, s, All)
	_, ok = ParseStrategy("bogus")
	tcompare(t, ok, false)
}

func TestReplyIdentity(t *testing.T) {
	e := newEngine(nil)
	orig := parse("X-KMail-Identity: 2\n" + origMsg)
	orig.Serial = 5
	orig.EncryptionState = message.PartiallyEncrypted
	m, err := e.CreateReply(orig, Smart, ReplyOptions{})
	tcheck(t, err, "reply")
	tcompare(t, m.From(), "Work <work@mox.example>")
	tcompare(t, m.HeaderField("X-KMail-Identity", message.Raw), "2")
	tcompare(t, m.HeaderField("X-KMail-Transport", message.Raw), "smtp-work")
	tcompare(t, m.EncryptionState, message.FullyEncrypted)
	serials, types := m.Links()
	tcompare(t, serials, []uint64{5})
	tcompare(t, types, []string{message.LinkReplied})
}

func TestForwardText(t *testing.T) {
	e := newEngine(nil)
	orig := parse(origMsg)
	m, err := e.CreateForward(orig)
	tcheck(t, err, "forward")

	tcompare(t, m.Subject(), "Fwd: Budget")
	tcompare(t, m.From(), "Mjl <mjl@mox.example>")
	tcompare(t, m.To(), "")
	tcompare(t, m.MsgID(), "")
	tcompare(t, m.Type(), "text/plain")
	exp := "\n----------  Forwarded Message  ----------\n\n" +
		"Subject: Budget\n" +
		"Date: Mon, 02 Jan 2006 15:04:05 -0700\n" +
		"From: Alice <alice@a.example>\n" +
		"To: mjl@mox.example, bob@b.example\n" +
		"Cc: carol@c.example\n" +
		"\n" +
		"hello\nworld\n" +
		"\n-------------------------------------------------------\n"
	tcompare(t, nl(m.BodyText()), exp)

	// Forwarding a forward keeps a single prefix.
	m2, err := e.CreateForward(m)
	tcheck(t, err, "forward forward")
	tcompare(t, m2.Subject(), "Fwd: Budget")
}

func TestForwardStrip(t *testing.T) {
	const signedMsg = `From: Alice <alice@a.example>
Subject: Signed
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="xyz"

--xyz
Content-Type: text/plain

the text
--xyz
Content-Type: application/pgp-signature

-----BEGIN PGP SIGNATURE-----
-----END PGP SIGNATURE-----
--xyz--
`
	conf := message.DefaultConfig()
	conf.StripWhenInlineForwarding = []string{"application/pgp-signature"}
	e := newEngine(conf)
	m, err := e.CreateForward(parse(signedMsg))
	tcheck(t, err, "forward")

	tcompare(t, m.Type(), "multipart/mixed")
	tcompare(t, m.NumBodyParts(), 1)
	bp, ok := m.BodyPart(0)
	tcompare(t, ok, true)
	text := nl(bp.Text())
	if !strings.Contains(text, "----------  Forwarded Message  ----------") || !strings.Contains(text, "the text") {
		t.Fatalf("forwarded text missing in %q", text)
	}
	if strings.Contains(m.String(), "PGP SIGNATURE") {
		t.Fatalf("signature not stripped")
	}

	// Reparsing gives the same structure.
	m = message.Parse(nil, m.Bytes())
	tcompare(t, m.NumBodyParts(), 1)
}

func TestForwardWrapped(t *testing.T) {
	const calMsg = `From: Alice <alice@a.example>
Subject: Invitation
Content-Type: text/calendar; method=REQUEST
Content-Transfer-Encoding: 7bit

BEGIN:VCALENDAR
END:VCALENDAR
`
	e := newEngine(nil)
	orig := parse(calMsg)
	m, err := e.CreateForward(orig)
	tcheck(t, err, "forward")

	tcompare(t, m.Type(), "multipart/mixed")
	tcompare(t, m.HeaderField("MIME-Version", message.Raw), "1.0")
	tcompare(t, m.NumBodyParts(), 2)
	parts := m.BodyParts()
	tcompare(t, parts[0].MediaType(), "text/plain")
	if !strings.Contains(nl(parts[0].Text()), "Subject: Invitation\n") {
		t.Fatalf("missing forwarded header fields in %q", parts[0].Text())
	}
	tcompare(t, parts[1].MediaType(), "text/calendar")
	tcompare(t, string(parts[1].Decoded()), string(orig.BodyDecoded()))
	tcompare(t, m.Subject(), "Fwd: Invitation")
}

func TestForwardHTML(t *testing.T) {
	const htmlMsg = `From: Alice <alice@a.example>
Subject: News
Content-Type: text/html; charset=utf-8

<p>Hello <b>world</b></p>
`
	e := newEngine(nil)
	m, err := e.CreateForward(parse(htmlMsg))
	tcheck(t, err, "forward")
	tcompare(t, m.Type(), "text/plain")
	text := m.BodyText()
	if !strings.Contains(text, "Hello world") || strings.Contains(text, "<b>") {
		t.Fatalf("html not converted to text: %q", text)
	}
	if !strings.Contains(text, "Subject: News") || strings.Index(text, "Subject: News") > strings.Index(text, "Hello world") {
		t.Fatalf("missing header block above text: %q", text)
	}
}

func TestRedirect(t *testing.T) {
	e := newEngine(nil)
	orig := parse(origMsg)
	orig.Serial = 3

	_, err := e.CreateRedirect(orig, "")
	tfail(t, err, ErrNoRecipient)

	m, err := e.CreateRedirect(orig, "bob@b.example")
	tcheck(t, err, "redirect")

	h := m.Header()
	var names []string
	for _, f := range h.Fields[:5] {
		names = append(names, f.Name)
	}
	tcompare(t, names, []string{"Resent-From", "Resent-To", "Resent-Date", "Resent-Message-ID", "From"})
	tcompare(t, h.Get("Resent-From"), "Mjl <mjl@mox.example>")
	tcompare(t, h.Get("Resent-To"), "bob@b.example")
	if !strings.HasSuffix(h.Get("Resent-Message-ID"), "@mox.example>") {
		t.Fatalf("bad resent message-id %q", h.Get("Resent-Message-ID"))
	}

	// The original header is kept.
	tcompare(t, m.Date(), orig.Date())
	tcompare(t, m.MsgID(), "<orig@a.example>")
	tcompare(t, m.To(), orig.To())
	tcompare(t, m.HeaderField("X-KMail-Redirect-From", message.Decoded), "Alice <alice@a.example> (by way of Mjl <mjl@mox.example>)")
	tcompare(t, m.HeaderField("X-KMail-Recipients", message.Raw), "bob@b.example")
	if strings.Contains(string(m.AsSendableString()), "X-KMail-Redirect-From") {
		t.Fatalf("private field in sendable message")
	}
	serials, types := m.Links()
	tcompare(t, serials, []uint64{3})
	tcompare(t, types, []string{message.LinkForwarded})
}

func TestDigest(t *testing.T) {
	e := newEngine(nil)

	_, err := e.ForwardDigest(nil)
	tfail(t, err, ErrNoMessages)

	origs := []*message.Message{
		parse(origMsg),
		parse("X-KMail-Identity: 2\nBcc: secret@mox.example\nSubject: Second\n\nsecond\n"),
		parse("Subject: Third\nContent-Type: text/plain; charset=utf-8\nContent-Transfer-Encoding: 8bit\n\nthird \xc3\xa9\n"),
	}
	m, err := e.ForwardDigest(origs)
	tcheck(t, err, "digest")

	tcompare(t, m.Type(), "multipart/digest")
	tcompare(t, m.HeaderField("MIME-Version", message.Raw), "1.0")
	tcompare(t, m.From(), "Work <work@mox.example>")
	tcompare(t, m.NumBodyParts(), 4)

	parts := m.BodyParts()
	tcompare(t, parts[0].MediaType(), "text/plain")
	if !strings.HasPrefix(parts[0].Text(), "This is a MIME digest forward.") {
		t.Fatalf("bad digest text %q", parts[0].Text())
	}
	var descs []string
	var ctes []message.CTE
	for _, bp := range parts[1:] {
		tcompare(t, bp.MediaType(), "message/rfc822")
		descs = append(descs, bp.ContentDescription)
		ctes = append(ctes, bp.CTE)
	}
	tcompare(t, descs, []string{"Budget (fwd)", "Second (fwd)", "Third (fwd)"})
	tcompare(t, ctes, []message.CTE{message.CTE7Bit, message.CTE7Bit, message.CTE8Bit})
	if strings.Contains(m.String(), "secret@mox.example") {
		t.Fatalf("bcc in digest")
	}

	// The digest survives a round trip.
	m = message.Parse(nil, m.Bytes())
	tcompare(t, m.Type(), "multipart/digest")
	tcompare(t, m.NumBodyParts(), 4)
}
