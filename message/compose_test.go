package message

import (
	"errors"
	"strings"
	"testing"
)

func TestComposeAttachment(t *testing.T) {
	m := New(nil)
	m.SetFrom("mjl@mox.example")
	m.SetSubject("report")
	m.SetBodyText("see attached\r\n", false)
	m.SetAutomaticFields(true)
	tcompare(t, m.NumBodyParts(), 1)
	tcompare(t, m.Type(), "multipart/mixed")

	att := BodyPart{Type: "application", Subtype: "octet-stream", Name: "report.txt", Filename: "report.txt"}
	att.SetBodyAndGuessCTE([]byte("a,b\r\n1,2\r\n"), false, false)
	m.AddBodyPart(att)

	att = BodyPart{Type: "text", Subtype: "plain", Charset: "iso-8859-1", Name: "café.txt", Filename: "café.txt", Disposition: "inline"}
	att.SetBodyAndGuessCTE([]byte("caf\xe9\r\n"), false, false)
	m.AddBodyPart(att)
	tcompare(t, m.NumBodyParts(), 3)

	s := m.String()
	if !strings.HasPrefix(s, "From: mjl@mox.example\r\nSubject: report\r\n") {
		t.Fatalf("unexpected header:\n%s", s)
	}

	m = Parse(nil, []byte(s))
	tcompare(t, m.NumBodyParts(), 3)

	bp, _ := m.BodyPart(0)
	tcompare(t, bp.MediaType(), "text/plain")
	tcompare(t, bp.Text(), "see attached\r\n")

	// ASCII names are plain parameters.
	bp, _ = m.BodyPart(1)
	_, params := ParseMediaType(bp.Header.Get("Content-Type"))
	tcompare(t, params, []Param{{"name", "report.txt"}})
	tcompare(t, bp.Disposition, "attachment")
	tcompare(t, bp.FileName(), "report.txt")
	tcompare(t, string(bp.Decoded()), "a,b\r\n1,2\r\n")

	// Non-ASCII names are in both RFC 2047 and RFC 2231 form.
	bp, _ = m.BodyPart(2)
	_, params = ParseMediaType(bp.Header.Get("Content-Type"))
	tcompare(t, params, []Param{{"charset", "iso-8859-1"}, {"name", "=?iso-8859-1?q?caf=E9.txt?="}, {"name*", "iso-8859-1''caf%E9.txt"}})
	_, params = ParseMediaType(bp.Header.Get("Content-Disposition"))
	tcompare(t, params, []Param{{"filename", "=?iso-8859-1?q?caf=E9.txt?="}, {"filename*", "iso-8859-1''caf%E9.txt"}})
	tcompare(t, bp.Name, "café.txt")
	tcompare(t, bp.Filename, "café.txt")
	tcompare(t, bp.Disposition, "inline")
	tcompare(t, bp.Text(), "café\r\n")
}

func TestComposeRFC2047Only(t *testing.T) {
	conf := DefaultConfig()
	conf.RFC2047Only = true
	m := New(conf)
	m.AddBodyPart(BodyPart{Type: "application", Subtype: "pdf", Filename: "résumé.pdf", CTE: CTEBase64})

	bp, ok := m.BodyPart(0)
	tcompare(t, ok, true)
	if strings.Contains(bp.Header.Get("Content-Disposition"), "*") {
		t.Fatalf("RFC 2231 parameter with RFC2047Only: %q", bp.Header.Get("Content-Disposition"))
	}
	tcompare(t, bp.Filename, "résumé.pdf")
	tcompare(t, bp.Disposition, "attachment")
}

func TestComposeVerbatimHeader(t *testing.T) {
	const msg = "Subject: parts\r\nContent-Type: multipart/mixed; boundary=xyz\r\n\r\npreamble\r\n--xyz\r\n\r\na\r\n--xyz\r\n\r\nb\r\n--xyz--\r\nepilogue\r\n"
	m := Parse(nil, []byte(msg))
	var h Header
	h.Add("Content-Type", "text/x-custom")
	h.Add("X-Extra", "1")
	m.AddBodyPart(BodyPart{Header: h, Body: []byte("custom\r\n")})

	m = Parse(nil, m.Bytes())
	l := m.BodyParts()
	tcompare(t, len(l), 3)
	bp := l[len(l)-1]
	tcompare(t, bp.PartID, "3")
	tcompare(t, bp.MediaType(), "text/x-custom")
	tcompare(t, bp.Header.Get("X-Extra"), "1")
	tcompare(t, string(bp.Body), "custom\r\n")

	// The parts that were present are unchanged, preamble and epilogue are kept.
	s := m.String()
	if !strings.Contains(s, "\r\npreamble\r\n") || !strings.HasSuffix(s, "--\r\nepilogue\r\n") || !strings.Contains(s, "\r\n\r\na\r\n--") || !strings.Contains(s, "\r\n\r\nb\r\n--") {
		t.Fatalf("original content changed:\n%s", s)
	}
}

func TestDeleteBodyParts(t *testing.T) {
	m := Parse(nil, []byte(nestedMsg))
	m.DeleteBodyParts()
	tcompare(t, m.NumBodyParts(), 0)
	m = Parse(nil, m.Bytes())
	tcompare(t, m.NumBodyParts(), 0)
	tcompare(t, m.Type(), "multipart/mixed")
	tcompare(t, m.Subject(), "test")
}

func TestBoundaryCollision(t *testing.T) {
	m := Parse(nil, []byte(nestedMsg))
	child := m.nodes[0].children[0]
	m.nodes[child].body = []byte("--xyz\r\n")
	m.touch(child)

	m = Parse(nil, m.Bytes())
	mt, params := ParseMediaType(m.HeaderField("Content-Type", Raw))
	tcompare(t, mt, "multipart/mixed")
	boundary, _ := ParamValue(params, "boundary")
	if boundary == "xyz" || !strings.HasPrefix(boundary, "Boundary-00=_") {
		t.Fatalf("boundary not regenerated: %q", boundary)
	}
	tcompare(t, m.NumBodyParts(), 4)
	bp, _ := m.BodyPart(0)
	tcompare(t, string(bp.Body), "--xyz\r\n")
}

func TestComposer(t *testing.T) {
	c := NewComposer("\r\n")
	c.Header("Reporting-UA", "host; mimeengine")
	c.Header("Final-Recipient", "rfc822; "+strings.Repeat("x", 70)+"@mox.example")
	c.Line()
	s := string(c.Bytes())
	tcompare(t, strings.HasPrefix(s, "Reporting-UA: host; mimeengine\r\nFinal-Recipient: rfc822;\r\n "), true)
	tcompare(t, strings.HasSuffix(s, "@mox.example\r\n\r\n"), true)

	func() {
		defer func() {
			x := recover()
			err, ok := x.(error)
			if !ok || !errors.Is(err, ErrCompose) {
				t.Fatalf("expected compose error, got %v", x)
			}
		}()
		c.Header("X", "a\r\nb")
	}()
}

func TestRemoveReplaceBodyPart(t *testing.T) {
	m := Parse(nil, []byte(nestedMsg))
	err := m.RemoveBodyPart(3)
	tcheck(t, err, "remove body part")
	m = Parse(nil, m.Bytes())
	tcompare(t, m.NumBodyParts(), 3)
	tcompare(t, m.FindPart("text", "html"), -1)

	err = m.ReplaceBodyPart(0, TextBodyPart("plain", "replaced\n", nil, false))
	tcheck(t, err, "replace body part")
	m = Parse(nil, m.Bytes())
	bp, _ := m.BodyPart(0)
	tcompare(t, bp.Text(), "replaced\r\n")
	tcompare(t, bp.Charset, "utf-8")

	tfail(t, m.RemoveBodyPart(3), ErrNotFound)
	tfail(t, m.ReplaceBodyPart(-1, BodyPart{}), ErrNotFound)
}

func TestComposeBareNewlines(t *testing.T) {
	m := Parse(nil, []byte("Subject: lf\nContent-Type: text/plain\n\nhello\n"))
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	att := BodyPart{Type: "application", Subtype: "octet-stream", Filename: "data.bin", CTE: CTEBase64}
	att.SetBodyEncoded(data)
	m.AddBodyPart(att)
	m.AddBodyPart(TextBodyPart("plain", "one\ntwo\n", nil, false))

	s := m.String()
	if strings.Contains(s, "\r") {
		t.Fatalf("carriage return in message with bare newlines:\n%q", s)
	}

	m = Parse(nil, []byte(s))
	tcompare(t, m.NumBodyParts(), 3)
	bp, _ := m.BodyPart(1)
	tcompare(t, bp.Decoded(), data)
	bp, _ = m.BodyPart(2)
	tcompare(t, bp.Text(), "one\ntwo\n")
}

func TestMakeMultipartContentFields(t *testing.T) {
	m := Parse(nil, []byte("Subject: x\r\nContent-Type: text/plain\r\nContent-Disposition: attachment; filename=a.txt\r\nContent-Description: notes\r\nContent-Id: <a@mox.example>\r\n\r\nhello\r\n"))
	m.AddBodyPart(TextBodyPart("plain", "second\n", nil, false))

	h := m.Header()
	for _, k := range []string{"Content-Transfer-Encoding", "Content-Disposition", "Content-Description", "Content-Id"} {
		if h.Has(k) {
			t.Fatalf("multipart root has %s", k)
		}
	}

	m = Parse(nil, m.Bytes())
	tcompare(t, m.Type(), "multipart/mixed")
	bp, _ := m.BodyPart(0)
	tcompare(t, bp.Disposition, "attachment")
	tcompare(t, bp.Filename, "a.txt")
	tcompare(t, bp.ContentDescription, "notes")
	tcompare(t, bp.ContentID, "<a@mox.example>")
	tcompare(t, bp.Text(), "hello\r\n")
}
