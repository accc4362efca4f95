package message

import (
	"strings"
	"testing"
)

func TestParseHeader(t *testing.T) {
	buf := []byte("Subject: a\r\n folded\r\nnot a field\r\nX-Empty:\r\nFrom: x@mox.example\r\n\r\nbody\r\n")
	h, sep, body := parseHeader(buf)
	tcompare(t, string(sep), "\r\n")
	tcompare(t, string(body), "body\r\n")
	tcompare(t, len(h.Fields), 4)
	tcompare(t, h.Get("subject"), "a folded")
	tcompare(t, h.Fields[1].Name, "")
	tcompare(t, h.Has("X-Empty"), true)
	tcompare(t, h.Get("X-Empty"), "")

	var b strings.Builder
	b.WriteString(h.String("\r\n"))
	b.Write(sep)
	b.Write(body)
	tcompare(t, b.String(), string(buf))

	h, sep, body = parseHeader([]byte("Subject: x"))
	tcompare(t, sep, []byte(nil))
	tcompare(t, body, []byte(nil))
	tcompare(t, h.Get("Subject"), "x")
}

func TestHeaderEdit(t *testing.T) {
	var h Header
	h.Add("Received", "1")
	h.Add("Received", "2")
	h.Prepend("Return-Path", "<x@mox.example>")
	tcompare(t, h.Values("received"), []string{"1", "2"})
	tcompare(t, h.Fields[0].Name, "Return-Path")

	c := h.Clone()
	c.Set("Received", "3")
	tcompare(t, c.Values("Received"), []string{"3", "2"})
	tcompare(t, h.Values("Received"), []string{"1", "2"})

	c.Add("X-Other", "o")
	c.Add("Received", "4")
	c.Replace("received", "5")
	tcompare(t, c.Values("Received"), []string{"5"})
	tcompare(t, c.Fields[1].Name, "Received")
	tcompare(t, c.Get("X-Other"), "o")

	h.Remove("Received")
	tcompare(t, h.Values("Received"), []string{"2"})
	h.Set("Received", "")
	tcompare(t, h.Has("Received"), false)

	tcompare(t, FieldTypeOf("CC"), AddressList)
	tcompare(t, FieldTypeOf("Message-ID"), Structured)
	tcompare(t, FieldTypeOf("X-Whatever"), Unstructured)
}

func TestHeaderFolding(t *testing.T) {
	var h Header
	value := strings.TrimSpace(strings.Repeat("word ", 40))
	h.Set("Subject", value)
	h.Set("X-Token", strings.Repeat("x", 100))
	s := h.String("\r\n")
	for _, line := range strings.Split(strings.TrimSuffix(s, "\r\n"), "\r\n") {
		if len(line) > 78 && !strings.HasSuffix(line, "xxxx") {
			t.Fatalf("line too long: %q", line)
		}
	}

	p, _, _ := parseHeader([]byte(s + "\r\n"))
	tcompare(t, p.Get("Subject"), value)
	tcompare(t, p.Get("X-Token"), strings.Repeat("x", 100))

	// Line endings of the message are used.
	s = h.String("\n")
	if strings.Contains(s, "\r") {
		t.Fatalf("unexpected carriage return: %q", s)
	}
}

func TestHeaderWriter(t *testing.T) {
	w := &HeaderWriter{}
	w.Add(" ", "Keywords:")
	for i := 0; i < 20; i++ {
		w.Addf(" ", "keyword%d,", i)
	}
	s := w.String()
	for _, line := range strings.Split(strings.TrimSuffix(s, "\r\n"), "\r\n") {
		if len(line) > 78 {
			t.Fatalf("line too long: %q", line)
		}
	}
	p, _, _ := parseHeader([]byte(s))
	if !strings.HasPrefix(p.Get("Keywords"), "keyword0, keyword1,") {
		t.Fatalf("unexpected unfolded value %q", p.Get("Keywords"))
	}
}
