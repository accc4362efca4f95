package message

import (
	"testing"
)

func TestParamValue(t *testing.T) {
	check := func(v, name, exp string, expErr error) {
		t.Helper()
		_, params := ParseMediaType(v)
		s, err := ParamValue(params, name)
		tfail(t, err, expErr)
		if expErr == nil {
			tcompare(t, s, exp)
		}
	}

	check(`text/plain; charset="UTF-8"`, "charset", "UTF-8", nil)
	check(`text/plain; charset=utf-8`, "Charset", "utf-8", nil)
	check(`text/plain`, "charset", "", nil)
	check(`attachment; filename="a \"quoted\" name;.txt"`, "filename", `a "quoted" name;.txt`, nil)

	// RFC 2231, with continuations.
	check(`message/external-body; access-type=URL; URL*0="ftp://"; URL*1="cs.utk.edu/pub/moore/bulk-mailer/bulk-mailer.tar"`, "url", "ftp://cs.utk.edu/pub/moore/bulk-mailer/bulk-mailer.tar", nil)
	check(`application/x-stuff; title*0*=us-ascii'en'This%20is%20even%20more%20; title*1*=%2A%2A%2Afun%2A%2A%2A%20; title*2="isn't it!"`, "title", "This is even more ***fun*** isn't it!", nil)
	check(`attachment; filename*=iso-8859-1''caf%E9.txt`, "filename", "café.txt", nil)

	// RFC 2231 takes precedence, a broken RFC 2231 value falls back to the plain value.
	check(`attachment; filename=plain.txt; filename*=utf-8''caf%C3%A9.txt`, "filename", "café.txt", nil)
	check(`attachment; filename=plain.txt; filename*=nocharset`, "filename", "plain.txt", nil)
	check(`attachment; filename*=nocharset`, "filename", "", ErrParamEncoding)

	// RFC 2047 in plain parameters.
	check(`attachment; filename="=?utf-8?q?caf=C3=A9.txt?="`, "filename", "café.txt", nil)
	check(`attachment; filename="=?bogus"`, "filename", "=?bogus", nil)
}

func TestFormatMediaType(t *testing.T) {
	tcompare(t, FormatMediaType("text/plain", []Param{{"charset", "us-ascii"}, {"name", "a b.txt"}, {"name*", "utf-8''a%20b.txt"}}), `text/plain; charset=us-ascii; name="a b.txt"; name*=utf-8''a%20b.txt`)

	params := setParam([]Param{{"boundary", "x"}, {"name*0", "a"}, {"name*1", "b"}}, "name", "c")
	tcompare(t, params, []Param{{"boundary", "x"}, {"name", "c"}})
	tcompare(t, setParam(params, "boundary", ""), []Param{{"name", "c"}})

	tcompare(t, nameParams("filename", "report.txt", "iso-8859-1", false), []Param{{"filename", "report.txt"}})
	tcompare(t, nameParams("filename", "Ω.txt", "iso-8859-1", false), []Param{{"filename", "=?utf-8?q?=CE=A9.txt?="}, {"filename*", "utf-8''%CE%A9.txt"}})
	tcompare(t, nameParams("filename", "Ω.txt", "utf-8", true), []Param{{"filename", "=?utf-8?q?=CE=A9.txt?="}})
}

func TestCharsets(t *testing.T) {
	tcompare(t, DecodeCharset("iso-8859-1", []byte("caf\xe9")), "café")
	tcompare(t, DecodeCharset("latin1", []byte("caf\xe9")), "café")
	tcompare(t, DecodeCharset("utf-8", []byte("caf\xe9")), "café")
	tcompare(t, DecodeCharset("x-unknown-charset", []byte("abc")), "abc")

	buf, ok := EncodeCharset("iso-8859-15", "€")
	tcompare(t, ok, true)
	tcompare(t, buf, []byte{0xa4})
	_, ok = EncodeCharset("iso-8859-1", "€")
	tcompare(t, ok, false)
	_, ok = EncodeCharset("us-ascii", "é")
	tcompare(t, ok, false)

	prefs := []string{"us-ascii", "iso-8859-1", "utf-8"}
	tcompare(t, AutoDetectCharset("", prefs, "plain"), "us-ascii")
	tcompare(t, AutoDetectCharset("", prefs, "café"), "iso-8859-1")
	tcompare(t, AutoDetectCharset("", prefs, "Ω"), "utf-8")
	tcompare(t, AutoDetectCharset("", []string{"us-ascii"}, "Ω"), "")
	tcompare(t, AutoDetectCharset("ISO-8859-15", prefs, "€"), "iso-8859-15")

	tcompare(t, decodeHeaderValue("=?iso-8859-1?q?caf=E9?= ok", "utf-8"), "café ok")
	tcompare(t, decodeHeaderValue("raw caf\xe9", "iso-8859-1"), "raw café")

	s, err := encodeWords("Grüße aus Köln", "iso-8859-1")
	tcheck(t, err, "encode words")
	tcompare(t, s, "=?iso-8859-1?q?Gr=FC=DFe?= aus =?iso-8859-1?q?K=F6ln?=")
	tcompare(t, decodeHeaderValue(s, "utf-8"), "Grüße aus Köln")
	s, err = encodeWords("Ωmega Ψ", "utf-8")
	tcheck(t, err, "encode words")
	tcompare(t, decodeHeaderValue(s, "utf-8"), "Ωmega Ψ")
	_, err = encodeWords("Ω", "iso-8859-1")
	tfail(t, err, ErrCharset)
}
