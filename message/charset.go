package message

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/emersion/go-message/charset"
)

// charsetEncoding returns the encoding for a charset name. A nil encoding
// with true means utf-8 or us-ascii, which need no conversion.
func charsetEncoding(cs string) (encoding.Encoding, bool) {
	switch strings.ToLower(strings.TrimSpace(cs)) {
	case "", "us-ascii", "ascii", "utf-8", "utf8":
		return nil, true
	case "latin1":
		return charmap.ISO8859_1, true
	}
	enc, _ := ianaindex.MIME.Encoding(cs)
	if enc == nil {
		enc, _ = ianaindex.IANA.Encoding(cs)
	}
	if enc == nil {
		return nil, false
	}
	return enc, true
}

// charsetReader converts from charset cs to utf-8. Unknown charsets are
// tried with the go-message charset tables, and finally decoded as
// ISO-8859-1, which never fails.
func charsetReader(cs string, r io.Reader) (io.Reader, error) {
	enc, ok := charsetEncoding(cs)
	if ok {
		if enc == nil {
			return r, nil
		}
		return enc.NewDecoder().Reader(r), nil
	}
	if cr, err := charset.Reader(cs, r); err == nil {
		return cr, nil
	}
	return charmap.ISO8859_1.NewDecoder().Reader(r), nil
}

var wordDecoder = mime.WordDecoder{
	CharsetReader: charsetReader,
}

// DecodeCharset returns buf converted from charset cs to utf-8. Invalid
// utf-8 in a utf-8 or us-ascii text is interpreted as ISO-8859-1. Decoding
// never fails, but may produce replacement characters.
func DecodeCharset(cs string, buf []byte) string {
	enc, ok := charsetEncoding(cs)
	if ok && enc == nil {
		if utf8.Valid(buf) {
			return string(buf)
		}
		enc = charmap.ISO8859_1
	}
	if enc != nil {
		if s, err := enc.NewDecoder().Bytes(buf); err == nil {
			return string(s)
		}
	}
	r, _ := charsetReader(cs, bytes.NewReader(buf))
	s, err := io.ReadAll(r)
	if err != nil {
		s, _ = charmap.ISO8859_1.NewDecoder().Bytes(buf)
	}
	return string(s)
}

// EncodeCharset converts s to charset cs. It returns false if s cannot be
// represented losslessly in cs.
func EncodeCharset(cs string, s string) ([]byte, bool) {
	if strings.EqualFold(cs, "us-ascii") || strings.EqualFold(cs, "ascii") {
		return []byte(s), isASCII(s)
	}
	enc, ok := charsetEncoding(cs)
	if !ok {
		return nil, false
	}
	if enc == nil {
		return []byte(s), utf8.ValidString(s)
	}
	buf, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	// Some encoders substitute instead of failing.
	back, err := enc.NewDecoder().Bytes(buf)
	if err != nil || string(back) != s {
		return nil, false
	}
	return buf, true
}

// AutoDetectCharset returns the first charset that can represent text,
// trying current first, then the preferred charsets in order. If none can,
// the empty string is returned and callers use utf-8.
func AutoDetectCharset(current string, prefs []string, text string) string {
	var l []string
	if current != "" {
		l = append(l, strings.ToLower(current))
	}
	for _, cs := range prefs {
		cs = strings.ToLower(cs)
		if cs != "" && (len(l) == 0 || cs != l[0]) {
			l = append(l, cs)
		}
	}
	for _, cs := range l {
		if text == "" {
			return cs
		}
		if _, ok := EncodeCharset(cs, text); ok {
			return cs
		}
	}
	return ""
}

// charsetFor returns the charset for text in message m: the detected
// charset, or utf-8.
func (m *Message) charsetFor(text string) string {
	cs := AutoDetectCharset(m.Charset(), m.conf.PreferredCharsets, text)
	if cs == "" {
		cs = "utf-8"
	}
	return cs
}

// decodeHeaderValue returns the RFC 2047 decoded value. Raw 8-bit data is
// interpreted in charset cs.
func decodeHeaderValue(v string, cs string) string {
	if !utf8.ValidString(v) {
		v = DecodeCharset(cs, []byte(v))
	}
	if !strings.Contains(v, "=?") {
		return v
	}
	s, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return s
}

// encodeWords returns s with its non-ASCII words RFC 2047 Q-encoded in
// charset cs. A run of non-ASCII words is encoded as a whole, so the spaces
// between them survive decoding.
func encodeWords(s string, cs string) (string, error) {
	if isASCII(s) {
		return s, nil
	}
	words := strings.Split(s, " ")
	var r []string
	for i := 0; i < len(words); {
		if isASCII(words[i]) {
			r = append(r, words[i])
			i++
			continue
		}
		j := i + 1
		for j < len(words) && !isASCII(words[j]) {
			j++
		}
		text := strings.Join(words[i:j], " ")
		buf, ok := EncodeCharset(cs, text)
		if !ok {
			return "", fmt.Errorf("%w: text not representable in charset %q", ErrCharset, cs)
		}
		r = append(r, mime.QEncoding.Encode(cs, string(buf)))
		i = j
	}
	return strings.Join(r, " "), nil
}

func isASCII(s string) bool {
	for _, c := range []byte(s) {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
