package message

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"

	"github.com/mjl-/mimeengine/moxio"
)

// encodeBody returns buf encoded with cte, with nl as line ending for
// generated lines.
func encodeBody(buf []byte, cte CTE, nl string) []byte {
	switch cte {
	case CTEQuotedPrintable:
		var b bytes.Buffer
		w := quotedprintable.NewWriter(&b)
		// Writes to a bytes.Buffer don't fail.
		w.Write(buf)
		w.Close()
		r := b.Bytes()
		if nl != "\r\n" {
			r = bytes.ReplaceAll(r, []byte("\r\n"), []byte(nl))
		}
		return r
	case CTEBase64:
		return moxio.Base64Encode(buf, nl)
	}
	return buf
}

// decodeBody returns buf with transfer encoding cte removed. Decoding is
// lenient, content after invalid encoding is dropped.
func decodeBody(buf []byte, cte CTE) []byte {
	switch cte {
	case CTEQuotedPrintable:
		r, _ := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(buf)))
		return r
	case CTEBase64:
		clean := make([]byte, 0, len(buf))
		for _, c := range buf {
			switch c {
			case ' ', '\t', '\r', '\n':
			default:
				clean = append(clean, c)
			}
		}
		enc := base64.StdEncoding
		if len(clean)%4 != 0 {
			clean = bytes.TrimRight(clean, "=")
			enc = base64.RawStdEncoding
		}
		dst := make([]byte, enc.DecodedLen(len(clean)))
		n, _ := enc.Decode(dst, clean)
		return dst[:n]
	}
	return buf
}
