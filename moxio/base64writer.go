// Package moxio has i/o helpers for writing message bodies.
package moxio

import (
	"bytes"
	"encoding/base64"
	"io"
)

// ../rfc/2045:1393
const base64LineLength = 76

// Base64Writer returns a writer that base64-encodes data written to it onto w,
// in lines of at most 76 characters, each ending in nl ("\r\n" or "\n"). Close
// flushes remaining data and ends the last line, it does not close w.
func Base64Writer(w io.Writer, nl string) io.WriteCloser {
	lw := &lineWrapper{w: w, nl: []byte(nl)}
	return &base64Writer{base64.NewEncoder(base64.StdEncoding, lw), lw}
}

type base64Writer struct {
	enc io.WriteCloser
	lw  *lineWrapper
}

func (w *base64Writer) Write(buf []byte) (int, error) {
	return w.enc.Write(buf)
}

func (w *base64Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.lw.endLine()
}

// Base64Encode returns buf base64-encoded in wrapped lines, see Base64Writer.
func Base64Encode(buf []byte, nl string) []byte {
	var b bytes.Buffer
	bw := Base64Writer(&b, nl)
	bw.Write(buf) // Writes to bytes.Buffer don't fail.
	bw.Close()
	return b.Bytes()
}

// lineWrapper inserts nl after each base64LineLength bytes.
type lineWrapper struct {
	w  io.Writer
	nl []byte
	n  int // Bytes on the current line.
}

func (lw *lineWrapper) Write(buf []byte) (int, error) {
	var written int
	for len(buf) > 0 {
		chunk := min(base64LineLength-lw.n, len(buf))
		n, err := lw.w.Write(buf[:chunk])
		written += n
		lw.n += n
		buf = buf[n:]
		if err != nil {
			return written, err
		}
		if lw.n == base64LineLength {
			if err := lw.endLine(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (lw *lineWrapper) endLine() error {
	if lw.n == 0 {
		return nil
	}
	lw.n = 0
	_, err := lw.w.Write(lw.nl)
	return err
}
