package moxio

import (
	"strings"
	"testing"
)

func TestBase64Writer(t *testing.T) {
	var sb strings.Builder
	bw := Base64Writer(&sb, "\r\n")
	// Written in pieces, the encoder buffers partial groups.
	for _, s := range []string{"0123456789", "01234567890123456789012345678901234567890123456789", "0123456789"} {
		if _, err := bw.Write([]byte(s)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	exp := "MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2Nzg5MDEyMzQ1Njc4OTAxMjM0NTY3ODkwMTIzNDU2\r\nNzg5MDEyMzQ1Njc4OQ==\r\n"
	if s := sb.String(); s != exp {
		t.Fatalf("base64writer, got %q, expected %q", s, exp)
	}

	// Output ending exactly at the line limit gets a single line ending.
	got := string(Base64Encode([]byte(strings.Repeat("x", 57)), "\n"))
	exp = strings.Repeat("eHh4", 19) + "\n"
	if got != exp {
		t.Fatalf("base64encode, got %q, expected %q", got, exp)
	}

	if got := Base64Encode(nil, "\r\n"); len(got) != 0 {
		t.Fatalf("base64encode of empty input, got %q", got)
	}
}
