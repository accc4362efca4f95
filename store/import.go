package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-mbox"
	"github.com/mjl-/bstore"

	"github.com/mjl-/mimeengine/message"
)

// headerFlags returns the flags from the Status, X-Status and X-Keywords
// header fields as written by mail clients in mbox files.
//
// See https://doc.dovecot.org/admin_manual/mailbox_formats/mbox/
func headerFlags(m *message.Message) (flags Flags) {
	for _, c := range m.HeaderField("Status", message.Raw) {
		if c == 'R' {
			flags.Seen = true
		}
	}
	for _, c := range m.HeaderField("X-Status", message.Raw) {
		switch c {
		case 'A':
			flags.Answered = true
		case 'D':
			flags.Deleted = true
		}
	}
	for _, t := range strings.Split(m.HeaderField("X-Keywords", message.Raw), ",") {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "forwarded", "$forwarded":
			flags.Forwarded = true
		}
	}
	return
}

// ImportMbox adds all messages from mbox file r to the folder. Messages with
// bare newlines are stored with CRLF line endings. The number of messages
// added is returned, also on error.
func (f *Folder) ImportMbox(ctx context.Context, r io.Reader) (int, error) {
	mr := mbox.NewReader(r)
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		msgr, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return n, fmt.Errorf("reading mbox message %d: %w", n+1, err)
		}
		buf, err := io.ReadAll(msgr)
		if err != nil {
			return n, fmt.Errorf("reading mbox message %d: %w", n+1, err)
		}
		m := message.Parse(f.Conf, crlf(buf))
		if err := f.Add(ctx, m); err != nil {
			return n, err
		}
		n++
	}
	f.log.Info("imported mbox", slog.String("folder", f.Name), slog.Int("messages", n))
	return n, nil
}

// crlf replaces bare newlines with CRLF.
func crlf(buf []byte) []byte {
	if !bytes.Contains(buf, []byte("\n")) || bytes.Count(buf, []byte("\n")) == bytes.Count(buf, []byte("\r\n")) {
		return buf
	}
	buf = bytes.ReplaceAll(buf, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(buf, []byte("\n"), []byte("\r\n"))
}

// ExportMbox writes all messages of the folder to w in mbox format, with bare
// newlines. The envelope sender is the first From address, the envelope date
// the Date header, falling back to the time of receipt.
func (f *Folder) ExportMbox(ctx context.Context, w io.Writer) (int, error) {
	var l []Message
	err := f.DB.Read(ctx, func(tx *bstore.Tx) error {
		q := bstore.QueryTx[Message](tx)
		q.FilterNonzero(Message{Folder: f.Name})
		q.SortAsc("Received", "ID")
		var err error
		l, err = q.List()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("listing messages: %w", err)
	}

	mw := mbox.NewWriter(w)
	for i, sm := range l {
		m := message.Parse(f.Conf, sm.Data)
		from := "MAILER-DAEMON"
		if addrs := m.FromAddrs(); len(addrs) > 0 && addrs[0].Email() != "" {
			from = addrs[0].Email()
		}
		date := m.Date()
		if date.IsZero() {
			date = sm.Received
		}
		if date.IsZero() {
			date = time.Now()
		}
		mww, err := mw.CreateMessage(from, date)
		if err != nil {
			return i, fmt.Errorf("creating mbox message: %w", err)
		}
		buf := bytes.ReplaceAll(sm.Data, []byte("\r\n"), []byte("\n"))
		if _, err := mww.Write(buf); err != nil {
			return i, fmt.Errorf("writing mbox message: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return len(l), fmt.Errorf("closing mbox: %w", err)
	}
	f.log.Info("exported mbox", slog.String("folder", f.Name), slog.Int("messages", len(l)))
	return len(l), nil
}
