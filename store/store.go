// Package store keeps messages in folders in a bstore database, and
// implements message.Folder on top of it.
//
// Messages are listed with only their header, as a mail client would when
// showing a folder. The full message is fetched when needed, see
// message.EnsureComplete. The MDN sent-state and the replied/forwarded flags
// of originals are persisted after messages are derived.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mjl-/bstore"

	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/mlog"
	"github.com/mjl-/mimeengine/moxvar"
)

var (
	ErrNotOpen = errors.New("folder not open")
	ErrUnknown = errors.New("no such message")
)

// Flags are the message flags kept by the store.
type Flags struct {
	Seen      bool
	Answered  bool
	Forwarded bool
	Deleted   bool
}

// Message is a stored message.
type Message struct {
	ID       int64
	Folder   string    `bstore:"nonzero,index Folder+Received"`
	Received time.Time `bstore:"default now"`

	// Canonical Message-ID, without angle brackets, lower case. Empty if the
	// message has none or it could not be parsed.
	MessageID string `bstore:"index"`
	Subject   string

	Flags   Flags
	MDNSent string // MDNSentState.String(), "unknown" if undecided.

	EncryptionState byte
	SignatureState  byte

	HeaderSize int64
	Data       []byte // Full message.
}

// DBTypes are the types stored in the database.
var DBTypes = []any{Message{}}

// OpenDB opens or creates the database at path.
func OpenDB(ctx context.Context, path string) (*bstore.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, fmt.Errorf("creating directory for database: %v", err)
	}
	log := mlog.New("store", nil)
	opts := bstore.Options{Timeout: 5 * time.Second, Perm: 0660, RegisterLogger: moxvar.RegisterLogger(path, log.Logger)}
	db, err := bstore.Open(ctx, path, &opts, DBTypes...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Folder is a named collection of messages in a database. It implements
// message.Folder. Indexes are positions in the folder, ordered by time of
// receipt, as of the last Open.
type Folder struct {
	DB   *bstore.DB
	Name string
	Conf *message.Config

	log mlog.Log
	ids []int64 // Message IDs by index, set during Open.
}

var _ message.Folder = (*Folder)(nil)

// NewFolder returns a folder. It must be opened before use as message.Folder.
func NewFolder(db *bstore.DB, name string, conf *message.Config) *Folder {
	if conf == nil {
		conf = message.DefaultConfig()
	}
	return &Folder{DB: db, Name: name, Conf: conf, log: mlog.New("store", conf.Log)}
}

// Open loads the list of messages in the folder.
func (f *Folder) Open(ctx context.Context) error {
	var ids []int64
	err := f.DB.Read(ctx, func(tx *bstore.Tx) error {
		q := bstore.QueryTx[Message](tx)
		q.FilterNonzero(Message{Folder: f.Name})
		q.SortAsc("Received", "ID")
		return q.IDs(&ids)
	})
	if err != nil {
		return fmt.Errorf("listing messages: %w", err)
	}
	f.ids = ids
	f.log.Debug("opened folder", slog.String("folder", f.Name), slog.Int("messages", len(ids)))
	return nil
}

// Close releases the message list.
func (f *Folder) Close() {
	f.ids = nil
}

// Count returns the number of messages as of the last Open.
func (f *Folder) Count() int {
	return len(f.ids)
}

// Find returns the index of the message with serial, its database ID.
func (f *Folder) Find(ctx context.Context, serial uint64) (int, error) {
	if f.ids == nil {
		return -1, ErrNotOpen
	}
	for i, id := range f.ids {
		if uint64(id) == serial {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: serial %d", ErrUnknown, serial)
}

// GetMsg returns the complete message at index.
func (f *Folder) GetMsg(ctx context.Context, index int) (*message.Message, error) {
	if f.ids == nil {
		return nil, ErrNotOpen
	}
	if index < 0 || index >= len(f.ids) {
		return nil, fmt.Errorf("%w: index %d", ErrUnknown, index)
	}
	sm := Message{ID: f.ids[index]}
	err := f.DB.Read(ctx, func(tx *bstore.Tx) error {
		return tx.Get(&sm)
	})
	if err == bstore.ErrAbsent {
		return nil, fmt.Errorf("%w: id %d", ErrUnknown, sm.ID)
	} else if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return f.message(sm, sm.Data), nil
}

// message returns the parsed message for a stored message, with the state
// kept by the store. Buf is the full message, or only its header.
func (f *Folder) message(sm Message, buf []byte) *message.Message {
	m := message.Parse(f.Conf, buf)
	m.Serial = uint64(sm.ID)
	m.Complete = len(buf) == len(sm.Data)
	m.MDNSentState = message.ParseMDNSentState(sm.MDNSent)
	if sm.EncryptionState != 0 {
		m.EncryptionState = message.EncryptionState(sm.EncryptionState)
	}
	if sm.SignatureState != 0 {
		m.SignatureState = message.SignatureState(sm.SignatureState)
	}
	return m
}

// Headers returns all messages in the folder with only their header. The
// messages are not complete, see message.EnsureComplete.
func (f *Folder) Headers(ctx context.Context) ([]*message.Message, error) {
	var l []*message.Message
	err := f.DB.Read(ctx, func(tx *bstore.Tx) error {
		q := bstore.QueryTx[Message](tx)
		q.FilterNonzero(Message{Folder: f.Name})
		q.SortAsc("Received", "ID")
		return q.ForEach(func(sm Message) error {
			l = append(l, f.message(sm, sm.Data[:sm.HeaderSize]))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return l, nil
}

// Add stores m in the folder, setting its serial.
func (f *Folder) Add(ctx context.Context, m *message.Message) error {
	buf := m.Bytes()
	sm := Message{
		Folder:          f.Name,
		Subject:         m.Subject(),
		MDNSent:         m.MDNSentState.String(),
		EncryptionState: byte(m.EncryptionState),
		SignatureState:  byte(m.SignatureState),
		HeaderSize:      int64(headerSize(buf)),
		Data:            buf,
	}
	if id, _, err := message.MessageIDCanonical(m.MsgID()); err == nil {
		sm.MessageID = id
	}
	sm.Flags = headerFlags(m)
	err := f.DB.Write(ctx, func(tx *bstore.Tx) error {
		return tx.Insert(&sm)
	})
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	m.Serial = uint64(sm.ID)
	f.log.Debug("added message", slog.String("folder", f.Name), slog.Int64("id", sm.ID), slog.Int("size", len(buf)))
	return nil
}

// headerSize returns the size of the header, including the empty line.
func headerSize(buf []byte) int {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return i + 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return i + 2
	}
	return len(buf)
}

// Get returns the stored form of the message with serial.
func (f *Folder) Get(ctx context.Context, serial uint64) (Message, error) {
	sm := Message{ID: int64(serial)}
	err := f.DB.Read(ctx, func(tx *bstore.Tx) error {
		return tx.Get(&sm)
	})
	if err == bstore.ErrAbsent || err == nil && sm.Folder != f.Name {
		return Message{}, fmt.Errorf("%w: serial %d", ErrUnknown, serial)
	} else if err != nil {
		return Message{}, fmt.Errorf("get message: %w", err)
	}
	return sm, nil
}

// FindByMessageID returns the serials of messages in the folder with the
// message-id, e.g. to find the parent of a reply.
func (f *Folder) FindByMessageID(ctx context.Context, msgID string) ([]uint64, error) {
	id, _, err := message.MessageIDCanonical(msgID)
	if err != nil {
		return nil, fmt.Errorf("parsing message-id: %w", err)
	}
	var l []uint64
	err = f.DB.Read(ctx, func(tx *bstore.Tx) error {
		q := bstore.QueryTx[Message](tx)
		q.FilterNonzero(Message{Folder: f.Name, MessageID: id})
		q.SortAsc("ID")
		return q.ForEach(func(sm Message) error {
			l = append(l, uint64(sm.ID))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("finding message-id: %w", err)
	}
	return l, nil
}

// SaveMDNState persists the MDN sent-state of m, as set by the notification
// generator.
func (f *Folder) SaveMDNState(ctx context.Context, m *message.Message) error {
	return f.update(ctx, m.Serial, func(sm *Message) {
		sm.MDNSent = m.MDNSentState.String()
	})
}

// MarkLinks sets the answered or forwarded flag on the originals m was
// derived from, typically after m was sent. Originals that are no longer
// present are skipped.
func (f *Folder) MarkLinks(ctx context.Context, m *message.Message) error {
	serials, types := m.Links()
	for i, serial := range serials {
		err := f.update(ctx, serial, func(sm *Message) {
			switch types[i] {
			case message.LinkReplied:
				sm.Flags.Answered = true
			case message.LinkForwarded:
				sm.Flags.Forwarded = true
			}
		})
		if errors.Is(err, ErrUnknown) {
			f.log.Debug("linked message not found", slog.Uint64("serial", serial))
			continue
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (f *Folder) update(ctx context.Context, serial uint64, fn func(sm *Message)) error {
	return f.DB.Write(ctx, func(tx *bstore.Tx) error {
		sm := Message{ID: int64(serial)}
		if err := tx.Get(&sm); err == bstore.ErrAbsent || err == nil && sm.Folder != f.Name {
			return fmt.Errorf("%w: serial %d", ErrUnknown, serial)
		} else if err != nil {
			return fmt.Errorf("get message: %w", err)
		}
		fn(&sm)
		if err := tx.Update(&sm); err != nil {
			return fmt.Errorf("updating message: %w", err)
		}
		return nil
	})
}
