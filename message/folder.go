package message

import (
	"context"
	"fmt"
	"log/slog"
)

// Folder gives access to stored messages. Storage may keep just the header of
// a message until its body is fetched.
type Folder interface {
	Open(ctx context.Context) error
	Close()
	// Find returns the index of the message with serial, or an error.
	Find(ctx context.Context, serial uint64) (int, error)
	// GetMsg returns the complete message at index.
	GetMsg(ctx context.Context, index int) (*Message, error)
}

// EnsureComplete makes m complete by fetching it from folder, replacing its
// content. Operations on the body, such as creating replies, require a
// complete message.
func EnsureComplete(ctx context.Context, folder Folder, m *Message) error {
	if m.Complete {
		return nil
	}
	if err := folder.Open(ctx); err != nil {
		return fmt.Errorf("open folder: %w", err)
	}
	defer folder.Close()

	idx, err := folder.Find(ctx, m.Serial)
	if err != nil {
		return fmt.Errorf("find message %d: %w", m.Serial, err)
	}
	full, err := folder.GetMsg(ctx, idx)
	if err != nil {
		return fmt.Errorf("get message %d: %w", m.Serial, err)
	}
	m.nodes = full.Clone().nodes
	m.nl = full.nl
	m.Complete = true
	m.log.Debug("completed message from folder", slog.Uint64("serial", m.Serial))
	return nil
}
