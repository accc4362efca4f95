package moxvar

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"testing"
)

// RegisterLogger returns the logger for schema changes when opening the
// bstore database at path, for bstore.Options.RegisterLogger.
//
// Tests create many fresh databases. Registering types for those logs only
// noise, so nil is returned for a database that doesn't exist yet while
// testing.
func RegisterLogger(path string, log *slog.Logger) *slog.Logger {
	if testing.Testing() {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	return log
}
