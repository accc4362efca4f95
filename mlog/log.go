// Package mlog provides logging on top of slog with per-package log levels.
//
// Each package that logs creates a Log with New, passing the package name
// and an optional parent *slog.Logger. The "pkg" attribute is used to find
// the configured log level. Logging strings themselves should be constant,
// variable data goes into attributes.
//
// Functions ending in "x" take an error as second parameter. If the error is
// nil, nothing special happens. Otherwise it is added as attribute "err".
package mlog

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Logfmt selects logfmt-style output instead of the human-oriented default.
var Logfmt bool

// Extra levels besides the standard slog levels.
const (
	LevelTrace = slog.LevelDebug - 4
	LevelPrint = slog.LevelError + 4 // Printed regardless of configured level.
	LevelFatal = slog.LevelError + 8 // Printed regardless of configured level.
)

// LevelStrings maps levels to their configuration names.
var LevelStrings = map[slog.Level]string{
	LevelTrace:      "trace",
	slog.LevelDebug: "debug",
	slog.LevelInfo:  "info",
	slog.LevelWarn:  "warn",
	slog.LevelError: "error",
	LevelPrint:      "print",
	LevelFatal:      "fatal",
}

// Levels maps configuration names to levels.
var Levels = map[string]slog.Level{
	"trace": LevelTrace,
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
	"print": LevelPrint,
	"fatal": LevelFatal,
}

// Holds a map[string]slog.Level, mapping a package (attribute pkg in logs) to
// a log level. The empty string is the default/fallback log level.
var config atomic.Value

func init() {
	config.Store(map[string]slog.Level{"": slog.LevelError})
}

// SetConfig atomically sets the new log levels used by all Log instances.
func SetConfig(c map[string]slog.Level) {
	config.Store(c)
}

// Output is where log lines are written. Tests can replace it.
var Output io.Writer = os.Stderr

var outputMutex sync.Mutex

// Log wraps an slog.Logger, adding convenience functions with an error
// parameter.
type Log struct {
	*slog.Logger
}

// New returns a Log for package pkg. If elog is nil, a logger writing to
// Output with the configured levels is created.
func New(pkg string, elog *slog.Logger) Log {
	if elog == nil {
		elog = slog.New(&handler{})
	}
	return Log{elog.With(slog.String("pkg", pkg))}
}

// WithPkg returns a Log with a different pkg attribute. Levels are looked up
// for the most recently set pkg.
func (l Log) WithPkg(pkg string) Log {
	return Log{l.Logger.With(slog.String("pkg", pkg))}
}

// WithContext returns the Log unchanged, it exists for call sites that pass
// contexts around.
func (l Log) WithContext(ctx context.Context) Log {
	return l
}

func (l Log) Fatal(msg string, attrs ...slog.Attr) { l.Fatalx(msg, nil, attrs...) }
func (l Log) Fatalx(msg string, err error, attrs ...slog.Attr) {
	l.logx(LevelFatal, err, msg, attrs...)
	os.Exit(1)
}

func (l Log) Print(msg string, attrs ...slog.Attr) { l.logx(LevelPrint, nil, msg, attrs...) }
func (l Log) Printx(msg string, err error, attrs ...slog.Attr) {
	l.logx(LevelPrint, err, msg, attrs...)
}

func (l Log) Trace(msg string, attrs ...slog.Attr) { l.logx(LevelTrace, nil, msg, attrs...) }

func (l Log) Debug(msg string, attrs ...slog.Attr) { l.logx(slog.LevelDebug, nil, msg, attrs...) }
func (l Log) Debugx(msg string, err error, attrs ...slog.Attr) {
	l.logx(slog.LevelDebug, err, msg, attrs...)
}

func (l Log) Info(msg string, attrs ...slog.Attr) { l.logx(slog.LevelInfo, nil, msg, attrs...) }
func (l Log) Infox(msg string, err error, attrs ...slog.Attr) {
	l.logx(slog.LevelInfo, err, msg, attrs...)
}

func (l Log) Error(msg string, attrs ...slog.Attr) { l.logx(slog.LevelError, nil, msg, attrs...) }
func (l Log) Errorx(msg string, err error, attrs ...slog.Attr) {
	l.logx(slog.LevelError, err, msg, attrs...)
}

// Check logs an error if err is not nil. Intended for logging errors that are
// good to know, but would not influence program flow.
func (l Log) Check(err error, msg string, attrs ...slog.Attr) {
	if err != nil {
		l.Errorx(msg, err, attrs...)
	}
}

func (l Log) logx(level slog.Level, err error, msg string, attrs ...slog.Attr) {
	ctx := context.Background()
	if !l.Logger.Enabled(ctx, level) {
		return
	}
	if err != nil {
		attrs = append([]slog.Attr{slog.String("err", err.Error())}, attrs...)
	}
	l.Logger.LogAttrs(ctx, level, msg, attrs...)
}

// handler writes log lines to Output, filtering on the per-package levels.
type handler struct {
	pkg   string
	attrs []slog.Attr
	group string
}

var _ slog.Handler = (*handler)(nil)

// levelFor returns the configured level for pkg, or the default level.
func levelFor(pkg string) slog.Level {
	cl := config.Load().(map[string]slog.Level)
	if lvl, ok := cl[pkg]; ok {
		return lvl
	}
	return cl[""]
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= LevelPrint {
		return true
	}
	return level >= levelFor(h.pkg)
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	attrs := append([]slog.Attr{}, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	// Build the complete line first, so concurrent writers don't interleave.
	b := &bytes.Buffer{}
	lvl := LevelStrings[r.Level]
	if lvl == "" {
		lvl = r.Level.String()
	}
	if Logfmt {
		fmt.Fprintf(b, "t=%s l=%s m=%s", r.Time.Format(time.RFC3339Nano), lvl, logfmtValue(r.Message))
		for _, a := range attrs {
			fmt.Fprintf(b, " %s=%s", h.key(a.Key), logfmtValue(stringValue(a.Value)))
		}
	} else {
		fmt.Fprintf(b, "%s: %s", lvl, logfmtValue(r.Message))
		for i, a := range attrs {
			if i == 0 {
				b.WriteString(" (")
			} else {
				b.WriteString("; ")
			}
			fmt.Fprintf(b, "%s: %s", h.key(a.Key), logfmtValue(stringValue(a.Value)))
		}
		if len(attrs) > 0 {
			b.WriteString(")")
		}
	}
	b.WriteString("\n")

	outputMutex.Lock()
	defer outputMutex.Unlock()
	_, err := Output.Write(b.Bytes())
	return err
}

func (h *handler) key(k string) string {
	if h.group != "" {
		return h.group + "." + k
	}
	return k
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == "pkg" && h.group == "" {
			nh.pkg = a.Value.String()
		}
	}
	return &nh
}

func (h *handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	if nh.group != "" {
		nh.group += "." + name
	} else {
		nh.group = name
	}
	return &nh
}

// escape logfmt string if required, otherwise return original string.
func logfmtValue(s string) string {
	for _, c := range s {
		if c == '"' || c == '\\' || c <= ' ' || c == '=' || c >= 0x7f {
			return fmt.Sprintf("%q", s)
		}
	}
	return s
}

func stringValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindGroup:
		var l []string
		for _, a := range v.Group() {
			l = append(l, a.Key+"="+stringValue(a.Value))
		}
		return "[" + strings.Join(l, " ") + "]"
	case slog.KindAny:
		switch x := v.Any().(type) {
		case []byte:
			return base64.RawURLEncoding.EncodeToString(x)
		case []string:
			return "[" + strings.Join(x, ",") + "]"
		case error:
			return x.Error()
		}
	}
	return v.String()
}
