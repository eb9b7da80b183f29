package nrf70

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// levelTrace is used for per transaction bus traffic.
const levelTrace slog.Level = slog.LevelDebug - 1

// logstate is embedded by types that log. A nil logger discards all output.
type logstate struct {
	logger        *slog.Logger
	_traceenabled bool
}

func makeLogstate(logger *slog.Logger) logstate {
	return logstate{
		logger:        logger,
		_traceenabled: logger != nil && logger.Handler().Enabled(context.Background(), levelTrace),
	}
}

func (l *logstate) logerr(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelError, msg, attrs...)
}

func (l *logstate) warn(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelWarn, msg, attrs...)
}

func (l *logstate) info(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelInfo, msg, attrs...)
}

func (l *logstate) debug(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelDebug, msg, attrs...)
}

func (l *logstate) trace(msg string, attrs ...slog.Attr) {
	if l._traceenabled {
		l.logattrs(levelTrace, msg, attrs...)
	}
}

func (l *logstate) isTraceEnabled() bool { return l._traceenabled }

func (l *logstate) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if l.logger != nil {
		l.logger.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

// hexdump returns at most max bytes of b hex encoded.
func hexdump(b []byte, max int) string {
	if len(b) > max {
		b = b[:max]
	}
	return hex.EncodeToString(b)
}

func hex32(u uint32) string {
	return hex.EncodeToString([]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
}
