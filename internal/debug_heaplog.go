//go:build debugheaplog

package internal

import (
	"log/slog"
	"time"
	"unsafe"
)

const (
	HeapAllocDebugging = true
	timefmt            = "[15:04:05.000]"
)

var timebuf [len(timefmt) * 2]byte

func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return true
}

// LogAttrs prints with the runtime's print builtins so that logging itself
// does not allocate, then reports any heap growth caused by the caller.
func LogAttrs(_ *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	LogAllocs(msg)
	n := len(time.Now().AppendFormat(timebuf[:0], timefmt))
	print(unsafe.String(&timebuf[0], n), " ")
	if level == LevelTrace {
		print("TRACE ")
	} else {
		print(level.String(), " ")
	}
	print(msg)
	for _, a := range attrs {
		switch a.Value.Kind() {
		case slog.KindString:
			print(" ", a.Key, "=", a.Value.String())
		case slog.KindInt64:
			print(" ", a.Key, "=", a.Value.Int64())
		case slog.KindUint64:
			print(" ", a.Key, "=", a.Value.Uint64())
		case slog.KindDuration:
			print(" ", a.Key, "=", int64(a.Value.Duration()), "ns")
		case slog.KindBool:
			print(" ", a.Key, "=", a.Value.Bool())
		}
	}
	println()
}
