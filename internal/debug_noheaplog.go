//go:build !debugheaplog

package internal

import (
	"context"
	"log/slog"
)

const HeapAllocDebugging = false

// LogEnabled reports whether l is non-nil and handles lvl.
func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs logs through l if it is non-nil. Building with the `debugheaplog`
// tag swaps it for a print based logger that reports heap allocations.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
