package ntp

import (
	"log/slog"

	"github.com/soypat/tinyntp/internal"
)

func (c *Client) logenabled(lvl slog.Level) bool {
	return internal.HeapAllocDebugging || internal.LogEnabled(c.log, lvl)
}

func (c *Client) logattrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	internal.LogAttrs(c.log, lvl, msg, attrs...)
}

func (c *Client) debug(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelDebug, msg, attrs...)
}

func (c *Client) trace(msg string, attrs ...slog.Attr) {
	c.logattrs(internal.LevelTrace, msg, attrs...)
}

func (c *Client) info(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelInfo, msg, attrs...)
}

func (c *Client) warn(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelWarn, msg, attrs...)
}

func (c *Client) logerr(msg string, attrs ...slog.Attr) {
	c.logattrs(slog.LevelError, msg, attrs...)
}
