package internal

import (
	"encoding/binary"
	"log/slog"
	"net/netip"
)

// SlogAddr4 returns a slog.Attr for a 4-byte IPv4 address
// packed into a uint64 without allocating a string.
func SlogAddr4(key string, addr *[4]byte) slog.Attr {
	u64Addr := uint64(binary.BigEndian.Uint32(addr[:]))
	return slog.Uint64(key, u64Addr)
}

// SlogAddr returns a non-allocating attr for IPv4 addresses via [SlogAddr4]
// and falls back to the string form for anything else.
func SlogAddr(key string, addr netip.Addr) slog.Attr {
	if addr.Is4() {
		addr4 := addr.As4()
		return SlogAddr4(key, &addr4)
	}
	return slog.String(key, addr.String())
}
