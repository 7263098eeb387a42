package tinyntp

type errGeneric uint8

// Generic errors common to NTP exchanges.
const (
	_              errGeneric = iota // non-initialized err
	ErrNoResponse                    // no server responded
	ErrShortPacket                   // short packet
	ErrNoServers                     // no servers configured
	ErrNotOpen                       // transport not open
)

func (err errGeneric) Error() string {
	return err.String()
}

func (err errGeneric) String() string {
	switch err {
	case ErrNoResponse:
		return "no server responded"
	case ErrShortPacket:
		return "short packet"
	case ErrNoServers:
		return "no servers configured"
	case ErrNotOpen:
		return "transport not open"
	}
	return "non-initialized err"
}
