package ntp

// Global parameters.
const (
	// SizeHeader is the length (in bytes) of an NTP header without
	// extension fields or authenticator.
	SizeHeader = 48
	// ServerPort is the UDP port NTP servers listen on.
	ServerPort = 123
	// UnixEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
	// and the Unix epoch (1970-01-01).
	UnixEpochOffset = 2_208_988_800
	// DefaultPoll is the poll exponent (log2 seconds) set in client requests.
	DefaultPoll int8 = 6
	// DefaultPrecision is the precision exponent set in client requests, 2**-20 s.
	DefaultPrecision int8 = -20
)

// DefaultReferenceID is the reference identifier sent in client requests.
var DefaultReferenceID = [4]byte{'1', 'N', '1', '4'}

// LeapIndicator represents the leap second indicator.
// It indicates whether there is no warning, an extra second (61 seconds in the last minute),
// a missing second (59 seconds in the last minute) or an unsynchronized clock.
type LeapIndicator uint8

const (
	LeapNoWarning    LeapIndicator = iota // no warning
	LeapLastMinute61                      // last minute 61
	LeapLastMinute59                      // last minute 59
	LeapNotSynced                         // clock unsynchronized
)

func (li LeapIndicator) String() string {
	switch li {
	case LeapNoWarning:
		return "no warning"
	case LeapLastMinute61:
		return "last minute 61"
	case LeapLastMinute59:
		return "last minute 59"
	case LeapNotSynced:
		return "unsynchronized"
	}
	return "invalid"
}

// Version is the 3-bit NTP version number field.
type Version uint8

const (
	Version3 Version = 3
	Version4 Version = 4
)

// Stratum represents the stratum level of the NTP server.
type Stratum uint8

const (
	// If the Stratum field is 0, which implies unspecified or invalid, the
	// Reference Identifier field can be used to convey messages useful for
	// status reporting and access control.  These are called Kiss-o'-Death
	// (KoD) packets and the ASCII messages they convey are called kiss codes.
	StratumUnspecified Stratum = 0  // unspecified
	StratumPrimary     Stratum = 1  // primary
	StratumUnsync      Stratum = 16 // unsynchronized
)

// String returns a human readable representation of the Stratum.
func (s Stratum) String() string {
	switch s {
	case 0:
		return "unspecified"
	case 1:
		return "primary"
	case 16:
		return "unsynchronized"
	}
	if s < 16 {
		return "secondary"
	}
	return "invalid"
}

func (s Stratum) IsSecondary() bool {
	return s > 1 && s < 16
}

// Mode represents the mode of the NTP message.
// It can be undefined, symmetric active, symmetric passive, client, server, broadcast,
// NTP control message, or private use.
type Mode uint8

const (
	modeUndef             Mode = iota // undefined
	ModeSymmetricActive               // symmetric active
	ModeSymmetricPassive              // symmetric passive
	ModeClient                        // client
	ModeServer                        // server
	ModeBroadcast                     // broadcast
	ModeNTPControlMessage             // control message
	ModePrivateUse                    // private use
)

func (m Mode) String() string {
	switch m {
	case modeUndef:
		return "undefined"
	case ModeSymmetricActive:
		return "symmetric active"
	case ModeSymmetricPassive:
		return "symmetric passive"
	case ModeClient:
		return "client"
	case ModeServer:
		return "server"
	case ModeBroadcast:
		return "broadcast"
	case ModeNTPControlMessage:
		return "control message"
	case ModePrivateUse:
		return "private use"
	}
	return "invalid"
}
