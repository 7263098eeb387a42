package ntp

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"time"

	"github.com/soypat/tinyntp"
	"github.com/soypat/tinyntp/internal"
)

const (
	// DefaultTimeout is the time a Client waits for each server to respond.
	DefaultTimeout = 2 * time.Second
	// DefaultPollInterval is the interval between checks for a response.
	DefaultPollInterval = 10 * time.Millisecond
	// maxStale bounds the datagrams discarded before a send. Any left over are
	// filtered by source while awaiting the reply.
	maxStale = 8
)

var (
	errNilTransport   = errors.New("ntp: nil transport")
	errNegativeWait   = errors.New("ntp: negative timeout or poll interval")
	errPollTooLong    = errors.New("ntp: poll interval exceeds timeout")
	errClientClosed   = errors.New("ntp: client closed")
	errInvalidAddress = errors.New("ntp: invalid server address")
)

// ClientConfig configures a [Client]. Only Transport is required.
type ClientConfig struct {
	// Transport is owned by the Client after [Client.Reset].
	Transport Transport
	// Servers is an initial list of server addresses queried in order. It is copied.
	Servers []netip.Addr
	// ServerPort is the destination port of requests. Defaults to [ServerPort].
	ServerPort uint16
	// Timeout is the time each server is given to respond. Defaults to [DefaultTimeout].
	Timeout time.Duration
	// PollInterval is the sleep between checks for a response while waiting.
	// Defaults to [DefaultPollInterval]. Setting it equal to Timeout makes
	// the Client check for a response once per server after the full wait.
	PollInterval time.Duration
	// Logger is optional. A nil logger disables logging.
	Logger *slog.Logger
	// Now and Sleep replace time.Now and time.Sleep when set.
	Now   func() time.Time
	Sleep func(time.Duration)
}

// Client queries a list of NTP servers in order over a [Transport] and decodes
// the transmit timestamp of the first reply. Client is not safe for concurrent use.
type Client struct {
	tr        Transport
	servers   []netip.Addr
	responder netip.Addr
	log       *slog.Logger
	now       func() time.Time
	sleep     func(time.Duration)
	timeout   time.Duration
	poll      time.Duration
	svport    uint16
	open      bool
	closed    bool
	vld       tinyntp.Validator
	// buf holds the request on send and the reply after a decode call.
	buf [SizeHeader]byte
}

// Reset configures the Client and takes ownership of cfg.Transport.
// A transport owned from a previous configuration is not closed; call [Client.Close] first.
func (c *Client) Reset(cfg ClientConfig) error {
	if cfg.Transport == nil {
		return errNilTransport
	} else if cfg.Timeout < 0 || cfg.PollInterval < 0 {
		return errNegativeWait
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	poll := cfg.PollInterval
	if poll == 0 {
		poll = min(DefaultPollInterval, timeout)
	}
	if poll > timeout {
		return errPollTooLong
	}
	svport := cfg.ServerPort
	if svport == 0 {
		svport = ServerPort
	}
	for _, addr := range cfg.Servers {
		if !addr.IsValid() {
			return errInvalidAddress
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	*c = Client{
		tr:      cfg.Transport,
		servers: append([]netip.Addr(nil), cfg.Servers...),
		log:     cfg.Logger,
		now:     now,
		sleep:   sleep,
		timeout: timeout,
		poll:    poll,
		svport:  svport,
		vld:     tinyntp.NewValidator(tinyntp.ValidateAllowVersion3),
	}
	return nil
}

// AddServer appends addr to the list of servers. Servers are queried in the
// order they were added. Duplicates are not checked for.
func (c *Client) AddServer(addr netip.Addr) {
	c.servers = append(c.servers, addr)
}

// Servers returns the server list in query order. The returned slice must not be modified.
func (c *Client) Servers() []netip.Addr { return c.servers }

// Timeout returns the time each server is given to respond.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Transport returns the transport owned by the Client.
func (c *Client) Transport() Transport { return c.tr }

// Open binds the underlying transport to localPort.
func (c *Client) Open(localPort uint16) error {
	if c.closed {
		return errClientClosed
	} else if c.tr == nil {
		return errNilTransport
	}
	err := c.tr.Open(localPort)
	if err != nil {
		return err
	}
	c.open = true
	c.debug("ntp:open", slog.Uint64("lport", uint64(localPort)))
	return nil
}

// ParsePacket checks the transport for a received datagram and returns its size, or 0 if none.
func (c *Client) ParsePacket() int {
	return c.tr.ParsePacket()
}

// SendRequest sends a request to each server in order until one of them
// responds within the timeout. It reports whether any server responded.
// Each server is tried once per call. See [Client.Request].
func (c *Client) SendRequest() bool {
	_, err := c.Request()
	return err == nil
}

// Request sends a request to each server in order until one of them responds
// within the timeout and returns the responding server's address.
// [tinyntp.ErrNoResponse] is returned if no server responded. On success the
// reply is pending on the transport and can be read with [Client.DecodeSeconds],
// [Client.DecodeFrame] or [Client.DecodeTime].
func (c *Client) Request() (netip.Addr, error) {
	c.responder = netip.Addr{}
	if c.closed {
		return netip.Addr{}, errClientClosed
	} else if !c.open {
		return netip.Addr{}, tinyntp.ErrNotOpen
	} else if len(c.servers) == 0 {
		return netip.Addr{}, tinyntp.ErrNoServers
	}
	for _, addr := range c.servers {
		c.discardStale()
		c.constructRequest()
		c.debug("ntp:send", internal.SlogAddr("addr", addr), slog.Uint64("rport", uint64(c.svport)))
		err := c.transmit(addr)
		if err != nil {
			c.logerr("ntp:tx-fail", internal.SlogAddr("addr", addr), slog.String("err", err.Error()))
			continue
		}
		n := c.awaitResponse(addr)
		if n > 0 {
			c.responder = addr
			c.info("ntp:response", internal.SlogAddr("addr", addr), slog.Int("plen", n))
			return addr, nil
		}
		c.debug("ntp:timeout", internal.SlogAddr("addr", addr), slog.Duration("wait", c.timeout))
	}
	c.warn("ntp:no-response", slog.Int("servers", len(c.servers)))
	return netip.Addr{}, tinyntp.ErrNoResponse
}

// Responder returns the address of the server that answered the last
// request, or the zero Addr if the last request failed.
func (c *Client) Responder() netip.Addr { return c.responder }

// DecodeSeconds reads the reply and returns its transmit timestamp seconds
// converted to seconds since the Unix epoch. The call must follow a successful
// request, otherwise the result is meaningless. See [Client.DecodeTime] for a checked version.
func (c *Client) DecodeSeconds() uint32 {
	c.tr.Read(c.buf[:])
	frm := Frame{buf: c.buf[:]}
	return frm.TransmitTime().UnixSeconds()
}

// DecodeFrame reads the reply and validates it as a server reply. The
// returned frame aliases the Client's buffer and is valid until the next request.
func (c *Client) DecodeFrame() (Frame, error) {
	n, err := c.tr.Read(c.buf[:])
	if err != nil {
		return Frame{}, err
	} else if n < SizeHeader {
		return Frame{}, tinyntp.ErrShortPacket
	}
	frm, err := NewFrame(c.buf[:])
	if err != nil {
		return Frame{}, err
	}
	c.vld.ResetErr()
	frm.ValidateExceptCRC(&c.vld)
	if c.vld.HasError() {
		return Frame{}, c.vld.Err()
	}
	if c.logenabled(internal.LevelTrace) {
		mode, version, leap := frm.Flags()
		c.trace("ntp:decode",
			slog.String("mode", mode.String()),
			slog.Uint64("version", uint64(version)),
			slog.String("leap", leap.String()),
			slog.String("stratum", frm.Stratum().String()),
			slog.Uint64("xmt", uint64(frm.TransmitTime())),
		)
	}
	return frm, nil
}

// DecodeTime reads and validates the reply and returns its transmit time.
func (c *Client) DecodeTime() (time.Time, error) {
	frm, err := c.DecodeFrame()
	if err != nil {
		return time.Time{}, err
	}
	return frm.TransmitTime().Time(), nil
}

// Close closes the owned transport if it implements io.Closer. Calling Close
// more than once is a no-op.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.open = false
	if closer, ok := c.tr.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// constructRequest zeroes the buffer and writes a client mode request header.
func (c *Client) constructRequest() {
	frm := Frame{buf: c.buf[:]}
	frm.ClearHeader()
	frm.SetFlags(ModeClient, Version4, LeapNotSynced)
	frm.SetStratum(StratumUnspecified)
	frm.SetPoll(DefaultPoll)
	frm.SetPrecision(DefaultPrecision)
	frm.SetReferenceID(DefaultReferenceID)
}

func (c *Client) transmit(addr netip.Addr) error {
	err := c.tr.BeginPacket(addr, c.svport)
	if err != nil {
		return err
	}
	_, err = c.tr.Write(c.buf[:])
	if err != nil {
		return err
	}
	return c.tr.EndPacket()
}

// awaitResponse polls the transport until a datagram from addr at the server
// port is pending or the timeout elapses. It returns the pending datagram size or 0.
func (c *Client) awaitResponse(addr netip.Addr) int {
	deadline := c.now().Add(c.timeout)
	maxIter := int(c.timeout/c.poll) + 1
	for i := 0; i < maxIter; i++ {
		n := c.parseFrom(addr, deadline)
		if n > 0 {
			return n
		} else if !c.now().Before(deadline) {
			return 0
		}
		c.sleep(c.poll)
	}
	return c.parseFrom(addr, deadline)
}

// parseFrom checks for a datagram from addr at the server port, discarding
// datagrams from any other source. Discarding stops once deadline is reached.
func (c *Client) parseFrom(addr netip.Addr, deadline time.Time) int {
	addr = addr.Unmap()
	for {
		n := c.tr.ParsePacket()
		if n == 0 {
			return 0
		}
		src := c.tr.RemoteAddr()
		if src.Addr().Unmap() == addr && src.Port() == c.svport {
			return n
		}
		c.debug("ntp:stale-discard", internal.SlogAddr("src", src.Addr()), slog.Uint64("sport", uint64(src.Port())), slog.Int("plen", n))
		if !c.now().Before(deadline) {
			return 0
		}
	}
}

func (c *Client) discardStale() {
	for i := 0; i < maxStale; i++ {
		n := c.tr.ParsePacket()
		if n == 0 {
			return
		}
		src := c.tr.RemoteAddr()
		c.debug("ntp:stale-discard", internal.SlogAddr("src", src.Addr()), slog.Int("plen", n))
	}
}
