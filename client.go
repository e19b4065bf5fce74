package contactsync

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/pior/contactsync/wire"
)

// DialerConfig configures how a peer reaches the bridge.
type DialerConfig struct {
	// SocketPath of the bridge. If empty, DefaultSocketPath(DefaultAppName).
	SocketPath string

	// Timeout bounds connection setup. Zero means no limit.
	Timeout time.Duration

	// MaxLineLength bounds response lines. Default: 8192.
	MaxLineLength int

	// CircuitBreakerSettings, when set, wraps dialing in a circuit breaker
	// so a missing bridge fails fast after repeated attempts.
	CircuitBreakerSettings *gobreaker.Settings
}

// Dialer opens peer sessions.
type Dialer struct {
	config  DialerConfig
	dialer  net.Dialer
	breaker *gobreaker.CircuitBreaker[net.Conn]
}

// NewDialer returns a Dialer for config.
func NewDialer(config DialerConfig) *Dialer {
	if config.SocketPath == "" {
		config.SocketPath = DefaultSocketPath(DefaultAppName)
	}
	if config.MaxLineLength == 0 {
		config.MaxLineLength = wire.MaxLineLength
	}

	d := &Dialer{
		config: config,
		dialer: net.Dialer{Timeout: config.Timeout},
	}
	if config.CircuitBreakerSettings != nil {
		d.breaker = gobreaker.NewCircuitBreaker[net.Conn](*config.CircuitBreakerSettings)
	}
	return d
}

// Dial connects to the bridge.
func (d *Dialer) Dial(ctx context.Context) (*Client, error) {
	dial := func() (net.Conn, error) {
		return d.dialer.DialContext(ctx, "unix", d.config.SocketPath)
	}

	var (
		conn net.Conn
		err  error
	)
	if d.breaker != nil {
		conn, err = d.breaker.Execute(dial)
	} else {
		conn, err = dial()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.config.SocketPath, err)
	}

	return newClient(conn, d.config.MaxLineLength), nil
}

// State returns the circuit breaker state, or gobreaker.StateClosed when no
// breaker is configured.
func (d *Dialer) State() gobreaker.State {
	if d.breaker == nil {
		return gobreaker.StateClosed
	}
	return d.breaker.State()
}

// Dial connects to the bridge listening on socketPath.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	return NewDialer(DialerConfig{SocketPath: socketPath}).Dial(ctx)
}

// Client drives a session from the peer side. It is not safe for concurrent
// use: the protocol is strictly request/response.
type Client struct {
	conn net.Conn
	r    *wire.Reader
	w    *wire.Writer
}

func newClient(conn net.Conn, maxLineLength int) *Client {
	return &Client{
		conn: conn,
		r:    wire.NewReaderSize(conn, maxLineLength),
		w:    wire.NewWriter(conn),
	}
}

// RequestContacts exports every contact of the bridge. Records are returned
// as received, one vCard per element.
func (c *Client) RequestContacts(ctx context.Context) ([]string, error) {
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	if err := c.w.WriteToken(wire.TokenRequestContacts); err != nil {
		return nil, err
	}

	var records []string
	for {
		line, err := c.r.ReadLine()
		if err != nil {
			return nil, c.unexpected(err)
		}
		switch line {
		case wire.TokenStartContact:
			record, err := c.r.ReadUntil(wire.TokenEndContact)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		case wire.TokenDone:
			return records, nil
		}
	}
}

// Modify sends a replacement record for a contact exported in this session.
func (c *Client) Modify(ctx context.Context, id, record string) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	c.w.WriteLine(wire.TokenModifyContact)
	c.w.WriteLine(id)
	if err := c.w.WriteRecord(record, wire.TokenDone); err != nil {
		return err
	}
	return c.readStatus()
}

// Delete removes a contact exported in this session.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.begin(ctx); err != nil {
		return err
	}
	c.w.WriteLine(wire.TokenDeleteContact)
	if err := c.w.WriteToken(id); err != nil {
		return err
	}
	return c.readStatus()
}

// Add creates a contact and returns the canonical record, carrying the
// identifier assigned by the bridge.
func (c *Client) Add(ctx context.Context, record string) (string, error) {
	if err := c.begin(ctx); err != nil {
		return "", err
	}
	c.w.WriteLine(wire.TokenAddContact)
	c.w.WriteLine(wire.TokenStartContact)
	c.w.WriteLine(trimTrailingNewline(record))
	c.w.WriteLine(wire.TokenEndContact)
	if err := c.w.WriteToken(wire.TokenDone); err != nil {
		return "", err
	}

	for {
		line, err := c.r.ReadLine()
		if err != nil {
			return "", c.unexpected(err)
		}
		switch line {
		case wire.TokenFailure:
			return "", ErrFailure
		case wire.TokenStartContact:
			return c.r.ReadUntil(wire.TokenEndContact)
		}
	}
}

// Finish ends the session and closes the connection.
func (c *Client) Finish() error {
	err := c.w.WriteToken(wire.TokenFinished)
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close drops the connection without ending the session cleanly.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send writes a raw line, for tools that speak the protocol by hand.
func (c *Client) Send(line string) error {
	return c.w.WriteToken(line)
}

// ReadLine reads one raw response line.
func (c *Client) ReadLine() (string, error) {
	return c.r.ReadLine()
}

func (c *Client) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	return c.conn.SetDeadline(deadline)
}

func (c *Client) readStatus() error {
	line, err := c.r.ReadLine()
	if err != nil {
		return c.unexpected(err)
	}
	switch line {
	case wire.TokenOK:
		return nil
	case wire.TokenFailure:
		return ErrFailure
	default:
		return &wire.FramingError{Message: fmt.Sprintf("unexpected response %q", truncate(line, 64))}
	}
}

func (c *Client) unexpected(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return err
	}
	var fe *wire.FramingError
	if errors.As(err, &fe) {
		return err
	}
	return fmt.Errorf("reading response: %w", err)
}

func trimTrailingNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
