// Package client is a headless lobby client. It keeps the session alive with
// periodic pings and delivers every decoded server packet on a channel.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bixboy/NetLessons/internal/protocol"
)

// DefaultPingInterval matches the server's default keep-alive expectation.
const DefaultPingInterval = time.Second

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("client closed")

// Client is one lobby connection.
type Client struct {
	conn         *net.UDPConn
	logger       *slog.Logger
	pingInterval time.Duration
	bufferSize   int

	events chan protocol.Packet
	done   chan struct{}
	closed atomic.Bool
	wg     sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithPingInterval sets the keep-alive period. Zero disables pinging.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pingInterval = d
	}
}

// WithEventBuffer sets the capacity of the events channel.
func WithEventBuffer(n int) Option {
	return func(c *Client) {
		c.bufferSize = n
	}
}

// Dial connects to the lobby at serverAddr ("host:port") and starts the read
// and ping loops. No login is sent.
func Dial(ctx context.Context, serverAddr string, opts ...Option) (*Client, error) {
	c := &Client{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		pingInterval: DefaultPingInterval,
		bufferSize:   64,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverAddr, err)
	}
	c.conn = conn.(*net.UDPConn)
	c.events = make(chan protocol.Packet, c.bufferSize)

	c.wg.Add(1)
	go c.readLoop()

	if c.pingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}

	c.logger.Info("Connected to lobby",
		slog.String("server", serverAddr),
		slog.String("local_addr", c.conn.LocalAddr().String()),
	)
	return c, nil
}

// Events delivers decoded server packets. It is closed after Close.
func (c *Client) Events() <-chan protocol.Packet {
	return c.events
}

// LocalAddr returns the client's socket address.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send encodes and sends one packet.
func (c *Client) Send(pkt protocol.Packet) error {
	if c.closed.Load() {
		return ErrClosed
	}
	data, err := protocol.Encode(pkt)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("send %s: %w", pkt.OpCode(), err)
	}
	return nil
}

// Login joins the lobby, or renames the session if already joined.
func (c *Client) Login(name string) error {
	return c.Send(&protocol.ConnectionState{Connected: true, Name: name})
}

// Logout leaves the lobby.
func (c *Client) Logout() error {
	return c.Send(&protocol.ConnectionState{Connected: false})
}

// Say sends a chat line to everyone. Lines starting with "/" are commands.
func (c *Client) Say(text string) error {
	return c.Send(&protocol.Chat{Message: text})
}

// Whisper sends a chat line to one player.
func (c *Client) Whisper(target, text string) error {
	return c.Send(&protocol.Chat{Message: text, Target: target})
}

// Guess submits a guess for the running round.
func (c *Client) Guess(value int32) error {
	return c.Send(&protocol.GameData{Value: value})
}

// RequestStart asks the server to start a round.
func (c *Client) RequestStart() error {
	return c.Send(&protocol.GameStart{})
}

// SetSpectator toggles spectator mode.
func (c *Client) SetSpectator(on bool) error {
	return c.Send(&protocol.PlayerState{Spectator: on})
}

// Close stops both loops and closes the socket. It does not log out.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	err := c.conn.Close()
	c.wg.Wait()
	close(c.events)
	return err
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	buffer := make([]byte, protocol.MaxDatagramLen)
	for {
		n, err := c.conn.Read(buffer)
		if err != nil {
			if c.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// connected UDP sockets surface ICMP errors here; keep reading
			c.logger.Debug("Read failed", slog.String("error", err.Error()))
			continue
		}

		pkt, err := protocol.Decode(buffer[:n])
		if err != nil {
			c.logger.Debug("Dropping malformed packet", slog.String("error", err.Error()))
			continue
		}

		select {
		case c.events <- pkt:
		case <-c.done:
			return
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Send(&protocol.Ping{}); err != nil && !errors.Is(err, ErrClosed) {
				c.logger.Debug("Ping failed", slog.String("error", err.Error()))
			}
		}
	}
}
