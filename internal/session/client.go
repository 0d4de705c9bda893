package session

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"lanshare/internal/util/logger/sl"
	"lanshare/internal/wire"
)

const defaultDialTimeout = 5 * time.Second

// ClientConfig describes the joining node. Name is sent in the hello
// line and is how the host lists this peer.
type ClientConfig struct {
	Name        string
	DialTimeout time.Duration
}

// Client runs the joining side of a session. It sends exactly one hello
// and then mirrors every peer list the host pushes. The mirror is
// replaced wholesale on each update; the client never edits it.
type Client struct {
	cfg ClientConfig
	log *slog.Logger

	conn net.Conn

	mu    sync.RWMutex
	peers []wire.Peer

	onPeers  func([]wire.Peer)
	onClosed func()

	cancel context.CancelFunc
	done   chan struct{}
}

func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		cfg: cfg,
		log: log,
	}
}

// SetOnPeersChanged installs the mirror hook, called with a fresh copy
// after every update. Must be set before Connect.
func (c *Client) SetOnPeersChanged(callback func([]wire.Peer)) {
	c.onPeers = callback
}

// SetOnClosed installs the stream-death hook. It fires when the host
// goes away on its own, never when Close tears the client down.
func (c *Client) SetOnClosed(callback func()) {
	c.onClosed = callback
}

// Connect dials the host and joins the session. Failure is an answer,
// not an error: the result is false and the caller decides what to do
// next. No partial state survives a failed attempt.
func (c *Client) Connect(ctx context.Context, ip string, port int) bool {
	const op = "session.Client.Connect"

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	log := c.log.With(slog.String("op", op), slog.String("addr", addr))

	if c.cancel != nil {
		log.Warn("already connected")
		return false
	}

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Warn("dial failed", sl.Err(err))
		return false
	}

	payload, err := wire.Hello{Name: c.cfg.Name}.Encode()
	if err != nil {
		log.Error("encode hello", sl.Err(err))
		conn.Close()
		return false
	}
	if err := wire.WriteLine(conn, payload); err != nil {
		log.Warn("send hello", sl.Err(err))
		conn.Close()
		return false
	}

	c.conn = conn

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.readLoop(ctx)

	log.Info("joined session")

	return true
}

func (c *Client) readLoop(ctx context.Context) {
	const op = "session.Client.readLoop"
	log := c.log.With(slog.String("op", op))

	conn := c.conn

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	defer func() {
		close(c.done)
		if ctx.Err() == nil && c.onClosed != nil {
			c.onClosed()
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := wire.Decode(line)
		if err != nil {
			log.Warn("rejecting message", sl.Err(err))
			continue
		}
		if msg.Op != wire.OpPeers {
			log.Warn("rejecting unexpected message",
				slog.String("op", string(msg.Op)),
			)
			continue
		}

		c.setPeers(msg.Peers.Peers)
	}

	log.Debug("session stream closed")
}

func (c *Client) setPeers(peers []wire.Peer) {
	copied := make([]wire.Peer, len(peers))
	copy(copied, peers)

	c.mu.Lock()
	c.peers = copied
	c.mu.Unlock()

	if c.onPeers != nil {
		c.onPeers(copied)
	}
}

// Peers returns a copy of the mirrored list.
func (c *Client) Peers() []wire.Peer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	copied := make([]wire.Peer, len(c.peers))
	copy(copied, c.peers)
	return copied
}

// Close leaves the session. Safe to call more than once and after the
// stream already died.
func (c *Client) Close() {
	if c.cancel == nil {
		return
	}

	c.cancel()
	c.conn.Close()
	<-c.done

	c.mu.Lock()
	c.peers = nil
	c.mu.Unlock()

	c.cancel = nil
	c.conn = nil
}
