// Package beacon announces hosted rooms over UDP broadcast and listens
// for announcements from other hosts on the discovery port.
package beacon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"time"

	"lanshare/internal/util/logger/sl"
	"lanshare/internal/wire"
)

const (
	DefaultBroadcastAddr = "255.255.255.255"
	DefaultInterval      = 2 * time.Second
	DefaultBufferSize    = 2048
)

var ErrAlreadyRunning = errors.New("already running")

// BroadcastConfig describes what a broadcaster announces and where.
type BroadcastConfig struct {
	Room          string
	Host          string
	TCPPort       int
	DiscoveryPort int
	BroadcastAddr string
	Interval      time.Duration
}

// Broadcaster periodically announces one hosted room. One failed send is
// logged and skipped; the loop only stops on Stop or context cancel.
type Broadcaster struct {
	cfg    BroadcastConfig
	log    *slog.Logger
	conn   net.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBroadcaster(cfg BroadcastConfig, log *slog.Logger) *Broadcaster {
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = DefaultBroadcastAddr
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = slog.Default()
	}

	return &Broadcaster{
		cfg: cfg,
		log: log,
	}
}

func (b *Broadcaster) Start(ctx context.Context) error {
	const op = "beacon.Broadcaster.Start"
	log := b.log.With(slog.String("op", op))

	if b.cancel != nil {
		return ErrAlreadyRunning
	}

	target := net.JoinHostPort(b.cfg.BroadcastAddr, strconv.Itoa(b.cfg.DiscoveryPort))

	conn, err := net.Dial("udp4", target)
	if err != nil {
		return err
	}
	b.conn = conn

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	log.Info("beacon broadcaster started",
		slog.String("target", target),
		slog.String("room", b.cfg.Room),
	)

	go b.run(ctx)

	return nil
}

func (b *Broadcaster) run(ctx context.Context) {
	const op = "beacon.Broadcaster.run"
	log := b.log.With(slog.String("op", op))

	defer close(b.done)

	conn := b.conn
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	b.send(log)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.send(log)
		}
	}
}

func (b *Broadcaster) send(log *slog.Logger) {
	payload, err := wire.Beacon{
		Room: b.cfg.Room,
		Port: b.cfg.TCPPort,
		Host: b.cfg.Host,
	}.Encode()
	if err != nil {
		log.Error("encode beacon", sl.Err(err))
		return
	}

	if _, err := b.conn.Write(payload); err != nil {
		log.Warn("beacon send failed", sl.Err(err))
	}
}

func (b *Broadcaster) Stop() {
	if b.cancel == nil {
		return
	}

	b.cancel()
	b.conn.Close()
	<-b.done

	b.cancel = nil
	b.conn = nil
}

// ListenConfig describes where a listener binds. Port 0 binds an
// ephemeral port, which Port() reports after Start.
type ListenConfig struct {
	Port       int
	BufferSize int
}

// Listener receives beacon datagrams and reports each sighting through
// the room callback. Malformed or non-beacon datagrams are dropped
// without ever reaching the caller; deduplication is the caller's
// concern.
type Listener struct {
	cfg    ListenConfig
	log    *slog.Logger
	conn   *net.UDPConn
	onRoom func(wire.Room)
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(cfg ListenConfig, log *slog.Logger) *Listener {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &Listener{
		cfg: cfg,
		log: log,
	}
}

// SetOnRoomFound installs the sighting callback. Must be set before
// Start.
func (l *Listener) SetOnRoomFound(callback func(wire.Room)) {
	l.onRoom = callback
}

func (l *Listener) Start(ctx context.Context) error {
	const op = "beacon.Listener.Start"
	log := l.log.With(slog.String("op", op))

	if l.cancel != nil {
		return ErrAlreadyRunning
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: l.cfg.Port})
	if err != nil {
		return err
	}
	l.conn = conn

	if err := conn.SetReadBuffer(1024 * 1024); err != nil {
		log.Warn("set read buffer", sl.Err(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	log.Info("beacon listener started", slog.Int("port", l.Port()))

	go l.run(ctx)

	return nil
}

// Port reports the bound discovery port.
func (l *Listener) Port() int {
	if l.conn == nil {
		return l.cfg.Port
	}
	return l.conn.LocalAddr().(*net.UDPAddr).Port
}

func (l *Listener) run(ctx context.Context) {
	const op = "beacon.Listener.run"
	log := l.log.With(slog.String("op", op))

	defer close(l.done)

	conn := l.conn
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	buffer := make([]byte, l.cfg.BufferSize)
	for {
		n, src, err := conn.ReadFromUDP(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("read datagram", sl.Err(err))
			continue
		}

		l.handleDatagram(log, buffer[:n], src)
	}
}

// handleDatagram turns one datagram into a room sighting. The host
// address always comes from the datagram source, never from the
// payload.
func (l *Listener) handleDatagram(log *slog.Logger, data []byte, src *net.UDPAddr) {
	msg, err := wire.Decode(data)
	if err != nil {
		log.Debug("dropping malformed datagram",
			slog.String("from", src.String()),
			sl.Err(err),
		)
		return
	}

	if msg.Op != wire.OpBeacon {
		log.Debug("dropping non-beacon datagram",
			slog.String("op", string(msg.Op)),
			slog.String("from", src.String()),
		)
		return
	}

	b := msg.Beacon
	if b.Room == "" || b.Port <= 0 || b.Port > 65535 {
		log.Debug("dropping beacon with bad fields",
			slog.String("from", src.String()),
		)
		return
	}

	if l.onRoom == nil {
		return
	}

	l.onRoom(wire.Room{
		Name: b.Room,
		Host: b.Host,
		IP:   src.IP.String(),
		Port: b.Port,
	})
}

func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}

	l.cancel()
	l.conn.Close()
	<-l.done

	l.cancel = nil
	l.conn = nil
}
