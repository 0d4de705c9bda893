package session

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"lanshare/internal/util/logger/sl"
	"lanshare/internal/wire"
)

const (
	maxConnections = 32
	acceptPatience = 1 * time.Second
)

// ServerConfig describes the hosting node. HostIP is the address
// written into the host's own registry entry.
type ServerConfig struct {
	HostName string
	HostIP   string
}

// Server runs the host side of a session: it owns the rendezvous
// listener and the registry, admits clients after their hello line and
// pushes the full peer list to every client on each membership change.
type Server struct {
	cfg ServerConfig
	log *slog.Logger
	reg *registry

	lis *net.TCPListener

	// bmu serializes fan-outs so every client sees updates in the same
	// order they were produced.
	bmu sync.Mutex

	onChanged func([]wire.Peer)
	onJoined  func(wire.Peer)
	onLeft    func(wire.Peer)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(cfg ServerConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		cfg: cfg,
		log: log,
		reg: newRegistry(),
	}
}

// SetOnPeersChanged installs the membership hook. Called with a fresh
// snapshot after every change, including the host's own entry appearing
// at start. Must be set before Start.
func (s *Server) SetOnPeersChanged(callback func([]wire.Peer)) {
	s.onChanged = callback
}

func (s *Server) SetOnPeerJoined(callback func(wire.Peer)) {
	s.onJoined = callback
}

func (s *Server) SetOnPeerLeft(callback func(wire.Peer)) {
	s.onLeft = callback
}

// Start binds an OS-assigned rendezvous port and begins accepting
// clients. The bound port is available through Port and is what the
// beacon must advertise.
func (s *Server) Start(ctx context.Context) error {
	const op = "session.Server.Start"
	log := s.log.With(slog.String("op", op))

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp4", "0.0.0.0:0")
	if err != nil {
		return err
	}

	lis, err := net.ListenTCP("tcp4", tcpAddr)
	if err != nil {
		return err
	}
	s.lis = lis

	s.reg.setSelf(wire.Peer{
		Name:   s.cfg.HostName,
		IP:     s.cfg.HostIP,
		Status: wire.StatusHost,
	})

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	log.Info("session server started",
		slog.String("addr", lis.Addr().String()),
	)

	s.broadcast(log)

	s.wg.Add(1)
	go s.acceptLoop(ctx)

	return nil
}

// Port reports the bound rendezvous port.
func (s *Server) Port() int {
	if s.lis == nil {
		return 0
	}
	return s.lis.Addr().(*net.TCPAddr).Port
}

// Peers returns the current membership snapshot.
func (s *Server) Peers() []wire.Peer {
	return s.reg.snapshot()
}

func (s *Server) acceptLoop(ctx context.Context) {
	const op = "session.Server.acceptLoop"
	log := s.log.With(slog.String("op", op))

	defer s.wg.Done()

	connLimiter := make(chan struct{}, maxConnections)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down accept loop")
			return
		default:
			if err := s.lis.SetDeadline(time.Now().Add(acceptPatience)); err != nil {
				log.Warn("failed to set accept deadline", sl.Err(err))
			}

			conn, err := s.lis.Accept()
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				log.Warn("error accepting connection", sl.Err(err))
				continue
			}

			select {
			case connLimiter <- struct{}{}:
				s.wg.Add(1)
				go func() {
					s.serveConn(ctx, conn)
					<-connLimiter
					s.wg.Done()
				}()
			default:
				log.Warn("too many connections, rejecting",
					slog.String("remote", conn.RemoteAddr().String()),
				)
				conn.Close()
			}
		}
	}
}

// serveConn admits one client and then drains its stream until the
// connection dies. The first line must be a valid hello; anything else
// drops the connection without registration and without any
// notification to the others.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	const op = "session.Server.serveConn"
	log := s.log.With(
		slog.String("op", op),
		slog.String("remote", conn.RemoteAddr().String()),
	)

	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	scanner := bufio.NewScanner(conn)

	if !scanner.Scan() {
		log.Debug("connection closed before hello")
		return
	}

	msg, err := wire.Decode(scanner.Bytes())
	if err != nil {
		log.Info("dropping connection, first line is not valid", sl.Err(err))
		return
	}
	if msg.Op != wire.OpHello || msg.Hello.Name == "" {
		log.Info("dropping connection, expected hello",
			slog.String("op", string(msg.Op)),
		)
		return
	}

	remoteIP := ""
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		remoteIP = addr.IP.String()
	}

	h := newHandle(conn)
	info := wire.Peer{
		Name:   msg.Hello.Name,
		IP:     remoteIP,
		Status: wire.StatusIdle,
	}

	if err := s.reg.add(h, info); err != nil {
		log.Error("failed to register peer", sl.Err(err))
		return
	}

	if ctx.Err() != nil {
		s.reg.remove(h.id)
		h.close()
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		h.writeLoop()
	}()

	log.Info("peer joined",
		slog.String("name", info.Name),
		slog.Int("peers", s.reg.size()),
	)

	if s.onJoined != nil {
		s.onJoined(info)
	}
	s.broadcast(log)

	// Nothing further is expected from the client. Keep reading only to
	// notice when the stream dies.
	for scanner.Scan() {
		log.Debug("ignoring line from peer", slog.String("name", info.Name))
	}

	s.dropPeer(ctx, log, h)
}

// dropPeer runs the single removal path for a registered connection.
// Safe against teardown races: a second call finds nothing to remove,
// and a removal during shutdown stays silent.
func (s *Server) dropPeer(ctx context.Context, log *slog.Logger, h *handle) {
	info, ok := s.reg.remove(h.id)
	if !ok {
		return
	}
	h.close()

	if ctx.Err() != nil {
		return
	}

	log.Info("peer left",
		slog.String("name", info.Name),
		slog.Int("peers", s.reg.size()),
	)

	if s.onLeft != nil {
		s.onLeft(info)
	}
	s.broadcast(log)
}

// broadcast pushes the current peer list to every connected client.
// The payload is encoded once; delivery is best effort and never waits
// on a slow peer.
func (s *Server) broadcast(log *slog.Logger) {
	s.bmu.Lock()
	defer s.bmu.Unlock()

	snapshot := s.reg.snapshot()

	payload, err := wire.PeerList{Peers: snapshot}.Encode()
	if err != nil {
		log.Error("encode peer list", sl.Err(err))
		return
	}

	for _, h := range s.reg.handleSnapshot() {
		if !h.enqueue(payload) {
			log.Warn("peer queue full, dropping update", slog.String("conn", h.id))
		}
	}

	if s.onChanged != nil {
		s.onChanged(snapshot)
	}
}

// Stop tears the session down: stops accepting, closes every client
// connection and empties the registry. Clients are not notified
// individually; their streams just end.
func (s *Server) Stop() {
	const op = "session.Server.Stop"
	log := s.log.With(slog.String("op", op))

	if s.cancel == nil {
		return
	}

	s.cancel()
	s.lis.Close()

	for _, h := range s.reg.clear() {
		h.close()
	}

	s.wg.Wait()

	s.cancel = nil
	s.lis = nil

	log.Info("session server stopped")
}
