package session

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"lanshare/internal/beacon"
	"lanshare/internal/netutil"
	"lanshare/internal/util/logger/sl"
	"lanshare/internal/wire"
)

// Role is what this node is currently doing. Exactly one value holds at
// any time; hosting and being a client are mutually exclusive.
type Role string

const (
	RoleIdle      Role = "idle"
	RoleHosting   Role = "hosting"
	RoleConnected Role = "connected"
)

// EventKind tags manager events delivered to subscribers.
type EventKind string

const (
	// EventPeers carries the membership list after a change.
	EventPeers EventKind = "peers"
	// EventSessionEnded reports that the joined session died underneath
	// us and the manager went back to idle.
	EventSessionEnded EventKind = "session_ended"
)

// Event is one notification to a subscriber.
type Event struct {
	Kind  EventKind
	Peers []wire.Peer
}

// Subscription is one subscriber's feed of manager events. The channel
// closes on explicit Shutdown.
type Subscription struct {
	ch     chan Event
	cancel func()
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) Cancel() {
	s.cancel()
}

// Recorder receives session lifecycle events for the diagnostics
// journal. A nil Recorder disables recording.
type Recorder interface {
	Record(kind, room, peer, addr string)
}

// Journal event kinds the manager emits.
const (
	recHostStarted = "host_started"
	recPeerJoined  = "peer_joined"
	recPeerLeft    = "peer_left"
	recScanStarted = "scan_started"
	recRoomJoined  = "room_joined"
	recSessionLost = "session_lost"
	recShutdown    = "shutdown"
)

// ManagerConfig carries the node identity and discovery settings shared
// by every session this manager runs.
type ManagerConfig struct {
	DisplayName    string
	DiscoveryPort  int
	BroadcastAddr  string
	BeaconInterval time.Duration
}

// Manager owns the node's session lifecycle: idle, hosting a room, or
// connected to one. Every transition first tears down whatever ran
// before, so stale sockets or tasks never leak across sessions.
type Manager struct {
	cfg ManagerConfig
	log *slog.Logger
	rec Recorder

	mu         sync.Mutex
	role       Role
	room       *wire.Room
	server     *Server
	caster     *beacon.Broadcaster
	scanner    *beacon.Listener
	client     *Client
	cancel     context.CancelFunc
	scanCancel context.CancelFunc
	rooms      map[string]wire.Room

	subsMu  sync.Mutex
	subs    map[uint64]chan Event
	nextSub uint64
}

func NewManager(cfg ManagerConfig, log *slog.Logger, rec Recorder) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = beacon.DefaultBroadcastAddr
	}
	if cfg.BeaconInterval <= 0 {
		cfg.BeaconInterval = beacon.DefaultInterval
	}

	return &Manager{
		cfg:   cfg,
		log:   log,
		rec:   rec,
		role:  RoleIdle,
		rooms: make(map[string]wire.Room),
		subs:  make(map[uint64]chan Event),
	}
}

// Role reports what the manager is doing right now.
func (m *Manager) Role() Role {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.role
}

// Room reports the active room while hosting or connected.
func (m *Manager) Room() (wire.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.room == nil {
		return wire.Room{}, false
	}
	return *m.room, true
}

// Peers returns the current membership list: the registry while
// hosting, the mirror while connected, nothing while idle.
func (m *Manager) Peers() []wire.Peer {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.server != nil:
		return m.server.Peers()
	case m.client != nil:
		return m.client.Peers()
	default:
		return nil
	}
}

// Rooms returns the deduplicated sightings collected since scanning
// started, in stable order.
func (m *Manager) Rooms() []wire.Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]wire.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name != rooms[j].Name {
			return rooms[i].Name < rooms[j].Name
		}
		return rooms[i].IP < rooms[j].IP
	})
	return rooms
}

// SetDisplayName changes the name announced and sent in hellos. Applies
// to sessions started after the call.
func (m *Manager) SetDisplayName(name string) {
	if name == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg.DisplayName = name
}

// StartHost opens a new hosted session for roomName. Any previous
// session activity is torn down first. A failed rendezvous bind is
// returned and leaves the manager idle.
func (m *Manager) StartHost(ctx context.Context, roomName string) error {
	const op = "session.Manager.StartHost"
	log := m.log.With(slog.String("op", op), slog.String("room", roomName))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()

	hostIP := netutil.LocalIP()
	hostName := m.cfg.DisplayName

	srv := NewServer(ServerConfig{
		HostName: hostName,
		HostIP:   hostIP,
	}, m.log)

	srv.SetOnPeersChanged(m.publishPeers)
	srv.SetOnPeerJoined(func(p wire.Peer) {
		m.record(recPeerJoined, roomName, p.Name, p.IP)
	})
	srv.SetOnPeerLeft(func(p wire.Peer) {
		m.record(recPeerLeft, roomName, p.Name, p.IP)
	})

	sctx, cancel := context.WithCancel(ctx)

	if err := srv.Start(sctx); err != nil {
		cancel()
		log.Error("failed to start session server", sl.Err(err))
		return err
	}

	port := srv.Port()

	caster := beacon.NewBroadcaster(beacon.BroadcastConfig{
		Room:          roomName,
		Host:          hostName,
		TCPPort:       port,
		DiscoveryPort: m.cfg.DiscoveryPort,
		BroadcastAddr: m.cfg.BroadcastAddr,
		Interval:      m.cfg.BeaconInterval,
	}, m.log)

	if err := caster.Start(sctx); err != nil {
		// The room stays up and joinable by address, it just is not
		// announced.
		log.Warn("beacon broadcaster failed, room not announced", sl.Err(err))
		caster = nil
	}

	m.server = srv
	m.caster = caster
	m.cancel = cancel
	m.role = RoleHosting
	m.room = &wire.Room{Name: roomName, Host: hostName, IP: hostIP, Port: port}

	m.record(recHostStarted, roomName, hostName, net.JoinHostPort(hostIP, strconv.Itoa(port)))
	log.Info("hosting room", slog.String("ip", hostIP), slog.Int("port", port))

	return nil
}

// StartScan begins listening for room announcements. Every sighting is
// relayed to onRoomFound; the deduplicated set is also available via
// Rooms. Scanning runs alongside the idle role and is stopped by any
// transition or by Shutdown.
func (m *Manager) StartScan(ctx context.Context, onRoomFound func(wire.Room)) error {
	const op = "session.Manager.StartScan"
	log := m.log.With(slog.String("op", op))

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopScanLocked()

	lis := beacon.NewListener(beacon.ListenConfig{Port: m.cfg.DiscoveryPort}, m.log)
	lis.SetOnRoomFound(func(r wire.Room) {
		m.rememberRoom(r)
		if onRoomFound != nil {
			onRoomFound(r)
		}
	})

	sctx, cancel := context.WithCancel(ctx)

	if err := lis.Start(sctx); err != nil {
		cancel()
		log.Error("failed to start beacon listener", sl.Err(err))
		return err
	}

	m.scanner = lis
	m.scanCancel = cancel

	m.record(recScanStarted, "", m.cfg.DisplayName, "")
	log.Info("scanning for rooms", slog.Int("port", lis.Port()))

	return nil
}

// StopScan stops listening for announcements. Sightings collected so
// far stay available through Rooms.
func (m *Manager) StopScan() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopScanLocked()
}

// ConnectToRoom joins the room at ip:port. Any previous session
// activity is torn down first. Failure leaves the manager idle and is
// reported as false, never as a panic or an error.
func (m *Manager) ConnectToRoom(ctx context.Context, ip string, port int) bool {
	const op = "session.Manager.ConnectToRoom"
	log := m.log.With(
		slog.String("op", op),
		slog.String("ip", ip),
		slog.Int("port", port),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	known, haveSighting := m.rooms[roomKey(ip, port)]

	m.resetLocked()

	cl := NewClient(ClientConfig{Name: m.cfg.DisplayName}, m.log)
	cl.SetOnPeersChanged(m.publishPeers)
	cl.SetOnClosed(func() {
		m.sessionLost(cl)
	})

	sctx, cancel := context.WithCancel(ctx)

	if !cl.Connect(sctx, ip, port) {
		cancel()
		log.Warn("failed to join room")
		return false
	}

	room := wire.Room{IP: ip, Port: port}
	if haveSighting {
		room.Name = known.Name
		room.Host = known.Host
	}

	m.client = cl
	m.cancel = cancel
	m.role = RoleConnected
	m.room = &room

	m.record(recRoomJoined, room.Name, m.cfg.DisplayName, net.JoinHostPort(ip, strconv.Itoa(port)))
	log.Info("connected to room", slog.String("room", room.Name))

	return true
}

// Shutdown tears down every session activity and closes all
// subscriptions. Idempotent: calling it again, or while idle, is a
// no-op.
func (m *Manager) Shutdown() {
	const op = "session.Manager.Shutdown"
	log := m.log.With(slog.String("op", op))

	m.mu.Lock()

	active := m.role != RoleIdle || m.scanner != nil
	name := m.cfg.DisplayName
	m.resetLocked()
	m.rooms = make(map[string]wire.Room)

	m.mu.Unlock()

	m.subsMu.Lock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
	m.subsMu.Unlock()

	if active {
		m.record(recShutdown, "", name, "")
		log.Info("session shut down")
	}
}

// Subscribe registers a feed of manager events. Slow subscribers miss
// updates rather than slow the session down.
func (m *Manager) Subscribe() *Subscription {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextSub
	m.nextSub++

	ch := make(chan Event, 8)
	m.subs[id] = ch

	return &Subscription{
		ch: ch,
		cancel: func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()

			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		},
	}
}

// resetLocked stops everything a session may have started. Callers hold
// m.mu. Subscriptions survive: a new session keeps publishing to
// existing subscribers.
func (m *Manager) resetLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.caster != nil {
		m.caster.Stop()
		m.caster = nil
	}
	if m.server != nil {
		m.server.Stop()
		m.server = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.stopScanLocked()

	m.role = RoleIdle
	m.room = nil
}

func (m *Manager) stopScanLocked() {
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	if m.scanner != nil {
		m.scanner.Stop()
		m.scanner = nil
	}
}

// sessionLost handles the joined session dying underneath us: back to
// idle, subscribers told. Ignores stale notifications from clients a
// later transition already replaced.
func (m *Manager) sessionLost(cl *Client) {
	const op = "session.Manager.sessionLost"
	log := m.log.With(slog.String("op", op))

	m.mu.Lock()

	if m.client != cl {
		m.mu.Unlock()
		return
	}

	var roomName string
	if m.room != nil {
		roomName = m.room.Name
	}
	name := m.cfg.DisplayName

	m.resetLocked()
	m.mu.Unlock()

	log.Info("session lost, back to idle", slog.String("room", roomName))
	m.record(recSessionLost, roomName, name, "")

	m.publish(Event{Kind: EventSessionEnded})
}

func (m *Manager) publishPeers(peers []wire.Peer) {
	m.publish(Event{Kind: EventPeers, Peers: peers})
}

func (m *Manager) publish(ev Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Manager) rememberRoom(r wire.Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rooms[roomKey(r.IP, r.Port)] = r
}

func (m *Manager) record(kind, room, peer, addr string) {
	if m.rec == nil {
		return
	}
	m.rec.Record(kind, room, peer, addr)
}

func roomKey(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}
