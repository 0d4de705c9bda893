package session

import (
	"sync"

	"lanshare/internal/wire"
)

type entry struct {
	connID string
	info   wire.Peer
}

// registry is the authoritative membership list of a hosted session:
// entries in join order with the host itself always at index zero, and
// a host-private map from connection id to transport handle. The two
// structures stay parallel and the handles are never serialized.
type registry struct {
	mu      sync.RWMutex
	entries []entry
	handles map[string]*handle
}

func newRegistry() *registry {
	return &registry{
		handles: make(map[string]*handle),
	}
}

// setSelf installs the host's own entry at index zero. The self entry
// has no handle: the host does not message itself.
func (r *registry) setSelf(info wire.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) > 0 && r.entries[0].connID == "" {
		r.entries[0].info = info
		return
	}

	r.entries = append([]entry{{info: info}}, r.entries...)
}

func (r *registry) add(h *handle, info wire.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[h.id]; exists {
		return ErrDuplicateConn
	}

	r.entries = append(r.entries, entry{connID: h.id, info: info})
	r.handles[h.id] = h

	return nil
}

// remove drops the entry for connID. Reports false when the id is not
// registered, which makes the caller's removal path run at most once
// even when a shutdown races it.
func (r *registry) remove(connID string) (wire.Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[connID]; !exists {
		return wire.Peer{}, false
	}
	delete(r.handles, connID)

	for i, e := range r.entries {
		if e.connID == connID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return e.info, true
		}
	}

	return wire.Peer{}, false
}

// snapshot copies the wire-visible list in order. Fan-out and
// notifications work on snapshots, never on the live slice.
func (r *registry) snapshot() []wire.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]wire.Peer, 0, len(r.entries))
	for _, e := range r.entries {
		peers = append(peers, e.info)
	}
	return peers
}

func (r *registry) handleSnapshot() []*handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	return handles
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// clear empties the registry and returns the handles so the caller can
// close them. Used only by session teardown.
func (r *registry) clear() []*handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}

	r.entries = nil
	r.handles = make(map[string]*handle)

	return handles
}
