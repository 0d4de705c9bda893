package session

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lanshare/internal/wire"
)

// fakeHost accepts one session connection and hands it to the test.
type fakeHost struct {
	lis  net.Listener
	conn chan net.Conn
}

func newFakeHost(t *testing.T) *fakeHost {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { lis.Close() })

	h := &fakeHost{lis: lis, conn: make(chan net.Conn, 1)}
	go func() {
		conn, err := lis.Accept()
		if err != nil {
			return
		}
		h.conn <- conn
	}()

	return h
}

func (h *fakeHost) port() int {
	return h.lis.Addr().(*net.TCPAddr).Port
}

func (h *fakeHost) accept(t *testing.T) net.Conn {
	t.Helper()

	select {
	case conn := <-h.conn:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived")
		return nil
	}
}

func TestClientSendsHelloFirst(t *testing.T) {
	host := newFakeHost(t)

	c := NewClient(ClientConfig{Name: "anna"}, nil)
	require.True(t, c.Connect(context.Background(), "127.0.0.1", host.port()))
	defer c.Close()

	conn := host.accept(t)
	scanner := bufio.NewScanner(conn)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.True(t, scanner.Scan())

	msg, err := wire.Decode(scanner.Bytes())
	require.NoError(t, err)
	require.Equal(t, wire.OpHello, msg.Op)
	assert.Equal(t, "anna", msg.Hello.Name)
}

func TestClientConnectFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())

	c := NewClient(ClientConfig{Name: "anna", DialTimeout: time.Second}, nil)
	assert.False(t, c.Connect(context.Background(), "127.0.0.1", port))
	assert.Empty(t, c.Peers())
}

func TestClientMirrorsWholesale(t *testing.T) {
	host := newFakeHost(t)

	updates := make(chan []wire.Peer, 8)

	c := NewClient(ClientConfig{Name: "anna"}, nil)
	c.SetOnPeersChanged(func(peers []wire.Peer) {
		updates <- peers
	})
	require.True(t, c.Connect(context.Background(), "127.0.0.1", host.port()))
	defer c.Close()

	conn := host.accept(t)

	push := func(raw string) {
		t.Helper()
		_, err := conn.Write([]byte(raw + "\n"))
		require.NoError(t, err)
	}

	push(`{"op":"peers","data":[{"name":"vito","ip":"192.168.1.4","status":"host"},{"name":"anna","ip":"192.168.1.7","status":"idle"}]}`)

	select {
	case peers := <-updates:
		require.Len(t, peers, 2)
		assert.Equal(t, "vito", peers[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no mirror update")
	}

	// The next push replaces the whole mirror, nothing is merged.
	push(`{"op":"peers","data":[{"name":"vito","ip":"192.168.1.4","status":"host"}]}`)

	select {
	case peers := <-updates:
		require.Len(t, peers, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no mirror update")
	}

	assert.Len(t, c.Peers(), 1)
}

func TestClientRejectsUnexpectedMessages(t *testing.T) {
	host := newFakeHost(t)

	updates := make(chan []wire.Peer, 8)

	c := NewClient(ClientConfig{Name: "anna"}, nil)
	c.SetOnPeersChanged(func(peers []wire.Peer) {
		updates <- peers
	})
	require.True(t, c.Connect(context.Background(), "127.0.0.1", host.port()))
	defer c.Close()

	conn := host.accept(t)

	for _, raw := range []string{
		`not json`,
		`{"op":"trade","x":1}`,
		`{"op":"hello","name":"host should not send this"}`,
	} {
		_, err := conn.Write([]byte(raw + "\n"))
		require.NoError(t, err)
	}

	// The stream survives the junk: a valid update still lands.
	_, err := conn.Write([]byte(`{"op":"peers","data":[{"name":"vito","ip":"192.168.1.4","status":"host"}]}` + "\n"))
	require.NoError(t, err)

	select {
	case peers := <-updates:
		require.Len(t, peers, 1)
		assert.Equal(t, "vito", peers[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("client dropped the stream on junk input")
	}
}

func TestClientClosedHookOnHostDeath(t *testing.T) {
	host := newFakeHost(t)

	closed := make(chan struct{})

	c := NewClient(ClientConfig{Name: "anna"}, nil)
	c.SetOnClosed(func() {
		close(closed)
	})
	require.True(t, c.Connect(context.Background(), "127.0.0.1", host.port()))
	defer c.Close()

	conn := host.accept(t)
	conn.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("closed hook never fired")
	}
}

func TestClientOwnCloseIsSilent(t *testing.T) {
	host := newFakeHost(t)

	closed := make(chan struct{}, 1)

	c := NewClient(ClientConfig{Name: "anna"}, nil)
	c.SetOnClosed(func() {
		closed <- struct{}{}
	})
	require.True(t, c.Connect(context.Background(), "127.0.0.1", host.port()))

	host.accept(t)
	c.Close()

	select {
	case <-closed:
		t.Fatal("closed hook must not fire on deliberate close")
	case <-time.After(300 * time.Millisecond):
	}

	// And closing again changes nothing.
	c.Close()
}

func TestClientAgainstRealServer(t *testing.T) {
	s := setupTestServer(t)

	updates := make(chan []wire.Peer, 8)

	c := NewClient(ClientConfig{Name: "anna"}, nil)
	c.SetOnPeersChanged(func(peers []wire.Peer) {
		updates <- peers
	})
	require.True(t, c.Connect(context.Background(), "127.0.0.1", s.Port()))
	defer c.Close()

	select {
	case peers := <-updates:
		require.Len(t, peers, 2)
		assert.Equal(t, "vito", peers[0].Name)
		assert.Equal(t, "anna", peers[1].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no membership push after joining")
	}
}
