package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Message
	}{
		{
			name:  "beacon",
			input: `{"op":"beacon","room":"study","port":40123,"host":"vito"}`,
			expected: Message{
				Op:     OpBeacon,
				Beacon: &Beacon{Room: "study", Port: 40123, Host: "vito"},
			},
		},
		{
			name:  "hello",
			input: `{"op":"hello","name":"anna"}`,
			expected: Message{
				Op:    OpHello,
				Hello: &Hello{Name: "anna"},
			},
		},
		{
			name:  "peers",
			input: `{"op":"peers","data":[{"name":"vito","ip":"192.168.1.4","status":"host"},{"name":"anna","ip":"192.168.1.7","status":"idle"}]}`,
			expected: Message{
				Op: OpPeers,
				Peers: &PeerList{Peers: []Peer{
					{Name: "vito", IP: "192.168.1.4", Status: "host"},
					{Name: "anna", IP: "192.168.1.7", Status: "idle"},
				}},
			},
		},
		{
			name:  "beacon ignores unknown fields",
			input: `{"op":"beacon","room":"study","port":40123,"host":"vito","ip":"10.0.0.99"}`,
			expected: Message{
				Op:     OpBeacon,
				Beacon: &Beacon{Room: "study", Port: 40123, Host: "vito"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, msg)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown op", input: `{"op":"trade","offer":1}`},
		{name: "missing op", input: `{"room":"study","port":40123}`},
		{name: "not json", input: `hello there`},
		{name: "truncated json", input: `{"op":"beacon","room":`},
		{name: "empty", input: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
		})
	}
}

func TestDecodeUnknownOpSentinel(t *testing.T) {
	_, err := Decode([]byte(`{"op":"trade"}`))
	require.ErrorIs(t, err, ErrUnknownOp)

	_, err = Decode([]byte(`{"name":"anna"}`))
	require.ErrorIs(t, err, ErrMissingOp)
}

func TestEncodeShapes(t *testing.T) {
	b, err := Beacon{Room: "study", Port: 40123, Host: "vito"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"beacon","room":"study","port":40123,"host":"vito"}`, string(b))

	h, err := Hello{Name: "anna"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"hello","name":"anna"}`, string(h))

	p, err := PeerList{Peers: []Peer{{Name: "vito", IP: "192.168.1.4", Status: StatusHost}}}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"peers","data":[{"name":"vito","ip":"192.168.1.4","status":"host"}]}`, string(p))
}

func TestWriteLine(t *testing.T) {
	var buf bytes.Buffer

	payload, err := Hello{Name: "anna"}.Encode()
	require.NoError(t, err)
	require.NoError(t, WriteLine(&buf, payload))

	out := buf.Bytes()
	require.NotEmpty(t, out)
	assert.Equal(t, byte('\n'), out[len(out)-1])

	msg, err := Decode(out[:len(out)-1])
	require.NoError(t, err)
	assert.Equal(t, OpHello, msg.Op)
}
