// Package wire defines the messages exchanged between nodes: the UDP
// discovery beacon and the newline-delimited JSON session protocol.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Op tags a message with its kind. The set is closed: decoding anything
// outside it fails with ErrUnknownOp.
type Op string

const (
	OpBeacon Op = "beacon"
	OpHello  Op = "hello"
	OpPeers  Op = "peers"
)

// Peer statuses carried in peer-list updates.
const (
	StatusHost = "host"
	StatusIdle = "idle"
)

var (
	ErrUnknownOp = errors.New("unknown operation tag")
	ErrMissingOp = errors.New("missing operation tag")
)

// Beacon is the discovery datagram a host emits on the discovery port.
// The sender's address is not part of the payload: receivers take it
// from the datagram source.
type Beacon struct {
	Room string `json:"room"`
	Port int    `json:"port"`
	Host string `json:"host"`
}

// Hello is the first line a joining client writes on its session stream.
type Hello struct {
	Name string `json:"name"`
}

// Peer is one wire-visible participant entry.
type Peer struct {
	Name   string `json:"name"`
	IP     string `json:"ip"`
	Status string `json:"status"`
}

// PeerList is the authoritative membership snapshot, host to clients.
type PeerList struct {
	Peers []Peer `json:"data"`
}

// Room describes a discovered session: the beacon payload plus the host
// address observed on the wire. Never persisted.
type Room struct {
	Name string
	Host string
	IP   string
	Port int
}

// Message is one decoded wire message. Exactly the payload field matching
// Op is non-nil.
type Message struct {
	Op     Op
	Beacon *Beacon
	Hello  *Hello
	Peers  *PeerList
}

func (b Beacon) Encode() ([]byte, error) {
	return json.Marshal(struct {
		Op Op `json:"op"`
		Beacon
	}{Op: OpBeacon, Beacon: b})
}

func (h Hello) Encode() ([]byte, error) {
	return json.Marshal(struct {
		Op Op `json:"op"`
		Hello
	}{Op: OpHello, Hello: h})
}

func (p PeerList) Encode() ([]byte, error) {
	return json.Marshal(struct {
		Op Op `json:"op"`
		PeerList
	}{Op: OpPeers, PeerList: p})
}

// Decode parses a single datagram or stream line into a tagged Message.
// Unrecognized tags are rejected with ErrUnknownOp rather than skipped.
func Decode(data []byte) (Message, error) {
	var head struct {
		Op Op `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}

	switch head.Op {
	case OpBeacon:
		var b Beacon
		if err := json.Unmarshal(data, &b); err != nil {
			return Message{}, fmt.Errorf("decode beacon: %w", err)
		}
		return Message{Op: OpBeacon, Beacon: &b}, nil
	case OpHello:
		var h Hello
		if err := json.Unmarshal(data, &h); err != nil {
			return Message{}, fmt.Errorf("decode hello: %w", err)
		}
		return Message{Op: OpHello, Hello: &h}, nil
	case OpPeers:
		var p PeerList
		if err := json.Unmarshal(data, &p); err != nil {
			return Message{}, fmt.Errorf("decode peers: %w", err)
		}
		return Message{Op: OpPeers, Peers: &p}, nil
	case "":
		return Message{}, ErrMissingOp
	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownOp, head.Op)
	}
}

// WriteLine frames a payload for the session stream: one JSON object,
// one line.
func WriteLine(w io.Writer, payload []byte) error {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
