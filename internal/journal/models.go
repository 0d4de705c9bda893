package journal

import (
	"encoding/json"
	"time"
)

// Event is one recorded session happening. Events describe what
// occurred; no session state is ever rebuilt from them.
type Event struct {
	Time time.Time `json:"time"`
	Kind string    `json:"kind"`
	Room string    `json:"room,omitempty"`
	Peer string    `json:"peer,omitempty"`
	Addr string    `json:"addr,omitempty"`
}

// Serializer converts events to and from their stored form.
type Serializer interface {
	Serialize(v interface{}) ([]byte, error)
	Deserialize(data []byte, v interface{}) error
}

// JSONSerializer stores events as JSON so the journal file stays
// inspectable with plain tools.
type JSONSerializer struct{}

func (s *JSONSerializer) Serialize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (s *JSONSerializer) Deserialize(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
