package protocol

import "encoding/json"

const Version = "1.0"

// Change feed message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeVersion   = "VERSION"
	TypeError     = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
