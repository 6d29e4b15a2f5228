//nolint:tagliatelle // wire compatibility
package signalr

import (
	"bytes"
	"encoding/json"
)

const (
	ClientProtocol = "1.5"
	transportName  = "webSockets"
)

type Opcode int

// values match the websocket opcodes
const (
	OpText   Opcode = 1
	OpBinary Opcode = 2
)

// Frame is the envelope of a message received from the server.
type Frame struct {
	Cursor       string          `json:"C,omitempty"`
	GroupsToken  string          `json:"G,omitempty"`
	Invocations  []Invocation    `json:"M,omitempty"`
	Result       json.RawMessage `json:"R,omitempty"`
	InvocationID json.RawMessage `json:"I,omitempty"`
	Initialized  int             `json:"S,omitempty"`
	Error        string          `json:"E,omitempty"`
}

// Invocation is a hub method call pushed by the server.
type Invocation struct {
	Hub    string            `json:"H"`
	Method string            `json:"M"`
	Args   []json.RawMessage `json:"A"`
}

// Message is one received frame. Topic semantics are left to the caller.
type Message struct {
	Opcode Opcode
	Raw    json.RawMessage
	Frame  Frame
}

// KeepAlive reports whether the message is an empty keep alive frame.
func (m Message) KeepAlive() bool {
	return bytes.Equal(bytes.TrimSpace(m.Raw), []byte("{}"))
}

type hubCommand struct {
	Hub    string `json:"H"`
	Method string `json:"M"`
	Args   []any  `json:"A"`
	ID     int    `json:"I"`
}

type hubName struct {
	Name string `json:"name"`
}

func connectionData(hubs []string) string {
	names := make([]hubName, 0, len(hubs))
	for _, h := range hubs {
		names = append(names, hubName{Name: h})
	}
	//nolint:errchkjson // plain strings only
	data, _ := json.Marshal(names)
	return string(data)
}

type negotiateResponse struct {
	URL                     string  `json:"Url"`
	ConnectionToken         string  `json:"ConnectionToken"`
	ConnectionID            string  `json:"ConnectionId"`
	KeepAliveTimeout        float64 `json:"KeepAliveTimeout"`
	DisconnectTimeout       float64 `json:"DisconnectTimeout"`
	TryWebSockets           bool    `json:"TryWebSockets"`
	ProtocolVersion         string  `json:"ProtocolVersion"`
	TransportConnectTimeout float64 `json:"TransportConnectTimeout"`
}

type ackResponse struct {
	Response string `json:"Response"`
}
