package relay

import "encoding/json"

// Op is the operation field of a sync protocol message.
type Op string

// Client → Server ops
const (
	OpListen   Op = "listen"
	OpUnlisten Op = "unlisten"
	OpGet      Op = "get"
	OpSet      Op = "set"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpPing     Op = "ping"
)

// Server → Client ops
const (
	OpSnapshot Op = "snapshot"
	OpResult   Op = "result"
	OpError    Op = "error"
	OpPong     Op = "pong"
)

// Message is one frame of the sync protocol, both directions. ID correlates
// get/result pairs and identifies listeners in snapshot frames. Value is
// the JSON payload for set/snapshot/result; Values carries the multi-path
// map of an update.
type Message struct {
	Op     Op                         `json:"op"`
	ID     int64                      `json:"id,omitempty"`
	Path   string                     `json:"path,omitempty"`
	Value  json.RawMessage            `json:"value,omitempty"`
	Values map[string]json.RawMessage `json:"values,omitempty"`
	Error  string                     `json:"error,omitempty"`
}
