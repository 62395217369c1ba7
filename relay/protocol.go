package relay

// Request ops, sent by clients.
const (
	OpPush               = "push"
	OpSet                = "set"
	OpRemove             = "remove"
	OpList               = "list"
	OpSubscribe          = "subscribe"
	OpUnsubscribe        = "unsubscribe"
	OpOnDisconnectRemove = "onDisconnectRemove"
)

// Reply ops, sent by the relay.
const (
	OpAck      = "ack"
	OpSnapshot = "snapshot"
	OpSubError = "subError"
)

// Error codes carried by failed acks.
const (
	CodeInvalid     = "invalid"
	CodeRateLimited = "rate_limited"
	CodeUnavailable = "unavailable"
)

// Frame is the single JSON message exchanged on the socket. Requests carry
// ReqID and get exactly one ack with the same ReqID. SubID is chosen by the
// client on subscribe so snapshots may arrive before the ack.
type Frame struct {
	Op         string            `json:"op"`
	ReqID      uint64            `json:"reqId,omitempty"`
	SubID      uint64            `json:"subId,omitempty"`
	Collection string            `json:"collection,omitempty"`
	ID         string            `json:"id,omitempty"`
	Record     []byte            `json:"record,omitempty"`
	Snapshot   map[string][]byte `json:"snapshot,omitempty"`
	Code       string            `json:"code,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func ack(reqID uint64) Frame {
	return Frame{Op: OpAck, ReqID: reqID}
}

func nack(reqID uint64, code string, err error) Frame {
	return Frame{Op: OpAck, ReqID: reqID, Code: code, Error: err.Error()}
}
