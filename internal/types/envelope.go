package types

// Envelope is the wire format passed across the context boundary.
// Replies carry the same correlation id as the message they answer.
type Envelope struct {
	Type            string                 `json:"type"`
	Method          string                 `json:"method,omitempty"`
	Data            map[string]interface{} `json:"data,omitempty"`
	CorrelationID   string                 `json:"correlationId,omitempty"`
	SenderContextID string                 `json:"senderContextId,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// Envelope types understood by the transport layer.
const (
	EnvelopeCall           = "call"            // context -> broker method invocation
	EnvelopeResult         = "result"          // broker -> context method completion
	EnvelopeMessage        = "message"         // delivered runtime.sendMessage payload
	EnvelopeReply          = "reply"           // context -> broker reply to a delivered message
	EnvelopePortMessage    = "port_message"    // traffic on an established port
	EnvelopePortDisconnect = "port_disconnect" // port teardown notification
	EnvelopeStorageChanged = "storage_changed" // storage change-set fan-out
	EnvelopeAlarm          = "alarm"           // alarm firing
	EnvelopeAttached       = "attached"        // handshake acknowledgement
	EnvelopeSystem         = "system"
	EnvelopeError          = "error"
)
