package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// WireEnvelope is the serialized form of an envelope crossing node
// boundaries. Payload bytes are produced by the message codec; the runtime
// does not interpret them.
type WireEnvelope struct {
	// TargetID identifies the logical actor on the receiving node.
	TargetID ID `json:"target_id"`

	// SenderID identifies the sending actor, when the send carried one.
	SenderID *ID `json:"sender_id,omitempty"`

	// SenderAddr is the home address of the sending actor's node, so the
	// receiver can construct a remote handle for replies.
	SenderAddr string `json:"sender_addr,omitempty"`

	// TypeURL names the payload type for the codec.
	TypeURL string `json:"type_url"`

	// Payload is the codec-encoded message.
	Payload []byte `json:"payload"`
}

// WireReply is the serialized outcome of a remote ask.
type WireReply struct {
	// TypeURL names the reply payload type, empty on error replies.
	TypeURL string `json:"type_url,omitempty"`

	// Payload is the codec-encoded reply value.
	Payload []byte `json:"payload,omitempty"`

	// Error carries the textual failure when the remote handler raised or
	// the target was unreachable.
	Error string `json:"error,omitempty"`
}

// Transport is the interface consumed from the external wire-transport
// collaborator. A remote handle forwards envelopes through it; the transport
// owns connections, framing and retransmission.
type Transport interface {
	// SendOneWay delivers a fire-and-forget envelope to the node at addr.
	SendOneWay(ctx context.Context, addr string, env WireEnvelope) error

	// SendExpectingReply delivers an ask envelope and returns a future
	// completed with the remote reply, or exceptionally on transport
	// failure.
	SendExpectingReply(ctx context.Context, addr string,
		env WireEnvelope) Future[WireReply]

	// RegisterHandle announces that the given identity is reachable
	// through this node.
	RegisterHandle(addr string, id ID) error

	// UnregisterHandle withdraws a previous registration.
	UnregisterHandle(addr string, id ID) error

	// SelfAddr returns the host:port the local transport server answers
	// on.
	SelfAddr() string
}

// Inbound is the surface a transport server uses to hand received envelopes
// to the local runtime. The System implements it by resolving the target in
// the registry and dispatching locally.
type Inbound interface {
	// DeliverTell routes a one-way wire envelope to its local target.
	DeliverTell(ctx context.Context, env WireEnvelope) error

	// DeliverAsk routes an ask wire envelope to its local target, waits
	// for the reply and returns its serialized form.
	DeliverAsk(ctx context.Context, env WireEnvelope) (WireReply, error)
}

// MessageCodec is the serialization collaborator for message payloads. The
// runtime calls it when the transport sends and when serialize-messages
// deep-copying is enabled; it never interprets the produced bytes.
type MessageCodec interface {
	// Encode serializes a message, returning the type name used to find
	// the decoder on the receiving side.
	Encode(msg Message) (typeURL string, data []byte, err error)

	// Decode reconstructs a message from its serialized form.
	Decode(typeURL string, data []byte) (Message, error)
}

// StateCodec is the serialization collaborator for actor instance state,
// used when a handle is migrated between nodes: the sending node encodes the
// live instance, the receiving node rebuilds one from the bytes. The runtime
// does not interpret the bytes.
type StateCodec interface {
	// EncodeState serializes a live actor instance.
	EncodeState(instance Receiver) ([]byte, error)

	// DecodeState reconstructs an actor instance from its serialized
	// state.
	DecodeState(data []byte) (Receiver, error)
}

// JSONCodec is a MessageCodec over encoding/json with an explicit type
// registry: both nodes register the concrete message types they exchange.
type JSONCodec struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewJSONCodec creates an empty JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{
		types: make(map[string]reflect.Type),
	}
}

// RegisterMessageType registers the concrete message type T under its
// reflected type name. A pointer type is registered under its element type,
// so that Decode yields the same pointer type back. This is a package-level
// generic function because methods cannot have their own type parameters.
func RegisterMessageType[T Message](c *JSONCodec) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.types[typeURLFor(typ)] = typ
}

// typeURLFor names a message type on the wire.
func typeURLFor(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	return typ.String()
}

// Encode serializes a message under its registered type name.
func (c *JSONCodec) Encode(msg Message) (string, []byte, error) {
	typeURL := typeURLFor(reflect.TypeOf(msg))

	c.mu.RLock()
	_, known := c.types[typeURL]
	c.mu.RUnlock()

	if !known {
		return "", nil, fmt.Errorf("message type %q not registered "+
			"with codec", typeURL)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return "", nil, fmt.Errorf("encode %q: %w", typeURL, err)
	}

	return typeURL, data, nil
}

// Decode reconstructs a message from its serialized form. The returned value
// is a pointer to the registered type.
func (c *JSONCodec) Decode(typeURL string, data []byte) (Message, error) {
	c.mu.RLock()
	typ, known := c.types[typeURL]
	c.mu.RUnlock()

	if !known {
		return nil, fmt.Errorf("message type %q not registered "+
			"with codec", typeURL)
	}

	val := reflect.New(typ).Interface()
	if err := json.Unmarshal(data, val); err != nil {
		return nil, fmt.Errorf("decode %q: %w", typeURL, err)
	}

	msg, ok := val.(Message)
	if !ok {
		return nil, fmt.Errorf("type %q does not implement Message",
			typeURL)
	}

	return msg, nil
}
