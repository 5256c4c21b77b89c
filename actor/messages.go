package actor

import (
	"time"
)

// BaseMessage supplies the unexported marker of the Message interface.
// Message types declared outside this package embed it rather than
// implementing the marker themselves.
type BaseMessage struct{}

// messageMarker seals the Message interface; see BaseMessage for how
// external types opt in.
func (BaseMessage) messageMarker() {}

// Message is the payload contract for everything that flows through a
// mailbox. The unexported marker method keeps the interface sealed: a type
// becomes sendable only by embedding BaseMessage (or by living in this
// package), which keeps arbitrary values out of tells and asks and gives the
// runtime a place to hang wire-type names.
type Message interface {
	// messageMarker restricts the interface to deliberate opt-ins.
	messageMarker()

	// MessageType names the payload for routing, filtering and logging.
	MessageType() string
}

// Failed is the system message delivered to a supervisor when a subordinate
// raised a failure kind that is not in the supervisor's trap-exit set. The
// supervisor's own handler decides what to do; returning an error from the
// handler escalates further up the link graph.
type Failed struct {
	BaseMessage

	// Subordinate is the handle of the failing actor.
	Subordinate Ref

	// Cause is the failure that was escalated.
	Cause error
}

// MessageType returns the type name of the message.
func (Failed) MessageType() string {
	return "actor.Failed"
}

// MaxRestartsExceeded is the system message delivered to a supervisor when a
// subordinate failed strictly more than MaxRetries times within Window and was
// stopped. It is delivered exactly once per give-up.
type MaxRestartsExceeded struct {
	BaseMessage

	// SubordinateID is the identity of the stopped subordinate.
	SubordinateID ID

	// MaxRetries is the restart bound that was exceeded.
	MaxRetries int

	// Window is the restart counting window.
	Window time.Duration

	// Cause is the failure that pushed the counter over the bound.
	Cause error
}

// MessageType returns the type name of the message.
func (MaxRestartsExceeded) MessageType() string {
	return "actor.MaxRestartsExceeded"
}

// UnlinkAndStop is the system message delivered to a supervisor when the
// removal of a failed Temporary subordinate emptied the supervisor's
// subordinate map.
type UnlinkAndStop struct {
	BaseMessage

	// Subordinate is the handle of the removed Temporary actor.
	Subordinate Ref
}

// MessageType returns the type name of the message.
func (UnlinkAndStop) MessageType() string {
	return "actor.UnlinkAndStop"
}

// ReceiveTimeout is delivered to an actor with a configured receive timeout
// when its mailbox stayed empty for the configured duration. The timer is
// re-armed after every processed message, including this one.
type ReceiveTimeout struct {
	BaseMessage
}

// MessageType returns the type name of the message.
func (ReceiveTimeout) MessageType() string {
	return "actor.ReceiveTimeout"
}

// isSystemMessage reports whether the payload is one of the runtime's own
// notifications. System messages never cross the codec, so the
// serialize-messages copying mode passes them through untouched.
func isSystemMessage(msg Message) bool {
	switch msg.(type) {
	case Failed, MaxRestartsExceeded, UnlinkAndStop, ReceiveTimeout:
		return true
	default:
		return false
	}
}

// DeadLetter describes a message that could not be delivered: the target was
// stopped, the envelope was discarded from the mailbox of a stopping actor,
// or a saturated bounded mailbox dropped it under its rejection policy.
// Systems may observe dead letters through the WithDeadLetterHook option.
type DeadLetter struct {
	// TargetID is the identity the message was addressed to.
	TargetID ID

	// Payload is the undelivered message.
	Payload Message

	// Reason is the failure kind explaining the non-delivery.
	Reason error
}
