package commands

import (
	"strings"

	"github.com/roasbeef/troupe/actor"
)

// EchoRequest asks the demo actor to shout the text back.
type EchoRequest struct {
	actor.BaseMessage

	Text string `json:"text"`
}

// MessageType returns the type name of the message.
func (EchoRequest) MessageType() string {
	return "trouped.EchoRequest"
}

// EchoReply carries the shouted text.
type EchoReply struct {
	actor.BaseMessage

	Text string `json:"text"`
}

// MessageType returns the type name of the message.
func (EchoReply) MessageType() string {
	return "trouped.EchoReply"
}

// newWireCodec registers the demo message types on a fresh codec. Both serve
// and ping sides need the same registrations.
func newWireCodec() *actor.JSONCodec {
	codec := actor.NewJSONCodec()
	actor.RegisterMessageType[*EchoRequest](codec)
	actor.RegisterMessageType[*EchoReply](codec)

	return codec
}

// echoReceiver is the demo actor: it uppercases incoming text.
type echoReceiver struct{}

// Receive handles one message.
func (e *echoReceiver) Receive(ctx *actor.Context) error {
	switch msg := ctx.Message().(type) {
	case *EchoRequest:
		return ctx.Reply(&EchoReply{
			Text: strings.ToUpper(msg.Text),
		})

	default:
		return nil
	}
}
