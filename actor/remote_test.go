package actor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// loopbackTransport is an in-memory Transport test double wiring two systems
// together by address, without any real networking.
type loopbackTransport struct {
	selfAddr string

	mu    sync.Mutex
	nodes map[string]Inbound
}

func newLoopbackFabric() map[string]Inbound {
	return make(map[string]Inbound)
}

func newLoopbackTransport(selfAddr string,
	nodes map[string]Inbound) *loopbackTransport {

	return &loopbackTransport{
		selfAddr: selfAddr,
		nodes:    nodes,
	}
}

func (l *loopbackTransport) resolve(addr string) (Inbound, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	node, ok := l.nodes[addr]
	if !ok {
		return nil, fmt.Errorf("no node at %s", addr)
	}

	return node, nil
}

func (l *loopbackTransport) SendOneWay(ctx context.Context, addr string,
	env WireEnvelope) error {

	node, err := l.resolve(addr)
	if err != nil {
		return err
	}

	return node.DeliverTell(ctx, env)
}

func (l *loopbackTransport) SendExpectingReply(ctx context.Context,
	addr string, env WireEnvelope) Future[WireReply] {

	promise := NewPromise[WireReply]()

	node, err := l.resolve(addr)
	if err != nil {
		promise.Complete(fn.Err[WireReply](err))
		return promise.Future()
	}

	go func() {
		reply, err := node.DeliverAsk(ctx, env)
		if err != nil {
			promise.Complete(fn.Err[WireReply](err))
			return
		}

		promise.Complete(fn.Ok(reply))
	}()

	return promise.Future()
}

func (l *loopbackTransport) RegisterHandle(addr string, id ID) error {
	return nil
}

func (l *loopbackTransport) UnregisterHandle(addr string, id ID) error {
	return nil
}

func (l *loopbackTransport) SelfAddr() string {
	return l.selfAddr
}

// newRemotePair builds two systems joined by a loopback fabric, both using a
// shared codec registration set.
func newRemotePair(t *testing.T) (*System, *System) {
	t.Helper()

	nodes := newLoopbackFabric()

	newCodec := func() *JSONCodec {
		codec := NewJSONCodec()
		RegisterMessageType[*wireMsg](codec)

		return codec
	}

	server := newTestSystem(t,
		WithCodec(newCodec()),
		WithTransport(newLoopbackTransport("node-b:1", nodes)),
	)
	client := newTestSystem(t,
		WithCodec(newCodec()),
		WithTransport(newLoopbackTransport("node-a:1", nodes)),
	)

	nodes["node-b:1"] = server
	nodes["node-a:1"] = client

	return server, client
}

// TestRemoteRefTellAndAsk tests tell and ask through a remote proxy,
// including payload and reply codec round trips.
func TestRemoteRefTellAndAsk(t *testing.T) {
	t.Parallel()

	server, client := newRemotePair(t)

	hosted := spawnFunc(t, server, func(ctx *Context) error {
		msg := ctx.Message().(*wireMsg)
		if ctx.ReplyExpected() {
			return ctx.Reply(&wireMsg{
				Value: strings.ToUpper(msg.Value),
			})
		}

		return nil
	})

	proxy := client.RemoteRef(hosted.ID(), "node-b:1")

	require.NoError(t, proxy.Tell(context.Background(),
		&wireMsg{Value: "fire-and-forget"}))

	reply, err := proxy.Ask(context.Background(), &wireMsg{Value: "hi"})
	require.NoError(t, err)
	require.Equal(t, "HI", reply.(*wireMsg).Value)
}

// TestRemoteRefLifecycleUnsupported tests that local-only operations on a
// remote handle surface ErrRemoteOperationUnsupported at the call site.
func TestRemoteRefLifecycleUnsupported(t *testing.T) {
	t.Parallel()

	_, client := newRemotePair(t)

	proxy := client.RemoteRef(NewID(), "node-b:1")

	require.ErrorIs(t, proxy.Start(), ErrRemoteOperationUnsupported)
	require.ErrorIs(t, proxy.Stop(), ErrRemoteOperationUnsupported)
	require.ErrorIs(t, proxy.Link(proxy), ErrRemoteOperationUnsupported)
	require.ErrorIs(t, proxy.Unlink(proxy), ErrRemoteOperationUnsupported)
	require.ErrorIs(t, proxy.SetTag("x"), ErrRemoteOperationUnsupported)
	require.ErrorIs(t, proxy.MakeRemote("elsewhere:1"),
		ErrRemoteOperationUnsupported)
}

// TestRemoteAskHandlerFailure tests that a remote handler failure completes
// the asking side's future exceptionally rather than as a transport error.
func TestRemoteAskHandlerFailure(t *testing.T) {
	t.Parallel()

	server, client := newRemotePair(t)

	hosted := spawnFunc(t, server, func(ctx *Context) error {
		return errRuntime
	})

	proxy := client.RemoteRef(hosted.ID(), "node-b:1")

	_, err := proxy.Ask(context.Background(), &wireMsg{Value: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), errRuntime.Error())
}

// TestRemoteAskUnknownActor tests that asking a dangling identity fails.
func TestRemoteAskUnknownActor(t *testing.T) {
	t.Parallel()

	_, client := newRemotePair(t)

	proxy := client.RemoteRef(NewID(), "node-b:1")

	_, err := proxy.Ask(context.Background(), &wireMsg{Value: "x"})
	require.Error(t, err)
}

// TestMakeRemoteRoutesThroughTransport tests the makeRemote path: a local
// handle made remote before start never builds a local instance and starts
// and stops cleanly, while an ask through a RemoteRef for the hosted actor
// is answered over the wire.
func TestMakeRemoteRoutesThroughTransport(t *testing.T) {
	t.Parallel()

	server, client := newRemotePair(t)

	hosted := spawnFunc(t, server, func(ctx *Context) error {
		return ctx.Reply(&wireMsg{Value: "remote ok"})
	})

	// The client-side handle has its own identity; after MakeRemote it
	// never builds a local instance.
	h := client.NewActor(func() Receiver {
		t.Error("factory must not run for a remote handle")
		return nil
	})
	require.NoError(t, h.MakeRemote("node-b:1"))
	require.NoError(t, h.Start())

	// Identity is the handle's own; retarget through a proxy for the
	// hosted identity instead.
	proxy := client.RemoteRef(hosted.ID(), "node-b:1")
	reply, err := proxy.Ask(context.Background(), &wireMsg{Value: "go"})
	require.NoError(t, err)
	require.Equal(t, "remote ok", reply.(*wireMsg).Value)

	require.NoError(t, h.Stop())
}
