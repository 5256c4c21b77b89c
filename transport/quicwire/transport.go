// Package quicwire implements the actor runtime's transport collaborator
// over HTTP/3: envelopes travel as JSON bodies on QUIC streams. The payload
// bytes inside a wire envelope are produced by the runtime's message codec
// and are never interpreted here.
package quicwire

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	http3 "github.com/quic-go/quic-go/http3"
	"github.com/roasbeef/troupe/actor"
)

const (
	// tellPath is the endpoint for one-way envelopes.
	tellPath = "/v1/tell"

	// askPath is the endpoint for reply-expecting envelopes.
	askPath = "/v1/ask"

	// defaultRequestTimeout bounds a single wire exchange when the
	// caller's context has no deadline.
	defaultRequestTimeout = 10 * time.Second
)

// Config holds the transport configuration.
type Config struct {
	// ListenAddr is the UDP address the server side binds. Empty for a
	// client-only transport.
	ListenAddr string

	// TLSConfig is the server TLS configuration. QUIC enforces TLS 1.3;
	// weaker minimum versions are bumped.
	TLSConfig *tls.Config

	// ClientTLSConfig is used for outbound connections. Nil defaults to
	// a TLS 1.3 config verifying against the system roots.
	ClientTLSConfig *tls.Config

	// Inbound is the runtime surface receiving envelopes addressed to
	// this node. Required when ListenAddr is set; may also be wired
	// after construction via SetInbound, which breaks the construction
	// cycle between a system that sends through this transport and a
	// transport that delivers into that system.
	Inbound actor.Inbound

	// RequestTimeout bounds a single wire exchange when the caller's
	// context has no deadline. Zero means a 10 second default.
	RequestTimeout time.Duration
}

// Transport sends and receives actor wire envelopes over HTTP/3.
type Transport struct {
	cfg Config

	client *http.Client

	srv  *http3.Server
	pc   net.PacketConn
	stop func() error

	// selfAddr is the bound server address, fixed by Start.
	mu       sync.Mutex
	selfAddr string

	// exported tracks handle registrations per (addr, id) pair. The
	// bookkeeping backs UnregisterHandle and diagnostics; resolution of
	// inbound envelopes is the registry's job.
	exported map[string]struct{}
}

// Compile-time check that Transport satisfies the collaborator contract.
var _ actor.Transport = (*Transport)(nil)

// SetInbound wires the runtime surface receiving envelopes addressed to
// this node. Must happen before Start.
func (t *Transport) SetInbound(inbound actor.Inbound) {
	t.cfg.Inbound = inbound
}

// New creates a transport from the given configuration. Call Start to bind
// the server side.
func New(cfg Config) *Transport {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	clientTLS := cfg.ClientTLSConfig
	if clientTLS == nil {
		clientTLS = &tls.Config{MinVersion: tls.VersionTLS13}
	} else if clientTLS.MinVersion < tls.VersionTLS13 {
		clientTLS = clientTLS.Clone()
		clientTLS.MinVersion = tls.VersionTLS13
	}

	return &Transport{
		cfg: cfg,
		client: &http.Client{
			Transport: &http3.Transport{
				TLSClientConfig: clientTLS,
			},
		},
		exported: make(map[string]struct{}),
	}
}

// Start binds the server side on the configured listen address and begins
// serving inbound envelopes. It returns the actual bound address, which
// matters when the configured port is 0. A client-only transport (empty
// listen address) starts trivially.
func (t *Transport) Start() (string, error) {
	if t.cfg.ListenAddr == "" {
		return "", nil
	}

	if t.cfg.Inbound == nil {
		return "", fmt.Errorf("listen address set without an " +
			"inbound surface")
	}

	tlsCfg := t.cfg.TLSConfig
	if tlsCfg == nil {
		return "", fmt.Errorf("listen address set without a TLS " +
			"config")
	}
	if tlsCfg.MinVersion < tls.VersionTLS13 {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.MinVersion = tls.VersionTLS13
	}
	if len(tlsCfg.NextProtos) == 0 {
		tlsCfg = tlsCfg.Clone()
		tlsCfg.NextProtos = []string{"h3"}
	}

	mux := http.NewServeMux()
	mux.HandleFunc(tellPath, t.handleTell)
	mux.HandleFunc(askPath, t.handleAsk)

	t.srv = &http3.Server{
		Addr:      t.cfg.ListenAddr,
		TLSConfig: tlsCfg,
		Handler:   mux,
	}

	pc, err := net.ListenPacket("udp", t.cfg.ListenAddr)
	if err != nil {
		return "", fmt.Errorf("bind %s: %w", t.cfg.ListenAddr, err)
	}
	t.pc = pc

	realAddr := pc.LocalAddr().String()

	t.mu.Lock()
	t.selfAddr = realAddr
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if err := t.srv.Serve(pc); err != nil {
			log.DebugS(context.Background(),
				"Transport server exited", "err", err)
		}

		close(done)
	}()

	t.stop = func() error {
		_ = t.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	log.InfoS(context.Background(), "Transport serving",
		"addr", realAddr)

	return realAddr, nil
}

// Stop shuts the server side down and closes idle client connections.
func (t *Transport) Stop() error {
	if tr, ok := t.client.Transport.(*http3.Transport); ok {
		_ = tr.Close()
	}

	if t.stop != nil {
		return t.stop()
	}

	return nil
}

// SelfAddr returns the host:port the local transport server answers on.
// Empty for a client-only transport.
func (t *Transport) SelfAddr() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.selfAddr
}

// SendOneWay delivers a fire-and-forget envelope to the node at addr.
func (t *Transport) SendOneWay(ctx context.Context, addr string,
	env actor.WireEnvelope) error {

	_, err := t.post(ctx, addr, tellPath, env)

	return err
}

// SendExpectingReply delivers an ask envelope and returns a future completed
// with the remote reply, or exceptionally on transport failure.
func (t *Transport) SendExpectingReply(ctx context.Context, addr string,
	env actor.WireEnvelope) actor.Future[actor.WireReply] {

	promise := actor.NewPromise[actor.WireReply]()

	go func() {
		body, err := t.post(ctx, addr, askPath, env)
		if err != nil {
			promise.Complete(fn.Err[actor.WireReply](err))
			return
		}

		var reply actor.WireReply
		if err := json.Unmarshal(body, &reply); err != nil {
			promise.Complete(fn.Err[actor.WireReply](
				fmt.Errorf("decode reply: %w", err),
			))
			return
		}

		promise.Complete(fn.Ok(reply))
	}()

	return promise.Future()
}

// RegisterHandle announces that the given identity is reachable through the
// node at addr.
func (t *Transport) RegisterHandle(addr string, id actor.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.exported[addr+"/"+id.String()] = struct{}{}

	log.DebugS(context.Background(), "Handle registered",
		"addr", addr, "actor_id", id)

	return nil
}

// UnregisterHandle withdraws a previous registration.
func (t *Transport) UnregisterHandle(addr string, id actor.ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := addr + "/" + id.String()
	if _, ok := t.exported[key]; !ok {
		return fmt.Errorf("handle %v not registered for %s", id, addr)
	}

	delete(t.exported, key)

	log.DebugS(context.Background(), "Handle unregistered",
		"addr", addr, "actor_id", id)

	return nil
}

// post runs one wire exchange and returns the response body.
func (t *Transport) post(ctx context.Context, addr, path string,
	env actor.WireEnvelope) ([]byte, error) {

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.RequestTimeout)
		defer cancel()
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	url := "https://" + addr + path
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(payload),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send to %s: %w", addr, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reply from %s: %w", addr, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node %s rejected envelope: %s: %s",
			addr, resp.Status, string(body))
	}

	return body, nil
}

// handleTell serves inbound one-way envelopes.
func (t *Transport) handleTell(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	if err := t.cfg.Inbound.DeliverTell(r.Context(), env); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleAsk serves inbound reply-expecting envelopes.
func (t *Transport) handleAsk(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	reply, err := t.cfg.Inbound.DeliverAsk(r.Context(), env)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		log.DebugS(r.Context(), "Reply encode failed", "err", err)
	}
}

// decodeEnvelope parses the request body, writing an HTTP error on failure.
func decodeEnvelope(w http.ResponseWriter,
	r *http.Request) (actor.WireEnvelope, bool) {

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed",
			http.StatusMethodNotAllowed)
		return actor.WireEnvelope{}, false
	}

	var env actor.WireEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		http.Error(w, fmt.Sprintf("malformed envelope: %v", err),
			http.StatusBadRequest)
		return actor.WireEnvelope{}, false
	}

	return env, true
}
