// Package transport implements the client side of the checkpoint RPC connection.
//
// ClientTransport multiplexes concurrent round trips over a single TCP connection.
// Each request gets a unique sequence ID and a background goroutine (recvLoop)
// reads responses and routes them to the waiting caller.
//
//	goroutine-1 ──RoundTrip(seq=1)──┐
//	goroutine-2 ──RoundTrip(seq=2)──┼──→ single TCP conn ──→ authority
//	goroutine-3 ──RoundTrip(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] → goroutine-2 wakes up
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"checkpoint-rpc/codec"
	"checkpoint-rpc/message"
	"checkpoint-rpc/protocol"
)

var (
	// ErrConnClosed is returned for round trips that were pending when the
	// connection broke, and for every round trip attempted afterwards.
	ErrConnClosed = errors.New("transport: connection closed")

	// ErrRemote wraps a failure the server reported below the authority handler
	// (no handler for the message type, handler timed out, rate limited).
	ErrRemote = errors.New("transport: remote failure")
)

const DefaultHeartbeatInterval = 30 * time.Second

type reply struct {
	wire []byte
	err  error
}

// ClientTransport manages a single multiplexed connection.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.Codec
	seq     uint32
	pending sync.Map   // map[uint32]chan reply
	sending sync.Mutex // serializes frame writes and seq assignment

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once

	heartbeat time.Duration
	logger    *zap.Logger
}

// Option configures a ClientTransport.
type Option func(*ClientTransport)

// WithHeartbeat sets the heartbeat interval. Zero disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(t *ClientTransport) {
		t.heartbeat = d
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *ClientTransport) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewClientTransport wraps conn and starts the receive loop and, unless disabled,
// the heartbeat loop.
func NewClientTransport(conn net.Conn, codecType codec.CodecType, opts ...Option) *ClientTransport {
	t := &ClientTransport{
		conn:      conn,
		codec:     codec.GetCodec(codecType),
		done:      make(chan struct{}),
		heartbeat: DefaultHeartbeatInterval,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.recvLoop()
	if t.heartbeat > 0 {
		go t.heartbeatLoop(t.heartbeat)
	}
	return t
}

// RoundTrip sends env and waits for the matching response.
//
// The context bounds only the wait: if it ends first the pending slot is
// released and a late response is dropped by recvLoop.
func (t *ClientTransport) RoundTrip(ctx context.Context, env *message.Envelope) (*message.Envelope, error) {
	seq, ch, err := t.send(env)
	if err != nil {
		return nil, err
	}

	var r reply
	select {
	case r = <-ch:
	case <-ctx.Done():
		t.pending.Delete(seq)
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}

	resp, errText, err := codec.DecodeEnvelope(t.codec, r.wire)
	if err != nil {
		return nil, err
	}
	if errText != "" {
		return nil, fmt.Errorf("%w: %s", ErrRemote, errText)
	}
	return resp, nil
}

// send encodes and writes one request frame. The response channel is registered
// before the write so recvLoop can never see a response without a waiter.
func (t *ClientTransport) send(env *message.Envelope) (uint32, <-chan reply, error) {
	body, err := codec.EncodeEnvelope(t.codec, env, "")
	if err != nil {
		return 0, nil, err
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	if t.closed.Load() {
		return 0, nil, ErrConnClosed
	}

	t.seq++
	seq := t.seq

	ch := make(chan reply, 1)
	t.pending.Store(seq, ch)
	// recvLoop may have failed between the check above and Store.
	if t.closed.Load() {
		t.pending.Delete(seq)
		return 0, nil, ErrConnClosed
	}

	header := protocol.Header{
		CodecType: byte(t.codec.Type()),
		Kind:      protocol.KindRequest,
		Seq:       seq,
	}
	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return seq, ch, nil
}

// recvLoop is the only reader of the connection; TCP is a byte stream so frame
// boundaries can only be parsed sequentially.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.closeAllPending(err)
			return
		}
		if header.Kind != protocol.KindResponse {
			continue
		}
		if ch, ok := t.pending.LoadAndDelete(header.Seq); ok {
			ch.(chan reply) <- reply{wire: body}
		} else {
			t.logger.Debug("dropping response without waiter", zap.Uint32("seq", header.Seq))
		}
	}
}

// closeAllPending fails every waiting round trip so none blocks forever.
func (t *ClientTransport) closeAllPending(cause error) {
	t.closed.Store(true)
	t.shutdown()
	if !errors.Is(cause, net.ErrClosed) {
		t.logger.Debug("connection lost", zap.String("remote", t.remote()), zap.Error(cause))
	}
	t.pending.Range(func(key, value any) bool {
		if ch, ok := t.pending.LoadAndDelete(key); ok {
			ch.(chan reply) <- reply{err: fmt.Errorf("%w: %v", ErrConnClosed, cause)}
		}
		return true
	})
}

// Close closes the connection. Pending round trips fail with ErrConnClosed.
func (t *ClientTransport) Close() error {
	t.closed.Store(true)
	t.shutdown()
	return t.conn.Close()
}

// Closed reports whether the connection is no longer usable.
func (t *ClientTransport) Closed() bool {
	return t.closed.Load()
}

func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

func (t *ClientTransport) shutdown() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *ClientTransport) remote() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// heartbeatLoop keeps idle connections from being reaped by the server.
// Heartbeat frames have no body.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{
			CodecType: byte(t.codec.Type()),
			Kind:      protocol.KindHeartbeat,
		}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}
