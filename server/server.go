// Package server implements the authority side of the checkpoint RPC connection:
// handler registration by message type, a middleware chain, parallel request
// processing, optional registry announcement, and graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → DecodeEnvelope → Middleware Chain → dispatch (handler for req.Type) → EncodeEnvelope → write response
package server

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
	"checkpoint-rpc/middleware"
	"checkpoint-rpc/protocol"
	"checkpoint-rpc/registry"
)

var (
	ErrNoHandler        = errors.New("no handler for message type")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Server answers checkpoint requests with the handler registered for each message type.
type Server struct {
	handlers    map[message.MsgType]middleware.HandlerFunc
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(dispatch)))

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool

	registry      registry.Registry
	serviceName   string
	advertiseAddr string
	ttl           int64

	logger *zap.Logger
}

func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		handlers: make(map[message.MsgType]middleware.HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
		logger:   logger,
	}
}

// Handle registers h for requests tagged t. It must be called before Serve.
func (svr *Server) Handle(t message.MsgType, h middleware.HandlerFunc) {
	svr.handlers[t] = h
}

// Use appends a middleware. Middlewares run in the order they were added.
func (svr *Server) Use(mw middleware.Middleware) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Announce makes Serve register advertiseAddr under serviceName in reg, with a
// lease of ttl seconds, and Shutdown deregister it. advertiseAddr differs from the
// listen address because ":6817" is not routable from other hosts.
func (svr *Server) Announce(reg registry.Registry, serviceName, advertiseAddr string, ttl int64) {
	svr.registry = reg
	svr.serviceName = serviceName
	svr.advertiseAddr = advertiseAddr
	svr.ttl = ttl
}

// ListenAndServe listens on address and calls Serve.
func (svr *Server) ListenAndServe(network, address string) error {
	lis, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.Serve(lis)
}

// Serve accepts connections on lis until Shutdown. It returns nil after Shutdown.
func (svr *Server) Serve(lis net.Listener) error {
	svr.mu.Lock()
	svr.listener = lis
	svr.mu.Unlock()

	// Build the chain once at startup, not per request.
	svr.handler = middleware.Chain(svr.middlewares...)(svr.dispatch)

	if svr.registry != nil {
		addr := svr.advertiseAddr
		if addr == "" {
			addr = lis.Addr().String()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := svr.registry.Register(ctx, svr.serviceName, registry.ServiceInstance{Addr: addr, Weight: 1}, svr.ttl)
		cancel()
		if err != nil {
			lis.Close()
			return fmt.Errorf("register %s: %w", svr.serviceName, err)
		}
		svr.mu.Lock()
		svr.advertiseAddr = addr
		svr.mu.Unlock()
		svr.logger.Info("registered authority", zap.String("service", svr.serviceName), zap.String("addr", addr))
	}

	svr.logger.Info("serving", zap.Stringer("addr", lis.Addr()))
	for {
		conn, err := lis.Accept()
		if err != nil {
			// Shutdown closes the listener; that Accept error is expected.
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		if !svr.track(conn) {
			conn.Close()
			return nil
		}
		go svr.handleConn(conn)
	}
}

// Addr returns the listen address, or nil before Serve.
func (svr *Server) Addr() net.Addr {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.listener == nil {
		return nil
	}
	return svr.listener.Addr()
}

func (svr *Server) track(conn net.Conn) bool {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.conns[conn] = struct{}{}
	return true
}

// handleConn reads frames sequentially (one reader per connection) and dispatches
// each request to its own goroutine. writeMu is shared by those goroutines so
// responses never interleave on the wire.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		svr.mu.Lock()
		delete(svr.conns, conn)
		svr.mu.Unlock()
		conn.Close()
	}()

	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				svr.logger.Debug("connection closed", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			}
			return
		}
		if header.Kind != protocol.KindRequest {
			continue // heartbeats only keep the connection alive
		}
		svr.wg.Add(1)
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// handleRequest decodes one request, runs it through the middleware chain and
// writes the response with the request's sequence number.
func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))

	var (
		resp    *message.Envelope
		errText string
	)
	req, _, err := codec.DecodeEnvelope(c, body)
	if err == nil && req == nil {
		err = errors.New("request carries an error record")
	}
	if err == nil {
		resp, err = svr.handler(context.Background(), req)
	}
	if err != nil {
		errText = err.Error()
		resp = nil
	}

	result, err := codec.EncodeEnvelope(c, resp, errText)
	if err != nil {
		svr.logger.Error("encode response", zap.Error(err))
		result, err = codec.EncodeEnvelope(c, nil, err.Error())
		if err != nil {
			return
		}
	}

	reply := protocol.Header{
		CodecType: header.CodecType,
		Kind:      protocol.KindResponse,
		Seq:       header.Seq,
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &reply, result); err != nil {
		svr.logger.Warn("write response", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
	}
}

// dispatch is the innermost handler: it finds the handler for the request's type.
func (svr *Server) dispatch(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
	h, ok := svr.handlers[req.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, req.Type)
	}
	if _, raw := req.Data.(message.Raw); raw {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, req.Type)
	}
	return h(ctx, req)
}

// Shutdown stops the server gracefully:
//  1. deregister from the registry so clients stop routing here
//  2. close the listener
//  3. wait for in-flight requests (bounded by timeout)
//  4. close remaining connections
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.mu.Lock()
	advertised := svr.advertiseAddr
	svr.mu.Unlock()
	if svr.registry != nil && advertised != "" {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := svr.registry.Deregister(ctx, svr.serviceName, advertised); err != nil {
			svr.logger.Warn("deregister", zap.Error(err))
		}
		cancel()
	}

	// Set the flag before closing so Serve sees an intentional Accept error.
	svr.mu.Lock()
	svr.shutdown.Store(true)
	if svr.listener != nil {
		svr.listener.Close()
	}
	svr.mu.Unlock()

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	svr.mu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.mu.Unlock()
	return err
}
