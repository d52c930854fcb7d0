package transport

// Pool keeps up to size ClientTransports per authority address.
//
// Transports are created lazily and borrowed exclusively: Get takes one out,
// Put returns it. A buffered channel per address is the idle queue, so waiting
// for a free transport is a plain channel receive. Broken transports are
// discarded on Get/Put and replaced by fresh dials.

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"checkpoint-rpc/codec"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("transport: pool closed")

// DialFunc opens a connection to addr.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

type addrPool struct {
	idle chan *ClientTransport
	open int // transports created and not yet discarded
}

type Pool struct {
	mu     sync.Mutex
	addrs  map[string]*addrPool
	size   int
	closed bool
	done   chan struct{}

	dial      DialFunc
	codecType codec.CodecType
	opts      []Option
	logger    *zap.Logger
}

// NewPool creates an empty pool. size below 1 is treated as 1.
func NewPool(size int, dial DialFunc, codecType codec.CodecType, logger *zap.Logger, opts ...Option) *Pool {
	if size < 1 {
		size = 1
	}
	if dial == nil {
		var d net.Dialer
		dial = func(ctx context.Context, addr string) (net.Conn, error) {
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		addrs:     make(map[string]*addrPool),
		size:      size,
		done:      make(chan struct{}),
		dial:      dial,
		codecType: codecType,
		opts:      append([]Option{WithLogger(logger)}, opts...),
		logger:    logger,
	}
}

// Get borrows a transport for addr, dialing a new one when none is idle and the
// address is under its limit, otherwise waiting until one is returned or ctx ends.
func (p *Pool) Get(ctx context.Context, addr string) (*ClientTransport, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrPoolClosed
		}
		ap, ok := p.addrs[addr]
		if !ok {
			ap = &addrPool{idle: make(chan *ClientTransport, p.size)}
			p.addrs[addr] = ap
		}

		select {
		case t := <-ap.idle:
			if t.Closed() {
				ap.open--
				p.mu.Unlock()
				continue
			}
			p.mu.Unlock()
			return t, nil
		default:
		}

		if ap.open < p.size {
			ap.open++
			p.mu.Unlock()
			return p.create(ctx, addr, ap)
		}
		p.mu.Unlock()

		select {
		case t := <-ap.idle:
			if t.Closed() {
				p.discard(ap)
				continue
			}
			return t, nil
		case <-p.done:
			return nil, ErrPoolClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (p *Pool) create(ctx context.Context, addr string, ap *addrPool) (*ClientTransport, error) {
	conn, err := p.dial(ctx, addr)
	if err != nil {
		p.discard(ap)
		return nil, err
	}
	p.logger.Debug("dialed authority", zap.String("addr", addr))
	return NewClientTransport(conn, p.codecType, p.opts...), nil
}

func (p *Pool) discard(ap *addrPool) {
	p.mu.Lock()
	ap.open--
	p.mu.Unlock()
}

// Put returns a borrowed transport. Broken transports are dropped.
func (p *Pool) Put(addr string, t *ClientTransport) {
	p.mu.Lock()
	ap, ok := p.addrs[addr]
	if p.closed || !ok || t.Closed() {
		if ok {
			ap.open--
		}
		p.mu.Unlock()
		t.Close()
		return
	}
	ap.idle <- t // never blocks: at most size transports exist per address
	p.mu.Unlock()
}

// Close closes every idle transport. Borrowed ones are closed when returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	for _, ap := range p.addrs {
	drain:
		for {
			select {
			case t := <-ap.idle:
				t.Close()
				ap.open--
			default:
				break drain
			}
		}
	}
	return nil
}
