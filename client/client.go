// Package client sends checkpoint requests to whichever authority instance the
// registry and balancer select, over pooled multiplexed connections.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"checkpoint-rpc/codec"
	"checkpoint-rpc/loadbalance"
	"checkpoint-rpc/message"
	"checkpoint-rpc/registry"
	"checkpoint-rpc/transport"
)

type Client struct {
	registry    registry.Registry // find authority instances
	balancer    loadbalance.Balancer
	pool        *transport.Pool // transports per authority address
	serviceName string
	timeout     time.Duration
	logger      *zap.Logger

	watch     bool
	instances atomic.Pointer[[]registry.ServiceInstance] // latest list from Watch
	stopWatch context.CancelFunc

	closers []io.Closer // resources built by New
}

type Option func(*Client)

// WithServiceName sets the name authority instances are registered under.
func WithServiceName(name string) Option {
	return func(c *Client) {
		c.serviceName = name
	}
}

// WithRequestTimeout bounds every round trip, including discovery and dialing.
// Zero leaves only the caller's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithWatch keeps a local copy of the instance list current through
// Registry.Watch, so round trips skip Discover while the list is non-empty.
func WithWatch() Option {
	return func(c *Client) {
		c.watch = true
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(reg registry.Registry, bal loadbalance.Balancer, pool *transport.Pool, opts ...Option) *Client {
	c := &Client{
		registry:    reg,
		balancer:    bal,
		pool:        pool,
		serviceName: NewOptions().ServiceName,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.watch {
		ctx, cancel := context.WithCancel(context.Background())
		c.stopWatch = cancel
		go c.watchInstances(ctx)
	}
	return c
}

// New builds a Client from completed and validated options. Discovery goes
// through etcd when endpoints are configured, otherwise through the static
// controller list.
func New(o *Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	codecType, err := codec.ParseCodecType(o.Codec)
	if err != nil {
		return nil, err
	}
	bal, err := loadbalance.New(o.Balancer)
	if err != nil {
		return nil, err
	}

	var (
		reg     registry.Registry
		closers []io.Closer
	)
	if len(o.EtcdEndpoints) > 0 {
		etcdReg, err := registry.NewEtcdRegistry(o.EtcdEndpoints, o.DialTimeout, o.EtcdPrefix, logger)
		if err != nil {
			return nil, err
		}
		reg = etcdReg
		closers = append(closers, etcdReg)
	} else {
		reg = registry.NewStaticRegistryFromAddrs(o.ServiceName, o.Controllers)
	}

	dialer := &net.Dialer{Timeout: o.DialTimeout}
	pool := transport.NewPool(o.PoolSize, func(ctx context.Context, addr string) (net.Conn, error) {
		return dialer.DialContext(ctx, "tcp", addr)
	}, codecType, logger, transport.WithHeartbeat(o.Heartbeat))

	opts := []Option{
		WithServiceName(o.ServiceName),
		WithRequestTimeout(o.RequestTimeout),
		WithLogger(logger),
	}
	if len(o.EtcdEndpoints) > 0 {
		opts = append(opts, WithWatch())
	}
	c := NewClient(reg, bal, pool, opts...)
	c.closers = closers
	return c, nil
}

// SendAndReceive performs one round trip with an authority instance. A nil error
// means a response arrived; whether the authority accepted the request is in the
// response. Nothing is retried.
func (c *Client) SendAndReceive(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	instances, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}
	instance, err := c.balancer.Pick(instances)
	if err != nil {
		return nil, err
	}

	t, err := c.pool.Get(ctx, instance.Addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", instance.Addr, err)
	}
	defer c.pool.Put(instance.Addr, t)

	start := time.Now()
	resp, err := t.RoundTrip(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s to %s: %w", req.Type, instance.Addr, err)
	}
	c.logger.Debug("round trip",
		zap.Stringer("request", req.Type),
		zap.Stringer("response", resp.Type),
		zap.String("addr", instance.Addr),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}

// SendAndReceiveStatus performs a round trip whose only acceptable answer is a
// return code. Any other reply yields an error wrapping message.ErrUnexpectedMessage.
func (c *Client) SendAndReceiveStatus(ctx context.Context, req *message.Envelope) (int32, error) {
	resp, err := c.SendAndReceive(ctx, req)
	if err != nil {
		return 0, err
	}
	rc, ok := resp.Data.(*message.ReturnCodeMsg)
	if resp.Type != message.ResponseReturnCode || !ok {
		return 0, fmt.Errorf("%w: %s in reply to %s", message.ErrUnexpectedMessage, resp.Type, req.Type)
	}
	return rc.ReturnCode, nil
}

func (c *Client) discover(ctx context.Context) ([]registry.ServiceInstance, error) {
	if cached := c.instances.Load(); cached != nil && len(*cached) > 0 {
		return *cached, nil
	}
	instances, err := c.registry.Discover(ctx, c.serviceName)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", c.serviceName, err)
	}
	return instances, nil
}

func (c *Client) watchInstances(ctx context.Context) {
	for instances := range c.registry.Watch(ctx, c.serviceName) {
		c.instances.Store(&instances)
		c.logger.Debug("authority instances changed", zap.String("service", c.serviceName), zap.Int("count", len(instances)))
	}
}

// Close closes pooled connections and whatever New created.
func (c *Client) Close() error {
	if c.stopWatch != nil {
		c.stopWatch()
	}
	errs := []error{c.pool.Close()}
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
