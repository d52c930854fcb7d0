package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkpoint-rpc/codec"
	"checkpoint-rpc/loadbalance"
	"checkpoint-rpc/message"
	"checkpoint-rpc/registry"
	"checkpoint-rpc/server"
	"checkpoint-rpc/transport"
)

// startAuthority answers checkpoint requests with rc and completion reports with
// a query response, which is never a valid answer to a status-only request.
func startAuthority(t *testing.T, rc int32) string {
	t.Helper()
	svr := server.NewServer(nil)
	svr.Handle(message.RequestCheckpoint, func(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
		return message.ReturnCode(rc), nil
	})
	svr.Handle(message.RequestCheckpointComp, func(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
		return &message.Envelope{Type: message.ResponseCheckpoint, Data: &message.CheckpointRespMsg{EventTime: 1}}, nil
	})

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.Serve(lis)
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	return lis.Addr().String()
}

func newTestClient(t *testing.T, addrs ...string) *Client {
	t.Helper()
	o := NewOptions()
	o.Controllers = addrs
	o.Codec = "msgpack"
	require.NoError(t, o.Complete())
	require.NoError(t, o.Validate())
	c, err := New(o, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

var checkpointReq = &message.Envelope{
	Type: message.RequestCheckpoint,
	Data: &message.CheckpointMsg{Op: 3, Data: 30, JobID: 42},
}

func TestSendAndReceiveStatus(t *testing.T) {
	c := newTestClient(t, startAuthority(t, 2031))

	rc, err := c.SendAndReceiveStatus(context.Background(), checkpointReq)
	require.NoError(t, err)
	assert.Equal(t, int32(2031), rc)
}

func TestSendAndReceive(t *testing.T) {
	c := newTestClient(t, startAuthority(t, 0))

	resp, err := c.SendAndReceive(context.Background(), &message.Envelope{
		Type: message.RequestCheckpointComp,
		Data: &message.CheckpointCompMsg{JobID: 42},
	})
	require.NoError(t, err)
	assert.Equal(t, message.ResponseCheckpoint, resp.Type)
	assert.Equal(t, &message.CheckpointRespMsg{EventTime: 1}, resp.Data)
}

func TestSendAndReceiveStatusUnexpectedReply(t *testing.T) {
	c := newTestClient(t, startAuthority(t, 0))

	_, err := c.SendAndReceiveStatus(context.Background(), &message.Envelope{
		Type: message.RequestCheckpointComp,
		Data: &message.CheckpointCompMsg{JobID: 42},
	})
	assert.ErrorIs(t, err, message.ErrUnexpectedMessage)
}

func TestRoundRobinAcrossAuthorities(t *testing.T) {
	c := newTestClient(t, startAuthority(t, 1), startAuthority(t, 2))

	seen := map[int32]int{}
	for range 4 {
		rc, err := c.SendAndReceiveStatus(context.Background(), checkpointReq)
		require.NoError(t, err)
		seen[rc]++
	}
	assert.Equal(t, map[int32]int{1: 2, 2: 2}, seen)
}

func TestNoAuthorityRegistered(t *testing.T) {
	pool := transport.NewPool(1, nil, codec.CodecTypeBinary, nil)
	c := NewClient(registry.NewStaticRegistry(), &loadbalance.RoundRobinBalancer{}, pool)
	defer c.Close()

	_, err := c.SendAndReceive(context.Background(), checkpointReq)
	assert.ErrorIs(t, err, registry.ErrNoInstances)
}

func TestAuthorityUnreachable(t *testing.T) {
	// Grab a free port and release it so nothing is listening there.
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	lis.Close()

	c := newTestClient(t, addr)
	_, err = c.SendAndReceiveStatus(context.Background(), checkpointReq)
	require.Error(t, err)
	assert.Contains(t, err.Error(), addr)
}

func TestRequestTimeout(t *testing.T) {
	svr := server.NewServer(nil)
	svr.Handle(message.RequestCheckpoint, func(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
		time.Sleep(200 * time.Millisecond)
		return message.ReturnCode(0), nil
	})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.Serve(lis)
	defer svr.Shutdown(time.Second)

	pool := transport.NewPool(1, nil, codec.CodecTypeJSON, nil)
	c := NewClient(registry.NewStaticRegistryFromAddrs("ckptctld", []string{lis.Addr().String()}),
		&loadbalance.RoundRobinBalancer{}, pool, WithRequestTimeout(20*time.Millisecond))
	defer c.Close()

	_, err = c.SendAndReceiveStatus(context.Background(), checkpointReq)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	require.NoError(t, o.Validate())

	o.Controllers = []string{" ", ""}
	require.NoError(t, o.Complete())
	assert.Empty(t, o.Controllers)
	assert.ErrorContains(t, o.Validate(), "controllers or etcd endpoints")

	o = NewOptions()
	o.Codec = "xml"
	o.Balancer = "random"
	o.PoolSize = 0
	err := o.Validate()
	assert.ErrorContains(t, err, "unknown codec")
	assert.ErrorContains(t, err, "unknown balancer")
	assert.ErrorContains(t, err, "pool size")
}

func TestWatchFollowsRegistry(t *testing.T) {
	first, second := startAuthority(t, 1), startAuthority(t, 2)
	reg := registry.NewStaticRegistryFromAddrs("ckptctld", []string{first})
	pool := transport.NewPool(1, nil, codec.CodecTypeBinary, nil)
	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, pool, WithWatch())
	defer c.Close()

	rc, err := c.SendAndReceiveStatus(context.Background(), checkpointReq)
	require.NoError(t, err)
	assert.Equal(t, int32(1), rc)

	// Swap the only authority; the watched list must follow.
	ctx := context.Background()
	require.NoError(t, reg.Register(ctx, "ckptctld", registry.ServiceInstance{Addr: second, Weight: 1}, 0))
	require.NoError(t, reg.Deregister(ctx, "ckptctld", first))

	require.Eventually(t, func() bool {
		rc, err := c.SendAndReceiveStatus(context.Background(), checkpointReq)
		return err == nil && rc == 2
	}, time.Second, 10*time.Millisecond)
}
