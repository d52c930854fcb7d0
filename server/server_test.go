package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkpoint-rpc/codec"
	"checkpoint-rpc/message"
	"checkpoint-rpc/middleware"
	"checkpoint-rpc/protocol"
	"checkpoint-rpc/registry"
)

// echoStep answers a checkpoint request with the step id as return code, so tests
// can tell responses apart.
func echoStep(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
	m := req.Data.(*message.CheckpointMsg)
	return message.ReturnCode(int32(m.StepID)), nil
}

func startServer(t *testing.T, svr *Server) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- svr.Serve(lis) }()
	t.Cleanup(func() {
		require.NoError(t, svr.Shutdown(time.Second))
		require.NoError(t, <-served)
	})
	return lis.Addr().String()
}

// roundTrip writes one raw request frame and reads the response frame.
func roundTrip(t *testing.T, conn net.Conn, c codec.Codec, seq uint32, env *message.Envelope) (*protocol.Header, *message.Envelope, string) {
	t.Helper()
	body, err := codec.EncodeEnvelope(c, env, "")
	require.NoError(t, err)
	require.NoError(t, protocol.Encode(conn, &protocol.Header{CodecType: byte(c.Type()), Kind: protocol.KindRequest, Seq: seq}, body))

	header, respBody, err := protocol.Decode(conn)
	require.NoError(t, err)
	resp, errText, err := codec.DecodeEnvelope(c, respBody)
	require.NoError(t, err)
	return header, resp, errText
}

func TestServerDispatch(t *testing.T) {
	for _, c := range []codec.Codec{&codec.JSONCodec{}, &codec.BinaryCodec{}, &codec.MsgpackCodec{}} {
		t.Run(c.Type().String(), func(t *testing.T) {
			svr := NewServer(nil)
			svr.Handle(message.RequestCheckpoint, echoStep)
			addr := startServer(t, svr)

			conn, err := net.Dial("tcp", addr)
			require.NoError(t, err)
			defer conn.Close()

			req := &message.Envelope{Type: message.RequestCheckpoint, Data: &message.CheckpointMsg{JobID: 1, StepID: 9}}
			header, resp, errText := roundTrip(t, conn, c, 77, req)

			assert.Equal(t, protocol.KindResponse, header.Kind)
			assert.Equal(t, uint32(77), header.Seq)
			assert.Empty(t, errText)
			require.NotNil(t, resp)
			assert.Equal(t, &message.ReturnCodeMsg{ReturnCode: 9}, resp.Data)
		})
	}
}

func TestServerNoHandler(t *testing.T) {
	svr := NewServer(nil)
	addr := startServer(t, svr)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	req := &message.Envelope{Type: message.RequestCheckpointComp, Data: &message.CheckpointCompMsg{JobID: 1}}
	_, resp, errText := roundTrip(t, conn, &codec.JSONCodec{}, 1, req)
	assert.Nil(t, resp)
	assert.Contains(t, errText, ErrNoHandler.Error())
}

func TestServerSkipsHeartbeat(t *testing.T) {
	svr := NewServer(nil)
	svr.Handle(message.RequestCheckpoint, echoStep)
	addr := startServer(t, svr)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.Encode(conn, &protocol.Header{Kind: protocol.KindHeartbeat}, nil))
	req := &message.Envelope{Type: message.RequestCheckpoint, Data: &message.CheckpointMsg{StepID: 3}}
	header, resp, _ := roundTrip(t, conn, &codec.BinaryCodec{}, 5, req)
	assert.Equal(t, uint32(5), header.Seq)
	assert.Equal(t, &message.ReturnCodeMsg{ReturnCode: 3}, resp.Data)
}

func TestServerMiddlewareError(t *testing.T) {
	svr := NewServer(nil)
	svr.Use(middleware.RateLimitMiddleware(0, 0))
	svr.Handle(message.RequestCheckpoint, echoStep)
	addr := startServer(t, svr)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	req := &message.Envelope{Type: message.RequestCheckpoint, Data: &message.CheckpointMsg{}}
	_, resp, errText := roundTrip(t, conn, &codec.MsgpackCodec{}, 1, req)
	assert.Nil(t, resp)
	assert.Equal(t, middleware.ErrRateLimited.Error(), errText)
}

func TestServerAnnounce(t *testing.T) {
	reg := registry.NewStaticRegistry()
	svr := NewServer(nil)
	svr.Announce(reg, "ckptctld", "", 10)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- svr.Serve(lis) }()

	require.Eventually(t, func() bool {
		instances, err := reg.Discover(context.Background(), "ckptctld")
		return err == nil && len(instances) == 1 && instances[0].Addr == lis.Addr().String()
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, svr.Shutdown(time.Second))
	require.NoError(t, <-served)

	_, err = reg.Discover(context.Background(), "ckptctld")
	assert.ErrorIs(t, err, registry.ErrNoInstances)
}
