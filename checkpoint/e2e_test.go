package checkpoint_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkpoint-rpc/authority"
	"checkpoint-rpc/checkpoint"
	"checkpoint-rpc/client"
	"checkpoint-rpc/middleware"
	"checkpoint-rpc/server"
)

// startStack serves a fresh authority on a loopback port and returns a
// checkpoint client talking to it with the given codec.
func startStack(t *testing.T, codecName string) (*authority.Authority, *checkpoint.Client) {
	t.Helper()
	auth := authority.New()
	svr := server.NewServer(nil)
	svr.Use(middleware.TimeoutMiddleware(time.Second))
	auth.Register(svr)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.Serve(lis)
	t.Cleanup(func() { svr.Shutdown(time.Second) })

	o := client.NewOptions()
	o.Controllers = []string{lis.Addr().String()}
	o.Codec = codecName
	cli, err := client.New(o, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cli.Close() })

	return auth, checkpoint.NewClient(cli)
}

func TestCreateCompleteError(t *testing.T) {
	for _, codecName := range []string{"json", "binary", "msgpack"} {
		t.Run(codecName, func(t *testing.T) {
			auth, c := startStack(t, codecName)
			auth.AddStep(42, 0)
			ctx := context.Background()

			require.NoError(t, c.Create(ctx, 42, 0, 30*time.Second))
			step, _ := auth.Step(42, 0)
			assert.True(t, step.InProgress)
			assert.Equal(t, 30*time.Second, step.Deadline.Sub(step.StartTime))

			begin, err := c.Able(ctx, 42, 0)
			require.NoError(t, err)
			assert.Equal(t, step.StartTime.Unix(), begin.Unix())

			require.NoError(t, c.Complete(ctx, checkpoint.CompletionReport{
				JobID:     42,
				StepID:    0,
				BeginTime: begin,
				ErrorCode: 7,
				ErrorMsg:  "disk full",
			}))

			var code uint32
			var msg string
			require.NoError(t, c.QueryError(ctx, 42, 0, &code, &msg))
			assert.Equal(t, uint32(7), code)
			assert.Equal(t, "disk full", msg)
			assert.Zero(t, c.ErrorState().Last())
		})
	}
}

func TestAuthorityRejectionOverTheWire(t *testing.T) {
	_, c := startStack(t, "binary")
	ctx := context.Background()

	start, err := c.Able(ctx, 9, 9)
	require.ErrorIs(t, err, checkpoint.ErrAuthority)
	assert.True(t, start.IsZero())
	assert.Equal(t, authority.CodeInvalidJobID, checkpoint.Status(err))
	assert.Equal(t, authority.CodeInvalidJobID, c.ErrorState().Last())
}

func TestAuthorityUnreachable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	lis.Close()

	o := client.NewOptions()
	o.Controllers = []string{addr}
	cli, err := client.New(o, nil)
	require.NoError(t, err)
	defer cli.Close()
	c := checkpoint.NewClient(cli)

	err = c.Disable(context.Background(), 1, 0)
	require.ErrorIs(t, err, checkpoint.ErrTransport)
	assert.Equal(t, checkpoint.CodeTransport, checkpoint.Status(err))
	assert.Zero(t, c.ErrorState().Last())
}
