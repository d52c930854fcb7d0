package client

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"checkpoint-rpc/codec"
	"checkpoint-rpc/loadbalance"
	"checkpoint-rpc/message"
	"checkpoint-rpc/registry"
	"checkpoint-rpc/server"
	"checkpoint-rpc/transport"
)

func setupBench(b *testing.B, codecType codec.CodecType, poolSize int) *Client {
	b.Helper()
	svr := server.NewServer(nil)
	svr.Handle(message.RequestCheckpoint, func(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
		return message.ReturnCode(0), nil
	})
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatal(err)
	}
	go svr.Serve(lis)
	b.Cleanup(func() { svr.Shutdown(3 * time.Second) })

	reg := registry.NewStaticRegistryFromAddrs("ckptctld", []string{lis.Addr().String()})
	pool := transport.NewPool(poolSize, nil, codecType, nil)
	c := NewClient(reg, &loadbalance.RoundRobinBalancer{}, pool)
	b.Cleanup(func() { c.Close() })
	return c
}

func BenchmarkSerialStatus(b *testing.B) {
	for _, ct := range []codec.CodecType{codec.CodecTypeJSON, codec.CodecTypeBinary, codec.CodecTypeMsgpack} {
		b.Run(ct.String(), func(b *testing.B) {
			c := setupBench(b, ct, 1)
			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.SendAndReceiveStatus(ctx, checkpointReq); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkConcurrentStatus(b *testing.B) {
	for _, poolSize := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("pool-%d", poolSize), func(b *testing.B) {
			c := setupBench(b, codec.CodecTypeBinary, poolSize)
			ctx := context.Background()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := c.SendAndReceiveStatus(ctx, checkpointReq); err != nil {
						b.Error(err)
						return
					}
				}
			})
		})
	}
}
