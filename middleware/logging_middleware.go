package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"checkpoint-rpc/message"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.Stringer("type", req.Type),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("request failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			if resp != nil {
				if rc, ok := resp.Data.(*message.ReturnCodeMsg); ok {
					fields = append(fields, zap.Int32("rc", rc.ReturnCode))
				}
			}
			logger.Info("request handled", fields...)
			return resp, nil
		}
	}
}
