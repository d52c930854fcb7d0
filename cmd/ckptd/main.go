// Command ckptd serves the in-memory checkpoint authority.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkpoint-rpc/authority"
	"checkpoint-rpc/internal/config"
	"checkpoint-rpc/middleware"
	"checkpoint-rpc/registry"
	"checkpoint-rpc/server"
)

const name = "ckptd"

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	o := newOptions()
	cmd := &cobra.Command{
		Use:           name,
		Short:         "Serve the checkpoint authority",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString(config.FlagName)
			if err := config.Load(cmd.Flags(), name, configFile); err != nil {
				return err
			}
			if err := o.validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, o, nil)
		},
	}
	cmd.Flags().StringP(config.FlagName, "c", "", "Path to config file")
	o.addFlags(cmd.Flags())
	return cmd
}

// run serves until ctx ends. ready, when non-nil, receives the listen address
// once the server accepts connections.
func run(ctx context.Context, o *options, ready chan<- net.Addr) error {
	logger, err := o.Log.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	auth := authority.New(
		authority.WithAutoCreate(o.AutoCreate),
		authority.WithLogger(logger.Named("authority")),
	)
	for _, s := range o.Steps {
		jobID, stepID, _ := parseStep(s)
		auth.AddStep(jobID, stepID)
	}

	svr := server.NewServer(logger.Named("server"))
	svr.Use(middleware.LoggingMiddleware(logger.Named("request")))
	if o.HandlerTimeout > 0 {
		svr.Use(middleware.TimeoutMiddleware(o.HandlerTimeout))
	}
	if o.RateLimit > 0 {
		svr.Use(middleware.RateLimitMiddleware(o.RateLimit, o.RateBurst))
	}
	auth.Register(svr)

	if len(o.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(o.EtcdEndpoints, o.DialTimeout, o.EtcdPrefix, logger)
		if err != nil {
			return err
		}
		defer reg.Close()
		svr.Announce(reg, o.ServiceName, o.Advertise, o.LeaseTTL)
	}

	lis, err := net.Listen("tcp", o.Listen)
	if err != nil {
		return err
	}
	served := make(chan error, 1)
	go func() { served <- svr.Serve(lis) }()
	if ready != nil {
		ready <- lis.Addr()
	}

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	if err := svr.Shutdown(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	return <-served
}

// parseStep parses "JOB.STEP".
func parseStep(s string) (uint32, uint32, error) {
	jobPart, stepPart, ok := strings.Cut(s, ".")
	if !ok {
		return 0, 0, fmt.Errorf("step %q is not JOB.STEP", s)
	}
	jobID, err1 := strconv.ParseUint(jobPart, 10, 32)
	stepID, err2 := strconv.ParseUint(stepPart, 10, 32)
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("step %q is not JOB.STEP", s)
	}
	return uint32(jobID), uint32(stepID), nil
}
