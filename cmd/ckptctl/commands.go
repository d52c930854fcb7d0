package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"checkpoint-rpc/checkpoint"
	"checkpoint-rpc/client"
	"checkpoint-rpc/internal/config"
	"checkpoint-rpc/internal/logging"
)

const name = "ckptctl"

// app is the state shared by all subcommands, set up before each one runs.
type app struct {
	clientOpts *client.Options
	logOpts    *logging.Options

	out    io.Writer
	logger *zap.Logger
	rpc    *client.Client
	ckpt   *checkpoint.Client
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{
		clientOpts: client.NewOptions(),
		logOpts:    logging.NewOptions(),
		out:        out,
	}

	cmd := &cobra.Command{
		Use:               name,
		Short:             "Control checkpoints of job steps",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) { a.teardown() },
	}
	cmd.SetOut(out)

	fs := cmd.PersistentFlags()
	fs.StringP(config.FlagName, "c", "", "Path to config file")
	a.clientOpts.AddFlags(fs, "")
	a.logOpts.AddFlags(fs)

	cmd.AddCommand(
		a.stepCommand("able", "Report whether a checkpoint may be initiated now", a.able),
		a.stepCommand("disable", "Stop accepting checkpoint requests for a step", a.statusOp("disable", (*checkpoint.Client).Disable)),
		a.stepCommand("enable", "Accept checkpoint requests for a step again", a.statusOp("enable", (*checkpoint.Client).Enable)),
		a.waitCommand("create", "Checkpoint a step and let it continue", (*checkpoint.Client).Create),
		a.waitCommand("vacate", "Checkpoint a step and terminate it", (*checkpoint.Client).Vacate),
		a.stepCommand("restart", "Restart a checkpointed step", a.statusOp("restart", (*checkpoint.Client).Restart)),
		a.completeCommand(),
		a.stepCommand("error", "Show the error recorded for a step's last checkpoint", a.queryError),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString(config.FlagName)
	if err := config.Load(cmd.Flags(), name, configFile); err != nil {
		return err
	}
	if err := a.logOpts.Validate(); err != nil {
		return err
	}
	if err := a.clientOpts.Complete(); err != nil {
		return err
	}
	if err := a.clientOpts.Validate(); err != nil {
		return err
	}

	logger, err := a.logOpts.Build()
	if err != nil {
		return err
	}
	a.logger = logger

	rpc, err := client.New(a.clientOpts, logger)
	if err != nil {
		return err
	}
	a.rpc = rpc
	a.ckpt = checkpoint.NewClient(rpc,
		checkpoint.WithErrorState(checkpoint.ProcessErrorState()),
		checkpoint.WithLogger(logger.Named("checkpoint")),
	)
	return nil
}

func (a *app) teardown() {
	if a.rpc != nil {
		a.rpc.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

type stepFunc func(ctx context.Context, jobID, stepID uint32) error

// statusOp runs an operation that only reports success or failure. a.ckpt is
// read at run time because setup creates it after the command tree is built.
func (a *app) statusOp(use string, op func(*checkpoint.Client, context.Context, uint32, uint32) error) stepFunc {
	return func(ctx context.Context, jobID, stepID uint32) error {
		if err := op(a.ckpt, ctx, jobID, stepID); err != nil {
			return err
		}
		a.ok(use, jobID, stepID)
		return nil
	}
}

func (a *app) ok(use string, jobID, stepID uint32) {
	fmt.Fprintf(a.out, "%s %d.%d: ok\n", use, jobID, stepID)
}

func (a *app) stepCommand(use, short string, run stepFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " JOB.STEP",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, stepID, err := parseStep(args[0])
			if err != nil {
				return err
			}
			return run(cmd.Context(), jobID, stepID)
		},
	}
}

func (a *app) waitCommand(use, short string, op func(*checkpoint.Client, context.Context, uint32, uint32, time.Duration) error) *cobra.Command {
	var maxWait time.Duration
	cmd := a.stepCommand(use, short, func(ctx context.Context, jobID, stepID uint32) error {
		if err := op(a.ckpt, ctx, jobID, stepID, maxWait); err != nil {
			return err
		}
		a.ok(use, jobID, stepID)
		return nil
	})
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "How long the authority waits for completion (whole seconds, at most 65535s)")
	return cmd
}

func (a *app) completeCommand() *cobra.Command {
	var (
		begin     string
		errorCode uint32
		errorMsg  string
	)
	cmd := a.stepCommand("complete", "Report completion of a step's checkpoint", func(ctx context.Context, jobID, stepID uint32) error {
		beginTime, err := parseTime(begin)
		if err != nil {
			return err
		}
		err = a.ckpt.Complete(ctx, checkpoint.CompletionReport{
			JobID:     jobID,
			StepID:    stepID,
			BeginTime: beginTime,
			ErrorCode: errorCode,
			ErrorMsg:  errorMsg,
		})
		if err != nil {
			return err
		}
		a.ok("complete", jobID, stepID)
		return nil
	})
	fs := cmd.Flags()
	fs.StringVar(&begin, "begin-time", "", "When the checkpoint began (unix seconds or RFC 3339)")
	fs.Uint32Var(&errorCode, "error-code", 0, "Checkpoint error code, 0 for success")
	fs.StringVar(&errorMsg, "error-msg", "", "Checkpoint error message")
	return cmd
}

func (a *app) able(ctx context.Context, jobID, stepID uint32) error {
	start, err := a.ckpt.Able(ctx, jobID, stepID)
	if err != nil {
		return err
	}
	if start.IsZero() {
		fmt.Fprintf(a.out, "able %d.%d: yes\n", jobID, stepID)
	} else {
		fmt.Fprintf(a.out, "able %d.%d: yes, last checkpoint began %s\n", jobID, stepID, start.Format(time.RFC3339))
	}
	return nil
}

func (a *app) queryError(ctx context.Context, jobID, stepID uint32) error {
	var (
		code uint32
		msg  string
	)
	if err := a.ckpt.QueryError(ctx, jobID, stepID, &code, &msg); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "error %d.%d: code=%d msg=%q\n", jobID, stepID, code, msg)
	return nil
}

// parseStep parses "JOB.STEP". A bare "JOB" means step 0.
func parseStep(s string) (uint32, uint32, error) {
	jobPart, stepPart, hasStep := strings.Cut(s, ".")
	jobID, err := strconv.ParseUint(jobPart, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid job id in %q", s)
	}
	if !hasStep {
		return uint32(jobID), 0, nil
	}
	stepID, err := strconv.ParseUint(stepPart, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid step id in %q", s)
	}
	return uint32(jobID), uint32(stepID), nil
}

// parseTime accepts unix seconds or RFC 3339. Empty means no time.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.New("begin time must be unix seconds or RFC 3339")
	}
	return t, nil
}
