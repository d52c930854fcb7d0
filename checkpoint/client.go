// Package checkpoint is the client side of the checkpoint control protocol: it
// asks the scheduling authority to query, disable, enable, create, vacate and
// restart checkpoints of job steps, reports checkpoint completion, and fetches
// the error recorded for a step's last checkpoint.
//
// Every operation is exactly one round trip through a Transport. Nothing is
// retried, cached or timed out here; the context is handed to the transport.
//
//	operation → Request.Envelope → Transport → Demux → error / result
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"checkpoint-rpc/message"
)

// Transport delivers one request to the authority and returns its one reply.
// An error means no reply arrived; an authority rejection is a reply.
type Transport interface {
	SendAndReceive(ctx context.Context, req *message.Envelope) (*message.Envelope, error)

	// SendAndReceiveStatus expects a return-code reply and returns an error
	// wrapping message.ErrUnexpectedMessage for anything else.
	SendAndReceiveStatus(ctx context.Context, req *message.Envelope) (int32, error)
}

// ErrorReport is the error recorded for a step's last checkpoint.
type ErrorReport struct {
	Code uint32
	Msg  string
}

// Client issues checkpoint operations. It is safe for concurrent use when its
// Transport is.
type Client struct {
	transport Transport
	state     *ErrorState
	logger    *zap.Logger
}

type Option func(*Client)

// WithErrorState makes the client record authority return codes in s. Pass
// ProcessErrorState() to share the process-wide slot.
func WithErrorState(s *ErrorState) Option {
	return func(c *Client) {
		if s != nil {
			c.state = s
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(t Transport, opts ...Option) *Client {
	c := &Client{
		transport: t,
		state:     &ErrorState{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrorState returns the slot this client records return codes in.
func (c *Client) ErrorState() *ErrorState {
	return c.state
}

// Able asks whether a checkpoint of the step may be initiated now. On success it
// returns the event time the authority reports, which is zero when the authority
// answers with a bare success code. On failure the time is always zero.
func (c *Client) Able(ctx context.Context, jobID, stepID uint32) (time.Time, error) {
	req := Request{Op: QueryAble, JobID: jobID, StepID: stepID}
	resp, err := c.exchange(ctx, req.Op.String(), req.Envelope())
	if err != nil {
		return time.Time{}, err
	}
	switch r := resp.(type) {
	case QueryResponse:
		return r.EventTime, nil
	case StatusResponse:
		return time.Time{}, c.handleReturnCode(req.Op.String(), r.ReturnCode)
	}
	return time.Time{}, c.mismatch(req.Op.String(), resp)
}

// Disable stops the authority from accepting checkpoint requests for the step.
func (c *Client) Disable(ctx context.Context, jobID, stepID uint32) error {
	return c.op(ctx, Request{Op: Disable, JobID: jobID, StepID: stepID})
}

// Enable lets the authority accept checkpoint requests for the step again.
func (c *Client) Enable(ctx context.Context, jobID, stepID uint32) error {
	return c.op(ctx, Request{Op: Enable, JobID: jobID, StepID: stepID})
}

// Create starts a checkpoint; the step keeps running afterwards. maxWait bounds
// how long the authority waits for completion and travels as whole seconds, at
// most 65535.
func (c *Client) Create(ctx context.Context, jobID, stepID uint32, maxWait time.Duration) error {
	return c.op(ctx, Request{Op: Create, JobID: jobID, StepID: stepID, Data: waitSeconds(maxWait)})
}

// Vacate starts a checkpoint after which the step terminates.
func (c *Client) Vacate(ctx context.Context, jobID, stepID uint32, maxWait time.Duration) error {
	return c.op(ctx, Request{Op: Vacate, JobID: jobID, StepID: stepID, Data: waitSeconds(maxWait)})
}

// Restart resumes a checkpointed step.
func (c *Client) Restart(ctx context.Context, jobID, stepID uint32) error {
	return c.op(ctx, Request{Op: Restart, JobID: jobID, StepID: stepID})
}

// Complete reports the end of a checkpoint.
func (c *Client) Complete(ctx context.Context, report CompletionReport) error {
	return c.status(ctx, "complete", report.Envelope())
}

// QueryError fetches the error recorded for the step's last checkpoint into code
// and msg. Both must be non-nil; otherwise nothing is sent. Unless the authority
// answers with a query reply, code is left at 0 and msg at "".
func (c *Client) QueryError(ctx context.Context, jobID, stepID uint32, code *uint32, msg *string) error {
	req := Request{Op: QueryError, JobID: jobID, StepID: stepID}
	op := req.Op.String()
	if code == nil || msg == nil {
		return invalidArgument(op, "code and msg outputs are required")
	}
	*code, *msg = 0, ""

	resp, err := c.exchange(ctx, op, req.Envelope())
	if err != nil {
		return err
	}
	switch r := resp.(type) {
	case QueryResponse:
		*code = r.ErrorCode
		*msg = r.ErrorMsg
		return nil
	case StatusResponse:
		return c.handleReturnCode(op, r.ReturnCode)
	}
	return c.mismatch(op, resp)
}

// FetchError is QueryError returning the report as a value.
func (c *Client) FetchError(ctx context.Context, jobID, stepID uint32) (ErrorReport, error) {
	var report ErrorReport
	err := c.QueryError(ctx, jobID, stepID, &report.Code, &report.Msg)
	return report, err
}

func (c *Client) op(ctx context.Context, req Request) error {
	return c.status(ctx, req.Op.String(), req.Envelope())
}

// status performs a round trip whose only valid reply is a return code.
func (c *Client) status(ctx context.Context, op string, env *message.Envelope) error {
	rc, err := c.transport.SendAndReceiveStatus(ctx, env)
	if err != nil {
		if errors.Is(err, message.ErrUnexpectedMessage) {
			c.logger.Warn("unexpected reply", zap.String("op", op), zap.Error(err))
			return protocolMismatch(op, err)
		}
		c.logger.Debug("round trip failed", zap.String("op", op), zap.Error(err))
		return transportFailure(op, err)
	}
	return c.handleReturnCode(op, rc)
}

// exchange performs a round trip that may be answered with any reply.
func (c *Client) exchange(ctx context.Context, op string, env *message.Envelope) (Response, error) {
	reply, err := c.transport.SendAndReceive(ctx, env)
	if err != nil {
		c.logger.Debug("round trip failed", zap.String("op", op), zap.Error(err))
		return nil, transportFailure(op, err)
	}
	return Demux(reply), nil
}

// handleReturnCode records rc and turns a non-zero code into an authority error.
func (c *Client) handleReturnCode(op string, rc int32) error {
	c.state.record(rc)
	c.logger.Debug("authority replied", zap.String("op", op), zap.Int32("rc", rc))
	if rc != 0 {
		return authorityError(op, rc)
	}
	return nil
}

func (c *Client) mismatch(op string, resp Response) error {
	u, _ := resp.(Unrecognized)
	err := fmt.Errorf("%w: %s", message.ErrUnexpectedMessage, u.Type)
	c.logger.Warn("unexpected reply", zap.String("op", op), zap.Stringer("type", u.Type))
	return protocolMismatch(op, err)
}
