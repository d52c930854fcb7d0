// Package authority is an in-memory checkpoint authority. It keeps per-step
// checkpoint state, answers checkpoint requests and aggregates completion
// reports. ckptd serves it and the end-to-end tests run against it.
//
// State is lost on restart.
package authority

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"checkpoint-rpc/checkpoint"
	"checkpoint-rpc/message"
	"checkpoint-rpc/server"
)

// Return codes the authority answers with.
const (
	CodeInvalidJobID     int32 = 2017
	CodeDisabled         int32 = 2031
	CodeInProgress       int32 = 2032
	CodeNoCheckpoint     int32 = 2033
	CodeInvalidOperation int32 = 2034
)

// StepKey identifies a job step.
type StepKey struct {
	JobID  uint32
	StepID uint32
}

// StepState is a snapshot of one step's checkpoint state.
type StepState struct {
	Disabled   bool
	InProgress bool
	Vacate     bool      // the running checkpoint terminates the step
	StartTime  time.Time // start of the current or last checkpoint
	Deadline   time.Time // zero when the checkpoint has no max wait
	Completed  bool      // at least one checkpoint reported completion
	Reports    int       // completion reports for the current or last checkpoint
	ErrorCode  uint32
	ErrorMsg   string
}

type Authority struct {
	mu         sync.Mutex
	steps      map[StepKey]*StepState
	autoCreate bool
	now        func() time.Time
	logger     *zap.Logger
}

type Option func(*Authority)

// WithAutoCreate makes unknown steps spring into existence on first use instead
// of being rejected with CodeInvalidJobID.
func WithAutoCreate(enabled bool) Option {
	return func(a *Authority) {
		a.autoCreate = enabled
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) {
		a.now = now
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Authority) {
		if l != nil {
			a.logger = l
		}
	}
}

func New(opts ...Option) *Authority {
	a := &Authority{
		steps:  make(map[StepKey]*StepState),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AddStep makes a job step known. Adding a known step is a no-op.
func (a *Authority) AddStep(jobID, stepID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := StepKey{jobID, stepID}
	if _, ok := a.steps[key]; !ok {
		a.steps[key] = &StepState{}
	}
}

// RemoveStep forgets a job step, as when it ends.
func (a *Authority) RemoveStep(jobID, stepID uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.steps, StepKey{jobID, stepID})
}

// Step returns a snapshot of a step's state.
func (a *Authority) Step(jobID, stepID uint32) (StepState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.steps[StepKey{jobID, stepID}]
	if !ok {
		return StepState{}, false
	}
	a.expire(StepKey{jobID, stepID}, s)
	return *s, true
}

// Register installs the authority's handlers on svr.
func (a *Authority) Register(svr *server.Server) {
	svr.Handle(message.RequestCheckpoint, a.HandleCheckpoint)
	svr.Handle(message.RequestCheckpointComp, a.HandleComplete)
}

// HandleCheckpoint answers a checkpoint operation request.
func (a *Authority) HandleCheckpoint(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
	m, ok := req.Data.(*message.CheckpointMsg)
	if !ok {
		return message.ReturnCode(CodeInvalidOperation), nil
	}
	key := StepKey{m.JobID, m.StepID}
	op := checkpoint.Operation(m.Op)

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(key)
	if !ok {
		return message.ReturnCode(CodeInvalidJobID), nil
	}
	a.expire(key, s)

	switch op {
	case checkpoint.QueryAble:
		if s.Disabled {
			return message.ReturnCode(CodeDisabled), nil
		}
		return queryResponse(s), nil

	case checkpoint.Disable:
		s.Disabled = true
		return message.ReturnCode(0), nil

	case checkpoint.Enable:
		s.Disabled = false
		return message.ReturnCode(0), nil

	case checkpoint.Create, checkpoint.Vacate:
		if s.Disabled {
			return message.ReturnCode(CodeDisabled), nil
		}
		if s.InProgress {
			return message.ReturnCode(CodeInProgress), nil
		}
		now := a.now()
		s.InProgress = true
		s.Vacate = op == checkpoint.Vacate
		s.StartTime = now
		s.Deadline = time.Time{}
		if m.Data > 0 {
			s.Deadline = now.Add(time.Duration(m.Data) * time.Second)
		}
		s.Reports = 0
		s.ErrorCode = 0
		s.ErrorMsg = ""
		a.logger.Info("checkpoint started",
			zap.Uint32("job", key.JobID),
			zap.Uint32("step", key.StepID),
			zap.Stringer("op", op),
			zap.Uint16("max_wait", m.Data),
		)
		return message.ReturnCode(0), nil

	case checkpoint.Restart:
		if s.Disabled {
			return message.ReturnCode(CodeDisabled), nil
		}
		if s.InProgress {
			return message.ReturnCode(CodeInProgress), nil
		}
		if !s.Completed {
			return message.ReturnCode(CodeNoCheckpoint), nil
		}
		a.logger.Info("step restarted", zap.Uint32("job", key.JobID), zap.Uint32("step", key.StepID))
		return message.ReturnCode(0), nil

	case checkpoint.QueryError:
		return queryResponse(s), nil
	}
	return message.ReturnCode(CodeInvalidOperation), nil
}

// HandleComplete records a completion report. Of all reports for one checkpoint
// the highest error code is kept together with its message; the first report is
// always recorded.
func (a *Authority) HandleComplete(ctx context.Context, req *message.Envelope) (*message.Envelope, error) {
	m, ok := req.Data.(*message.CheckpointCompMsg)
	if !ok {
		return message.ReturnCode(CodeInvalidOperation), nil
	}
	key := StepKey{m.JobID, m.StepID}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.lookup(key)
	if !ok {
		return message.ReturnCode(CodeInvalidJobID), nil
	}
	a.expire(key, s)
	if s.StartTime.IsZero() {
		return message.ReturnCode(CodeNoCheckpoint), nil
	}

	if s.Reports == 0 || m.ErrorCode > s.ErrorCode {
		s.ErrorCode = m.ErrorCode
		s.ErrorMsg = m.ErrorMsg
	}
	s.Reports++
	s.InProgress = false
	s.Completed = true
	a.logger.Info("checkpoint complete",
		zap.Uint32("job", key.JobID),
		zap.Uint32("step", key.StepID),
		zap.Int64("begin_time", m.BeginTime),
		zap.Uint32("error_code", m.ErrorCode),
		zap.String("error_msg", m.ErrorMsg),
	)
	return message.ReturnCode(0), nil
}

// lookup must be called with mu held.
func (a *Authority) lookup(key StepKey) (*StepState, bool) {
	s, ok := a.steps[key]
	if !ok && a.autoCreate {
		s = &StepState{}
		a.steps[key] = s
		ok = true
	}
	return s, ok
}

// expire abandons a checkpoint whose max wait elapsed without a completion
// report. It must be called with mu held.
func (a *Authority) expire(key StepKey, s *StepState) {
	if !s.InProgress || s.Deadline.IsZero() || a.now().Before(s.Deadline) {
		return
	}
	s.InProgress = false
	a.logger.Warn("checkpoint abandoned",
		zap.Uint32("job", key.JobID),
		zap.Uint32("step", key.StepID),
		zap.Time("deadline", s.Deadline),
	)
}

func queryResponse(s *StepState) *message.Envelope {
	var eventTime int64
	if !s.StartTime.IsZero() {
		eventTime = s.StartTime.Unix()
	}
	return &message.Envelope{
		Type: message.ResponseCheckpoint,
		Data: &message.CheckpointRespMsg{
			EventTime: eventTime,
			ErrorCode: s.ErrorCode,
			ErrorMsg:  s.ErrorMsg,
		},
	}
}
