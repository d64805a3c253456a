package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-idp-services/core"
	"github.com/goliatone/go-idp-services/stat"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	ParamNodeID  = "node_id"
	ParamAttempt = "attempt"

	defaultFlushRetryDelay = 5 * time.Second
)

// ScheduleStatFlush enqueues a flush job for nodeID.
func ScheduleStatFlush(ctx context.Context, enqueuer core.JobEnqueuer, nodeID string, at time.Time) error {
	if enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is required")
	}
	if strings.TrimSpace(nodeID) == "" {
		return fmt.Errorf("gojob: node id is required")
	}
	return enqueuer.Enqueue(ctx, NewStatFlushMessage(nodeID, at))
}

// NewStatFlushMessage builds the job message asking a node to flush its
// statistics. Messages for the same node and minute share an idempotency key
// so duplicate schedules collapse in queues that honour it.
func NewStatFlushMessage(nodeID string, at time.Time) *core.JobExecutionMessage {
	nodeID = strings.TrimSpace(nodeID)
	return &core.JobExecutionMessage{
		JobID:          JobIDStatFlush,
		ScriptPath:     JobIDStatFlush,
		Parameters:     map[string]any{ParamNodeID: nodeID, ParamAttempt: 1},
		IdempotencyKey: fmt.Sprintf("%s:%s:%s", JobIDStatFlush, nodeID, at.UTC().Format("200601021504")),
		DedupPolicy:    "drop",
	}
}

type nodeIdentity interface {
	NodeID() string
}

type attemptNacker interface {
	NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
}

// StatFlushWorker drains flush jobs from a queue and runs them against the
// local stat aggregator.
type StatFlushWorker struct {
	dequeuer   core.JobDequeuer
	target     stat.FlushTarget
	hook       core.JobWorkerHook
	logger     glog.Logger
	retryDelay time.Duration
	backoff    RetryPolicy
	nodeID     func() string
	now        func() time.Time
}

type StatFlushWorkerOption func(*StatFlushWorker)

func WithWorkerHook(hook core.JobWorkerHook) StatFlushWorkerOption {
	return func(w *StatFlushWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger glog.Logger) StatFlushWorkerOption {
	return func(w *StatFlushWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithNodeID sets how the worker learns the local node id. By default it is
// read from the flush target when the target exposes NodeID.
func WithNodeID(nodeID func() string) StatFlushWorkerOption {
	return func(w *StatFlushWorker) {
		if nodeID != nil {
			w.nodeID = nodeID
		}
	}
}

// WithBackoff sets the policy used to grow the retry delay per attempt.
func WithBackoff(policy RetryPolicy) StatFlushWorkerOption {
	return func(w *StatFlushWorker) {
		w.backoff = policy
	}
}

func WithRetryDelay(delay time.Duration) StatFlushWorkerOption {
	return func(w *StatFlushWorker) {
		if delay > 0 {
			w.retryDelay = delay
		}
	}
}

func NewStatFlushWorker(
	dequeuer core.JobDequeuer,
	target stat.FlushTarget,
	opts ...StatFlushWorkerOption,
) (*StatFlushWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if target == nil {
		return nil, fmt.Errorf("gojob: flush target is required")
	}
	w := &StatFlushWorker{
		dequeuer:   dequeuer,
		target:     target,
		logger:     glog.Nop(),
		retryDelay: defaultFlushRetryDelay,
		backoff:    DefaultFlushRetryPolicy(),
		now:        time.Now,
	}
	if identity, ok := target.(nodeIdentity); ok {
		w.nodeID = identity.NodeID
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// ProcessNext handles one delivery. Jobs with another job id, or addressed
// to another node, are requeued untouched.
func (w *StatFlushWorker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	if msg == nil || msg.JobID != JobIDStatFlush {
		return delivery.Nack(ctx, core.JobNackOptions{Requeue: true, Reason: "unhandled job"})
	}
	if target := targetNode(msg); target != "" && target != w.localNode() {
		return delivery.Nack(ctx, core.JobNackOptions{Requeue: true, Reason: "flush addressed to node " + target})
	}

	attempt := attemptOf(msg)
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: w.now().UTC()}
	w.onStart(ctx, event)

	flushErr := w.target.Flush(ctx)
	event.Duration = w.now().Sub(event.StartedAt)
	if flushErr == nil {
		w.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = flushErr
	event.Delay = w.backoff.Backoff(w.retryDelay, attempt)
	w.logger.Warn("stat flush job failed",
		"node_id", msg.Parameters[ParamNodeID],
		"attempt", attempt,
		"error", flushErr,
	)
	w.onFailure(ctx, event)

	opts := core.JobNackOptions{Delay: event.Delay, Requeue: true, Reason: flushErr.Error()}
	if nacker, ok := delivery.(attemptNacker); ok {
		err = nacker.NackForAttempt(ctx, opts, attempt)
	} else {
		err = delivery.Nack(ctx, opts)
	}
	if err != nil {
		return errors.Join(flushErr, err)
	}
	w.onRetry(ctx, event)
	return flushErr
}

// Run processes deliveries until ctx is cancelled. Job failures are logged
// and do not stop the loop.
func (w *StatFlushWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Debug("stat flush worker iteration failed", "error", err)
		}
	}
}

func (w *StatFlushWorker) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *StatFlushWorker) onSuccess(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *StatFlushWorker) onFailure(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *StatFlushWorker) onRetry(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

func (w *StatFlushWorker) localNode() string {
	if w.nodeID == nil {
		return ""
	}
	return strings.TrimSpace(w.nodeID())
}

func targetNode(msg *core.JobExecutionMessage) string {
	value, _ := msg.Parameters[ParamNodeID].(string)
	return strings.TrimSpace(value)
}

func attemptOf(msg *core.JobExecutionMessage) int {
	switch value := msg.Parameters[ParamAttempt].(type) {
	case int:
		if value > 0 {
			return value
		}
	case int64:
		if value > 0 {
			return int(value)
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	}
	return 1
}
