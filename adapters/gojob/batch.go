package gojob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-vaultrest/core"
)

const JobIDRunBatch = "vaultrest.batch.run"

const (
	paramResource       = "resource"
	paramOperation      = "operation"
	paramItems          = "items"
	paramContinueOnFail = "continue_on_fail"
)

// BatchToExecutionMessage encodes batch into JSON-safe parameters so the
// message survives any queue storage backend.
func BatchToExecutionMessage(batch core.Batch, idempotencyKey string) (*core.JobExecutionMessage, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	items, err := toJSONValue(batch.Items)
	if err != nil {
		return nil, fmt.Errorf("gojob: encode batch items: %w", err)
	}
	params := map[string]any{
		paramResource:  string(batch.Resource),
		paramOperation: string(batch.Operation),
		paramItems:     items,
	}
	if batch.ContinueOnFail != nil {
		params[paramContinueOnFail] = *batch.ContinueOnFail
	}
	return &core.JobExecutionMessage{
		JobID:          JobIDRunBatch,
		ScriptPath:     JobIDRunBatch,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

func BatchFromExecutionMessage(msg *core.JobExecutionMessage) (core.Batch, error) {
	if msg == nil {
		return core.Batch{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDRunBatch {
		return core.Batch{}, fmt.Errorf("gojob: unexpected job id %q", msg.JobID)
	}
	resource, _ := msg.Parameters[paramResource].(string)
	operation, _ := msg.Parameters[paramOperation].(string)
	batch := core.Batch{
		Resource:  core.Resource(strings.TrimSpace(resource)),
		Operation: core.Operation(strings.TrimSpace(operation)),
	}
	if raw, ok := msg.Parameters[paramItems]; ok && raw != nil {
		encoded, err := json.Marshal(raw)
		if err != nil {
			return core.Batch{}, fmt.Errorf("gojob: encode batch items: %w", err)
		}
		if err := json.Unmarshal(encoded, &batch.Items); err != nil {
			return core.Batch{}, fmt.Errorf("gojob: decode batch items: %w", err)
		}
	}
	if raw, ok := msg.Parameters[paramContinueOnFail]; ok {
		flag, isBool := raw.(bool)
		if !isBool {
			return core.Batch{}, fmt.Errorf("gojob: %s must be a boolean", paramContinueOnFail)
		}
		batch.ContinueOnFail = &flag
	}
	if err := batch.Validate(); err != nil {
		return core.Batch{}, err
	}
	return batch, nil
}

func toJSONValue(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchWorker executes queued batches and settles each delivery. Malformed
// messages and input errors are dead-lettered, everything else is requeued
// with backoff until the retry policy gives up.
type BatchWorker struct {
	executor core.BatchExecutor
	policy   RetryPolicy
	hook     core.JobWorkerHook
	logger   core.Logger
}

type BatchWorkerOption func(*BatchWorker)

func WithWorkerHook(hook core.JobWorkerHook) BatchWorkerOption {
	return func(w *BatchWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger core.Logger) BatchWorkerOption {
	return func(w *BatchWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewBatchWorker(executor core.BatchExecutor, policy RetryPolicy, opts ...BatchWorkerOption) *BatchWorker {
	w := &BatchWorker{
		executor: executor,
		policy:   policy,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Process runs the batch carried by delivery. attempt is one-based.
func (w *BatchWorker) Process(ctx context.Context, delivery core.JobDelivery, attempt int) (core.BatchResult, error) {
	if w == nil || w.executor == nil {
		return core.BatchResult{}, fmt.Errorf("gojob: batch executor is not configured")
	}
	if delivery == nil {
		return core.BatchResult{}, fmt.Errorf("gojob: delivery is required")
	}
	if attempt < 1 {
		attempt = 1
	}

	msg := delivery.Message()
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: time.Now().UTC()}
	w.emit(ctx, w.hookStart, event)

	batch, err := BatchFromExecutionMessage(msg)
	if err != nil {
		w.logger.Error("batch message rejected", "attempt", attempt, "error", err)
		return core.BatchResult{}, w.fail(ctx, delivery, event, err, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		})
	}

	result, err := w.executor.Run(ctx, batch)
	event.Duration = time.Since(event.StartedAt)
	if err != nil {
		if dispatched(err) || isPermanent(err) {
			return core.BatchResult{}, w.fail(ctx, delivery, event, err, core.JobNackOptions{
				DeadLetter: true,
				Reason:     core.ErrorMessage(err),
			})
		}
		opts := w.policy.NormalizeAttempt(core.JobNackOptions{
			Requeue: true,
			Delay:   w.policy.Backoff(attempt),
			Reason:  core.ErrorMessage(err),
		}, attempt)
		event.Delay = opts.Delay
		event.Err = err
		if opts.Requeue {
			w.emit(ctx, w.hookRetry, event)
			w.logger.Warn("batch requeued", "attempt", attempt, "delay_ms", opts.Delay.Milliseconds(), "error", err)
			if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
				return core.BatchResult{}, nackErr
			}
			return core.BatchResult{}, err
		}
		return core.BatchResult{}, w.fail(ctx, delivery, event, err, opts)
	}

	if err := delivery.Ack(ctx); err != nil {
		return result, err
	}
	w.emit(ctx, w.hookSuccess, event)
	w.logger.Info("batch processed",
		"batch_id", result.BatchID,
		"resource", string(result.Key.Resource),
		"operation", string(result.Key.Operation),
		"items", len(result.Records),
		"failed", result.Failed,
	)
	return result, nil
}

func (w *BatchWorker) fail(
	ctx context.Context,
	delivery core.JobDelivery,
	event core.JobWorkerEvent,
	cause error,
	opts core.JobNackOptions,
) error {
	event.Err = cause
	w.emit(ctx, w.hookFailure, event)
	if err := delivery.Nack(ctx, opts); err != nil {
		return err
	}
	return cause
}

func (w *BatchWorker) emit(ctx context.Context, fn func(context.Context, core.JobWorkerEvent), event core.JobWorkerEvent) {
	if w.hook == nil {
		return
	}
	fn(ctx, event)
}

func (w *BatchWorker) hookStart(ctx context.Context, e core.JobWorkerEvent)   { w.hook.OnStart(ctx, e) }
func (w *BatchWorker) hookSuccess(ctx context.Context, e core.JobWorkerEvent) { w.hook.OnSuccess(ctx, e) }
func (w *BatchWorker) hookFailure(ctx context.Context, e core.JobWorkerEvent) { w.hook.OnFailure(ctx, e) }
func (w *BatchWorker) hookRetry(ctx context.Context, e core.JobWorkerEvent)   { w.hook.OnRetry(ctx, e) }

// dispatched reports an abort after items reached the vault. Redelivering
// would send those items a second time, so the batch is terminal.
func dispatched(err error) bool {
	var itemErr *core.ItemError
	return errors.As(err, &itemErr)
}

// isPermanent reports errors a redelivery cannot fix.
func isPermanent(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.Category {
	case goerrors.CategoryValidation,
		goerrors.CategoryBadInput,
		goerrors.CategoryAuth,
		goerrors.CategoryAuthz,
		goerrors.CategoryNotFound,
		goerrors.CategoryOperation:
		return true
	default:
		return false
	}
}
