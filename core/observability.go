package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func (r *Runner) observeDispatch(
	ctx context.Context,
	startedAt time.Time,
	key OperationKey,
	err error,
	fields map[string]any,
) {
	if r == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}

	contextFields := cloneFields(fields)
	contextFields["resource"] = string(key.Resource)
	contextFields["operation"] = string(key.Operation)
	contextFields["status"] = status
	contextFields["duration_ms"] = time.Since(startedAt).Milliseconds()
	if err != nil {
		contextFields["error"] = ErrorMessage(err)
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			if rich.TextCode != "" {
				contextFields["error_code"] = rich.TextCode
			}
			contextFields["error_category"] = fmt.Sprint(rich.Category)
		}
	}

	tags := map[string]string{
		"resource":  string(key.Resource),
		"operation": string(key.Operation),
		"status":    status,
	}
	r.recordCounter(ctx, MetricDispatchTotal, 1, tags)
	r.recordHistogram(ctx, MetricDispatchDurationMS, float64(time.Since(startedAt).Milliseconds()), tags)

	if err != nil {
		r.logError(ctx, "dispatch failed", contextFields)
		return
	}
	r.logDebug(ctx, "dispatch succeeded", contextFields)
}

func (r *Runner) observeBatch(ctx context.Context, startedAt time.Time, result BatchResult, err error) {
	if r == nil {
		return
	}
	status := "success"
	switch {
	case err != nil:
		status = "aborted"
	case result.Failed > 0:
		status = "partial"
	}
	fields := map[string]any{
		"batch_id":    result.BatchID,
		"resource":    string(result.Key.Resource),
		"operation":   string(result.Key.Operation),
		"status":      status,
		"records":     len(result.Records),
		"failed":      result.Failed,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}
	r.recordCounter(ctx, MetricBatchTotal, 1, map[string]string{
		"resource":  string(result.Key.Resource),
		"operation": string(result.Key.Operation),
		"status":    status,
	})
	if err != nil {
		fields["error"] = ErrorMessage(err)
		r.logError(ctx, "batch aborted", fields)
		return
	}
	r.logInfo(ctx, "batch completed", fields)
}

func (r *Runner) logDebug(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "debug", message, fields)
}

func (r *Runner) logInfo(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "info", message, fields)
}

func (r *Runner) logError(ctx context.Context, message string, fields map[string]any) {
	r.logWithLevel(ctx, "error", message, fields)
}

func (r *Runner) logWithLevel(ctx context.Context, level string, message string, fields map[string]any) {
	if r == nil || r.logger == nil {
		return
	}
	fields = RedactSensitiveMap(fields)
	logger := r.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func (r *Runner) recordCounter(ctx context.Context, name string, value int64, tags map[string]string) {
	if r == nil || r.metricsRecorder == nil {
		return
	}
	r.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (r *Runner) recordHistogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if r == nil || r.metricsRecorder == nil {
		return
	}
	r.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}
