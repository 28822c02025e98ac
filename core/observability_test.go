package core

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func TestRunnerObservability_BatchMetricsAndLogs(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	transport := &recordingTransport{respond: failSecondItem}
	runner := newTestRunner(t, transport,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	batch := threeCreates()
	batch.ContinueOnFail = boolPtr(true)
	if _, err := runner.Run(context.Background(), batch); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := countCounters(metrics.counters, MetricDispatchTotal, "success"); got != 2 {
		t.Fatalf("expected 2 successful dispatch counters, got %d", got)
	}
	if got := countCounters(metrics.counters, MetricDispatchTotal, "failure"); got != 1 {
		t.Fatalf("expected 1 failed dispatch counter, got %d", got)
	}
	if got := countCounters(metrics.counters, MetricBatchTotal, "partial"); got != 1 {
		t.Fatalf("expected partial batch counter, got %d", got)
	}
	if len(metrics.histograms) != 3 {
		t.Fatalf("expected one duration histogram per item, got %d", len(metrics.histograms))
	}

	logs := logger.snapshot()
	var failed *capturedLog
	for i := range logs {
		if logs[i].level == "error" && logs[i].msg == "dispatch failed" {
			failed = &logs[i]
		}
	}
	if failed == nil {
		t.Fatalf("expected dispatch failed log")
	}
	if failed.fields["item_index"] != 1 || failed.fields["error"] != "boom" {
		t.Fatalf("unexpected failure log fields %#v", failed.fields)
	}
	if failed.fields["method"] != "PUT" || failed.fields["path"] != "/vault/b.md" {
		t.Fatalf("expected request shape in log fields, got %#v", failed.fields)
	}
	if !hasLog(logs, "info", "batch completed") {
		t.Fatalf("expected batch completed log")
	}
}

func TestRunnerObservability_AbortLogged(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	runner := newTestRunner(t, &recordingTransport{respond: failSecondItem},
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	if _, err := runner.Run(context.Background(), threeCreates()); err == nil {
		t.Fatalf("expected abort")
	}
	if got := countCounters(metrics.counters, MetricBatchTotal, "aborted"); got != 1 {
		t.Fatalf("expected aborted batch counter, got %d", got)
	}
	if !hasLog(logger.snapshot(), "error", "batch aborted") {
		t.Fatalf("expected batch aborted log")
	}
}

func TestRunnerObservability_NeverLogsAPIKey(t *testing.T) {
	logger := newCaptureLogger()
	transport := &recordingTransport{
		respond: func(int, TransportRequest) (TransportResponse, error) {
			return TransportResponse{}, stderrors.New("authorization rejected")
		},
	}
	runner := newTestRunner(t, transport,
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	)

	batch := threeCreates()
	batch.ContinueOnFail = boolPtr(true)
	if _, err := runner.Run(context.Background(), batch); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, entry := range logger.snapshot() {
		for key, value := range entry.fields {
			if strings.Contains(fmt.Sprint(value), "key_123") {
				t.Fatalf("api key leaked through log field %q", key)
			}
		}
	}
}

func countCounters(counters []capturedCounter, name string, status string) int {
	count := 0
	for _, counter := range counters {
		if counter.name == name && counter.tags["status"] == status {
			count++
		}
	}
	return count
}

func hasLog(logs []capturedLog, level string, msg string) bool {
	for _, entry := range logs {
		if entry.level == level && entry.msg == msg {
			return true
		}
	}
	return false
}
