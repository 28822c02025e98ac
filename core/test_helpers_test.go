package core

import (
	"context"
	"sync"
)

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// recordingTransport records each request and answers through respond.
type recordingTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	respond  func(index int, req TransportRequest) (TransportResponse, error)
}

func (t *recordingTransport) Kind() string { return "recording" }

func (t *recordingTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	t.mu.Lock()
	index := len(t.requests)
	t.requests = append(t.requests, req)
	t.mu.Unlock()
	if t.respond == nil {
		return TransportResponse{StatusCode: 200, Body: []byte(`{}`)}, nil
	}
	return t.respond(index, req)
}

func (t *recordingTransport) snapshot() []TransportRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TransportRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

type countingResolver struct {
	mu    sync.Mutex
	calls int
	creds Credentials
	err   error
}

func (r *countingResolver) Resolve(context.Context) (Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.creds, r.err
}

func testCredentials() Credentials {
	return Credentials{
		BaseURL:         "https://127.0.0.1:27124/",
		APIKey:          "key_123",
		IgnoreTLSErrors: true,
	}
}

func boolPtr(v bool) *bool {
	return &v
}
