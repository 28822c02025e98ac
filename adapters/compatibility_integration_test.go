package adapters_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-vaultrest/adapters/gocommand"
	"github.com/goliatone/go-vaultrest/adapters/gojob"
	"github.com/goliatone/go-vaultrest/adapters/gologger"
	vaultprom "github.com/goliatone/go-vaultrest/adapters/prometheus"
	vaultcommand "github.com/goliatone/go-vaultrest/command"
	"github.com/goliatone/go-vaultrest/core"
	"github.com/goliatone/go-vaultrest/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeVault struct {
	mu    sync.Mutex
	files map[string]string
}

func newFakeVault(t *testing.T) (*httptest.Server, *fakeVault) {
	t.Helper()
	vault := &fakeVault{files: map[string]string{"notes/existing.md": "# Existing\n"}}
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key_123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorCode":40101,"message":"Authorization required."}`))
			return
		}
		vault.mu.Lock()
		defer vault.mu.Unlock()

		if r.URL.Path == "/" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "OK", "authenticated": true})
			return
		}
		name := r.URL.Path[len("/vault/"):]
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			vault.files[name] = string(body)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			content, ok := vault.files[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errorCode":40400,"message":"File does not exist"}`))
				return
			}
			w.Header().Set("Content-Type", "text/markdown")
			_, _ = w.Write([]byte(content))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(server.Close)
	return server, vault
}

func newIntegrationRunner(t *testing.T, baseURL string, opts ...core.Option) *core.Runner {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Vault.BaseURL = baseURL
	cfg.Vault.APIKey = "key_123"
	cfg.Batch.ContinueOnFail = true

	opts = append([]core.Option{core.WithTransport(transport.NewRESTAdapter(nil))}, opts...)
	runner, err := core.NewRunner(cfg, opts...)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func TestRuntimeCompatibility_CommandDispatchAgainstVault(t *testing.T) {
	server, vault := newFakeVault(t)
	registry := prometheus.NewRegistry()
	recorder, err := vaultprom.NewRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	runner := newIntegrationRunner(t, server.URL, core.WithMetricsRecorder(recorder))

	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()
	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	subs, err := gocommand.RegisterDispatcherHandlers(adapter, runner)
	if err != nil {
		t.Fatalf("register runner handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}
	if _, ok := queueRegistry.Get(vaultcommand.TypeRunBatch); !ok {
		t.Fatalf("expected batch command to be mirrored into the queue registry")
	}

	status, err := gocommand.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if status.JSON.(map[string]any)["authenticated"] != true {
		t.Fatalf("unexpected status %#v", status.JSON)
	}

	result, err := gocommand.RunBatch(context.Background(), core.Batch{
		Resource:  core.ResourceVault,
		Operation: core.OperationReadFile,
		Items:     []core.Fields{{FilePath: "notes/existing.md"}, {FilePath: "notes/missing.md"}},
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(result.Records) != 2 || result.Failed != 1 {
		t.Fatalf("expected one success and one failure, got %#v", result)
	}
	if result.Records[0].JSON.(map[string]any)["content"] != "# Existing\n" {
		t.Fatalf("unexpected read record %#v", result.Records[0].JSON)
	}
	if !result.Records[1].Failed() {
		t.Fatalf("expected missing file record to fail")
	}

	if _, err := gocommand.DispatchOne(context.Background(), core.Key(core.ResourceVault, core.OperationCreateFile), core.Fields{
		FilePath: "notes/new.md",
		Content:  "# New\n",
	}); err != nil {
		t.Fatalf("dispatch create: %v", err)
	}
	vault.mu.Lock()
	created := vault.files["notes/new.md"]
	vault.mu.Unlock()
	if created != "# New\n" {
		t.Fatalf("expected created note, got %q", created)
	}

	dispatches, err := testutil.GatherAndCount(registry, "vaultrest_dispatch_total")
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if dispatches < 3 {
		t.Fatalf("expected dispatch series for status, read and create outcomes, got %d", dispatches)
	}
}

func TestRuntimeCompatibility_QueuedBatchThroughWorker(t *testing.T) {
	server, vault := newFakeVault(t)
	runner := newIntegrationRunner(t, server.URL)

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}
	_, _, jobProvider, jobLogger := gologger.ResolveForJob("vaultrest", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	queued := &memoryQueue{}
	if err := gojob.NewEnqueuerAdapter(queued).EnqueueBatch(context.Background(), core.Batch{
		Resource:  core.ResourceVault,
		Operation: core.OperationCreateFile,
		Items:     []core.Fields{{FilePath: "inbox/one.md", Content: "one"}, {FilePath: "inbox/two.md", Content: "two"}},
	}, "idem-queue"); err != nil {
		t.Fatalf("enqueue batch: %v", err)
	}

	policy := gojob.DefaultRetryPolicy()
	delivery, err := gojob.NewDequeuerAdapter(queued, policy).Dequeue(context.Background())
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	worker := gojob.NewBatchWorker(runner, policy, gojob.WithWorkerLogger(gologger.WorkerLogger(provider, nil)))
	result, err := worker.Process(context.Background(), delivery, 1)
	if err != nil {
		t.Fatalf("process queued batch: %v", err)
	}
	if len(result.Records) != 2 || result.Failed != 0 {
		t.Fatalf("unexpected worker result %#v", result)
	}
	if !queued.acked {
		t.Fatalf("expected delivery to be acked")
	}
	if logger.infoCount() == 0 {
		t.Fatalf("expected worker to log through the bridged provider")
	}
	vault.mu.Lock()
	defer vault.mu.Unlock()
	if vault.files["inbox/one.md"] != "one" || vault.files["inbox/two.md"] != "two" {
		t.Fatalf("expected both queued notes to be written, got %#v", vault.files)
	}
}

type memoryQueue struct {
	msg    *job.ExecutionMessage
	acked  bool
	nacked bool
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	q.msg = msg
	return nil
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	return q, nil
}

func (q *memoryQueue) Message() *job.ExecutionMessage { return q.msg }

func (q *memoryQueue) Ack(context.Context) error {
	q.acked = true
	return nil
}

func (q *memoryQueue) Nack(context.Context, queue.NackOptions) error {
	q.nacked = true
	return nil
}

type compatProvider struct {
	logger *compatLogger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct {
	mu    sync.Mutex
	infos int
}

func (l *compatLogger) Trace(string, ...any) {}
func (l *compatLogger) Debug(string, ...any) {}
func (l *compatLogger) Warn(string, ...any)  {}
func (l *compatLogger) Error(string, ...any) {}
func (l *compatLogger) Fatal(string, ...any) {}

func (l *compatLogger) Info(string, ...any) {
	l.mu.Lock()
	l.infos++
	l.mu.Unlock()
}

func (l *compatLogger) WithContext(context.Context) glog.Logger { return l }

func (l *compatLogger) infoCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.infos
}
