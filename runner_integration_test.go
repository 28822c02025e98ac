package vaultrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vaultrest/core"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newRecordingVault(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key_123" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errorCode":40101,"message":"Authorization required."}`))
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.EscapedPath(), body: string(body)})
		mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/vault/":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"files": []string{"a.md", "notes/"}})
		case r.URL.Path == "/vault/missing.md":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errorCode":40400,"message":"File does not exist"}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(server.Close)
	return server, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func newTestRunner(t *testing.T, baseURL string, apiKey string) *Runner {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Vault.BaseURL = baseURL
	cfg.Vault.APIKey = apiKey
	runner, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

func TestNewRunner_DefaultTransportReachesSelfSignedVault(t *testing.T) {
	server, requests := newRecordingVault(t)
	runner := newTestRunner(t, server.URL, "key_123")

	listed, err := runner.Run(context.Background(), Batch{
		Resource:  core.ResourceVault,
		Operation: core.OperationListFiles,
		Items:     []Fields{{}},
	})
	if err != nil {
		t.Fatalf("list files: %v", err)
	}
	files, ok := listed.Records[0].JSON.(map[string]any)["files"].([]any)
	if !ok || len(files) != 2 {
		t.Fatalf("unexpected listing %#v", listed.Records[0].JSON)
	}

	appended, err := runner.Run(context.Background(), Batch{
		Resource:  core.ResourceVault,
		Operation: core.OperationAppendFile,
		Items: []Fields{
			{FilePath: "daily/2026 10 15.md", Content: "- one\n"},
			{FilePath: "daily/other.md", Content: "- two\n"},
		},
	})
	if err != nil {
		t.Fatalf("append files: %v", err)
	}
	if len(appended.Records) != 2 || appended.Records[1].ItemIndex != 1 {
		t.Fatalf("expected one record per item, got %#v", appended.Records)
	}
	ack := appended.Records[0].JSON.(map[string]any)
	if ack["success"] != true || ack["path"] != "daily/2026 10 15.md" {
		t.Fatalf("unexpected append ack %#v", ack)
	}

	seen := requests()
	if len(seen) != 3 {
		t.Fatalf("expected three upstream requests, got %d", len(seen))
	}
	if seen[1].method != http.MethodPost || seen[1].path != "/vault/daily/2026%2010%2015.md" || seen[1].body != "- one\n" {
		t.Fatalf("unexpected append request %#v", seen[1])
	}
}

func TestNewRunner_StopsAtFirstFailureByDefault(t *testing.T) {
	server, requests := newRecordingVault(t)
	runner := newTestRunner(t, server.URL, "key_123")

	result, err := runner.Run(context.Background(), Batch{
		Resource:  core.ResourceVault,
		Operation: core.OperationDeleteFile,
		Items: []Fields{
			{FilePath: "a.md"},
			{FilePath: "missing.md"},
			{FilePath: "never.md"},
		},
	})
	var itemErr *core.ItemError
	if !errors.As(err, &itemErr) {
		t.Fatalf("expected item error, got %v", err)
	}
	if itemErr.ItemIndex != 1 {
		t.Fatalf("expected failure at item 1, got %d", itemErr.ItemIndex)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryNotFound {
		t.Fatalf("expected not found envelope, got %v", err)
	}
	if len(result.Records) != 0 {
		t.Fatalf("expected no records on abort, got %d", len(result.Records))
	}
	if got := len(requests()); got != 2 {
		t.Fatalf("expected third item to never reach the vault, got %d requests", got)
	}
}

func TestNewRunner_ContinueOnFailRecordsErrors(t *testing.T) {
	server, _ := newRecordingVault(t)
	runner := newTestRunner(t, server.URL, "wrong")

	continueOnFail := true
	result, err := runner.Run(context.Background(), Batch{
		Resource:       core.ResourceVault,
		Operation:      core.OperationReadFile,
		Items:          []Fields{{FilePath: "a.md"}, {FilePath: "b.md"}},
		ContinueOnFail: &continueOnFail,
	})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if result.Failed != 2 {
		t.Fatalf("expected both items to fail, got %d", result.Failed)
	}
	if !strings.Contains(result.Records[0].Error, "Authorization required.") {
		t.Fatalf("expected upstream message in record, got %q", result.Records[0].Error)
	}
	payload, err := json.Marshal(result.Records[0].JSON)
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if strings.Contains(string(payload), "wrong") {
		t.Fatalf("api key leaked into record %s", payload)
	}
}
