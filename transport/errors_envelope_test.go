package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-vaultrest/core"
)

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorExternalFailure {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorExternalFailure, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_NonSuccessStatusMapsToEnvelope(t *testing.T) {
	cases := []struct {
		status   int
		body     string
		category goerrors.Category
		textCode string
		message  string
	}{
		{http.StatusBadRequest, `{"errorCode":40010,"message":"Invalid period"}`, goerrors.CategoryBadInput, core.ServiceErrorBadInput, "Invalid period"},
		{http.StatusUnauthorized, `{"errorCode":40101,"message":"Authorization required."}`, goerrors.CategoryAuth, core.ServiceErrorUnauthorized, "Authorization required."},
		{http.StatusForbidden, "", goerrors.CategoryAuthz, core.ServiceErrorForbidden, "vault returned 403 Forbidden"},
		{http.StatusNotFound, `{"errorCode":40400,"message":"File does not exist"}`, goerrors.CategoryNotFound, core.ServiceErrorNotFound, "File does not exist"},
		{http.StatusTooManyRequests, "slow down", goerrors.CategoryRateLimit, core.ServiceErrorRateLimited, "slow down"},
		{http.StatusInternalServerError, "boom", goerrors.CategoryExternal, core.ServiceErrorExternalFailure, "boom"},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			_, err := NewRESTAdapter(server.Client()).Do(context.Background(), core.TransportRequest{
				Method: http.MethodGet,
				URL:    server.URL + "/vault/missing.md",
			})
			if err == nil {
				t.Fatalf("expected status error")
			}
			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("expected go-errors envelope, got %T", err)
			}
			if rich.Category != tc.category {
				t.Fatalf("expected %q category, got %q", tc.category, rich.Category)
			}
			if rich.TextCode != tc.textCode {
				t.Fatalf("expected %q text code, got %q", tc.textCode, rich.TextCode)
			}
			if rich.Code != tc.status {
				t.Fatalf("expected upstream status %d as code, got %d", tc.status, rich.Code)
			}
			if !strings.Contains(rich.Message, tc.message) {
				t.Fatalf("expected message to contain %q, got %q", tc.message, rich.Message)
			}
			if got := core.ErrorMessage(err); got != rich.Message {
				t.Fatalf("expected record message to match envelope message, got %q", got)
			}
		})
	}
}

func TestRESTAdapter_NilReturnsRichError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), core.TransportRequest{})
	if err == nil {
		t.Fatalf("expected rest adapter nil error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.ServiceErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ServiceErrorInternal, rich.TextCode)
	}
}

func TestResponseDetail_TruncatesLongBodies(t *testing.T) {
	detail := responseDetail([]byte(strings.Repeat("x", errorBodyExcerptLimit+100)))
	if len(detail) != errorBodyExcerptLimit+3 || !strings.HasSuffix(detail, "...") {
		t.Fatalf("expected truncated excerpt, got length %d", len(detail))
	}
}
