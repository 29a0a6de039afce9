package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"labflow/pkg/apperr"
)

func TestOrderCheckSkippedWithoutBaseURL(t *testing.T) {
	client := NewOrderClient("", zap.NewNop())
	if err := client.Check(context.Background(), 10); err != nil {
		t.Fatalf("unconfigured order service must not block creation: %v", err)
	}
}

func TestOrderCheckKnownOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/10" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewOrderClient(srv.URL, zap.NewNop())
	if err := client.Check(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOrderCheckUnknownOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewOrderClient(srv.URL, zap.NewNop())
	if err := client.Check(context.Background(), 10); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderCheckUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOrderClient(srv.URL, zap.NewNop())
	if err := client.Check(context.Background(), 10); !apperr.IsDependency(err) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
