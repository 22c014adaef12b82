package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHTTPClient lets tests control probe responses.
type mockHTTPClient struct {
	DoFunc func(req *http.Request) (*http.Response, error)
	calls  int
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.calls++
	return m.DoFunc(req)
}

func TestProbeReadyOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	probe := NewHTTPProbe(nil, time.Second)
	outcome := probe.Probe(context.Background(), srv.URL+"/health")

	if outcome.Status != StatusReady {
		t.Errorf("status = %v, want ready", outcome.Status)
	}
	if outcome.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", outcome.Code)
	}
	if !outcome.Ready() {
		t.Error("Ready() = false for 2xx response")
	}
}

func TestProbeErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	probe := NewHTTPProbe(nil, time.Second)
	outcome := probe.Probe(context.Background(), srv.URL+"/health")

	if outcome.Status != StatusError {
		t.Errorf("status = %v, want error", outcome.Status)
	}
	if outcome.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", outcome.Code)
	}
	if outcome.Ready() {
		t.Error("Ready() = true for 503 response")
	}
}

func TestProbeUnreachableOnTransportFailure(t *testing.T) {
	client := &mockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		},
	}

	probe := NewHTTPProbe(client, time.Second)
	outcome := probe.Probe(context.Background(), "http://localhost:1/health")

	if outcome.Status != StatusUnreachable {
		t.Errorf("status = %v, want unreachable", outcome.Status)
	}
	if outcome.Err == nil {
		t.Error("transport error should be recorded")
	}
}

func TestProbeRejectsBadURL(t *testing.T) {
	probe := NewHTTPProbe(&mockHTTPClient{}, time.Second)

	cases := []string{"ftp://host/health", "not a url at all", "http://"}
	for _, endpoint := range cases {
		outcome := probe.Probe(context.Background(), endpoint)
		if outcome.Status != StatusUnreachable {
			t.Errorf("Probe(%q) status = %v, want unreachable", endpoint, outcome.Status)
		}
		if !errors.Is(outcome.Err, ErrUnsafeURL) {
			t.Errorf("Probe(%q) err = %v, want ErrUnsafeURL", endpoint, outcome.Err)
		}
	}
}

func TestProbeNoRetries(t *testing.T) {
	client := &mockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("down")
		},
	}

	probe := NewHTTPProbe(client, time.Second)
	probe.Probe(context.Background(), "http://localhost:9999/health")

	if client.calls != 1 {
		t.Errorf("probe made %d requests, want 1", client.calls)
	}
}

func TestProbeStatusString(t *testing.T) {
	if StatusReady.String() != "ready" || StatusUnreachable.String() != "unreachable" || StatusError.String() != "error" {
		t.Error("unexpected status strings")
	}
}
