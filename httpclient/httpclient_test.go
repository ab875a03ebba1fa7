package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelgate/modelgate/config"
)

func TestNewWithoutRetry(t *testing.T) {
	client := New(&config.Config{})
	if client.Timeout != defaultTimeout {
		t.Fatalf("timeout = %v, want %v", client.Timeout, defaultTimeout)
	}
	if _, ok := client.Transport.(*retryRoundTripper); ok {
		t.Fatal("retry transport installed with retries disabled")
	}
}

func TestRetryRecoversFromOverload(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt := &retryRoundTripper{
		next:        http.DefaultTransport,
		maxRetries:  3,
		maxInterval: time.Millisecond,
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if atomic.LoadInt64(&calls) != 3 {
		t.Fatalf("server saw %d calls, want 3", calls)
	}
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	rt := &retryRoundTripper{
		next:        http.DefaultTransport,
		maxRetries:  2,
		maxInterval: time.Millisecond,
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if atomic.LoadInt64(&calls) != 3 {
		t.Fatalf("server saw %d calls, want 3 (initial plus two retries)", calls)
	}
}

func TestRetrySkipsUnreplayableBody(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rt := &retryRoundTripper{next: http.DefaultTransport, maxRetries: 3}
	req, _ := http.NewRequest(http.MethodPost, srv.URL, nil)
	req.Body = http.NoBody
	req.GetBody = nil

	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	defer resp.Body.Close()
	if atomic.LoadInt64(&calls) != 1 {
		t.Fatalf("unreplayable request retried: %d calls", calls)
	}
}
