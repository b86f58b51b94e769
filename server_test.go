package webdriver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vibium/webdrive/internal/wderrors"
)

func TestCreateSession_MirrorsLegacyVersionField(t *testing.T) {
	// S1: session creation against a cooperative driver.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"sessionId": "abc",
			"value":     map[string]interface{}{"browserName": "chrome", "version": "60"},
		})
	}))
	defer ts.Close()

	srv, err := NewServer(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	sess, err := srv.CreateSession(context.Background(), Capabilities{"browserName": "chrome"}, nil, CreateSessionOptions{FixCapabilities: true, Detect: false})
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID() != "abc" {
		t.Fatalf("sessionId = %q, want abc", sess.ID())
	}
	if sess.Capabilities().BrowserVersion() != "60" {
		t.Fatalf("browserVersion = %q, want 60", sess.Capabilities().BrowserVersion())
	}
	if !sess.Capabilities().Filled() {
		t.Fatal("expected capabilities._filled to be true")
	}
}

func TestSession_SerializesRequests(t *testing.T) {
	// S2: two unawaited calls on the same session must not overlap.
	var inFlight int32
	var order []string
	var mu sync.Mutex

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			t.Error("more than one request in flight at once")
		}
		defer atomic.AddInt32(&inFlight, -1)

		mu.Lock()
		order = append(order, r.URL.Path)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": r.URL.Path})
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sess.GetPageTitle(context.Background())
	}()
	go func() {
		defer wg.Done()
		sess.GetCurrentURL(context.Background())
	}()
	wg.Wait()

	if len(order) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(order))
	}
}

func TestNormalizeError_NoJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("plain text not found"))
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	_, err := srv.request(context.Background(), http.MethodGet, "status", nil)
	pe, ok := err.(*wderrors.ProtocolError)
	if !ok {
		t.Fatalf("expected *wderrors.ProtocolError, got %T", err)
	}
	if pe.Status != 9 {
		t.Fatalf("status = %d, want 9 (UnknownCommand)", pe.Status)
	}
}

func TestRequest_FollowsRedirectAfterSessionPost(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session":
			w.Header().Set("Location", "/session/abc")
			w.WriteHeader(http.StatusFound)
		case "/session/abc":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "sessionId": "abc", "value": map[string]interface{}{}})
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	resp, err := srv.request(context.Background(), http.MethodPost, "session", map[string]interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "abc" {
		t.Fatalf("sessionId = %q, want abc", resp.SessionID)
	}
}

func TestRequest_204SynthesizesEmptyValue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	resp, err := srv.request(context.Background(), http.MethodDelete, "session/$0", nil, "sid")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 0 {
		t.Fatalf("status = %d, want 0", resp.Status)
	}
}
