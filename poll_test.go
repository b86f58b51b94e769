package webdriver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibium/webdrive/internal/wderrors"
)

// fakeElementsServer serves a fixed sequence of /elements responses and
// per-element /displayed answers, used to exercise FindDisplayed's S5
// tie-break behavior.
func fakeElementsServer(t *testing.T, ids []string, displayed map[string]bool) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && hasSuffix(r.URL.Path, "/elements"):
			value := make([]map[string]string, len(ids))
			for i, id := range ids {
				value[i] = map[string]string{"ELEMENT": id}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": value})
		case r.Method == http.MethodGet && hasSuffix(r.URL.Path, "/displayed"):
			id := pathSegment(r.URL.Path, 1)
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": displayed[id]})
		case r.Method == http.MethodPost && hasSuffix(r.URL.Path, "/timeouts"):
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": nil})
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
}

func hasSuffix(path, suffix string) bool {
	return len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix
}

func pathSegment(path string, fromEnd int) string {
	parts := []string{}
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	if len(parts) < fromEnd+1 {
		return ""
	}
	return parts[len(parts)-1-fromEnd]
}

func TestFindDisplayed_ReturnsThirdVisibleElement(t *testing.T) {
	// S5: [hidden, hidden, visible] -> findDisplayed returns the third.
	ts := fakeElementsServer(t, []string{"e1", "e2", "e3"}, map[string]bool{"e1": false, "e2": false, "e3": true})
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})
	sess.timeouts["implicit"] = 1000

	el, err := sess.FindDisplayed(context.Background(), "css selector", ".x")
	if err != nil {
		t.Fatal(err)
	}
	if el.ID() != "e3" {
		t.Fatalf("element id = %q, want e3", el.ID())
	}
}

func TestFindDisplayed_AllHiddenYieldsElementNotVisible(t *testing.T) {
	ts := fakeElementsServer(t, []string{"e1"}, map[string]bool{"e1": false})
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})
	sess.timeouts["implicit"] = 30

	_, err := sess.FindDisplayed(context.Background(), "css selector", ".x")
	if wderrors.StatusOf(err) != 11 {
		t.Fatalf("status = %d, want 11 (ElementNotVisible)", wderrors.StatusOf(err))
	}
}

func TestFindDisplayed_NoMatchesYieldsNoSuchElement(t *testing.T) {
	ts := fakeElementsServer(t, []string{}, map[string]bool{})
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})
	sess.timeouts["implicit"] = 30

	_, err := sess.FindDisplayed(context.Background(), "css selector", ".x")
	if wderrors.StatusOf(err) != 7 {
		t.Fatalf("status = %d, want 7 (NoSuchElement)", wderrors.StatusOf(err))
	}
}

func TestPollUntil_RestoresAsyncTimeoutOnTimeout(t *testing.T) {
	// S6: pollUntil(()=>null, ...) rejects ScriptTimeout and leaves the
	// script timeout exactly as it was.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": nil})
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})
	sess.timeouts["script"] = 30000

	_, err := sess.PollUntil(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	}, 50*time.Millisecond, 10*time.Millisecond)

	if wderrors.StatusOf(err) != 28 {
		t.Fatalf("status = %d, want 28 (ScriptTimeout)", wderrors.StatusOf(err))
	}
	if sess.GetTimeout("script") != 30000 {
		t.Fatalf("script timeout = %d, want 30000 restored", sess.GetTimeout("script"))
	}
}
