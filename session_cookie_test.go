package webdriver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDeleteCookie_BrokenFallbackAssemblesExpiredCookieScript(t *testing.T) {
	// S4: brokenDeleteCookie=true, deleteCookie("sid") with one existing
	// cookie issues a single execute() whose script contains the expected
	// expiry/domain/path assembly.
	var scripts []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/cookie"):
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": []map[string]interface{}{
				{"name": "sid", "value": "v", "path": "/"},
			}})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/execute"):
			var body struct {
				Script string        `json:"script"`
				Args   []interface{} `json:"args"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			scripts = append(scripts, body.Script)
			if strings.Contains(body.Script, "encodeURIComponent") {
				json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": "example.com"})
			} else {
				json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": nil})
			}
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{CapBrokenDeleteCookie: true})

	if err := sess.DeleteCookie(context.Background(), "sid"); err != nil {
		t.Fatal(err)
	}

	var cookieAssembly string
	for _, s := range scripts {
		if strings.Contains(s, "sid=") {
			cookieAssembly = s
		}
	}
	if cookieAssembly == "" {
		t.Fatal("expected a document.cookie assembly script")
	}
	if !strings.Contains(cookieAssembly, "expires=Thu, 01 Jan 1970 00:00:00 GMT") {
		t.Errorf("script missing expiry: %s", cookieAssembly)
	}
	if !strings.Contains(cookieAssembly, "domain=\" + encodeURIComponent(document.domain)") {
		t.Errorf("script missing domain: %s", cookieAssembly)
	}
	if !strings.Contains(cookieAssembly, "path=/") {
		t.Errorf("script missing path: %s", cookieAssembly)
	}
}

func TestSetCookie_RejectsInvalidNameOnFallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})

	err := sess.SetCookie(context.Background(), Cookie{Name: "bad name", Value: "v"})
	if err == nil {
		t.Fatal("expected an error for an invalid cookie name")
	}
}
