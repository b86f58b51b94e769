package webdriver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCommand_EndReturnsAncestorContextByDepth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/element"):
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": map[string]string{"ELEMENT": "e1"}})
		default:
			t.Fatalf("unexpected request %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})
	ctx := context.Background()

	root := NewCommand(sess)
	found := root.FindById(ctx, "x")
	ended := found.End(ctx, 1)

	if _, err := ended.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if ended.ctx.depth != root.ctx.depth {
		t.Fatalf("end() context depth = %d, want root depth %d", ended.ctx.depth, root.ctx.depth)
	}
}

func TestCommand_DeadlockOnSelfReturn(t *testing.T) {
	sess := newSession("sid", nil, Capabilities{})
	ctx := context.Background()

	root := NewCommand(sess)
	child := root.Then(ctx, func(ctxx context.Context, setContext func(interface{}), value interface{}) (interface{}, error) {
		// Returning an ancestor (root) from the callback is the deadlock
		// shape "return this" takes in the chained-promise source design.
		return root, nil
	}, nil)

	_, err := child.Wait(ctx)
	if err == nil {
		t.Fatal("expected a deadlock error")
	}
}

func TestCommand_CallDispatchesToElementReceiver(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/element"):
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": map[string]string{"ELEMENT": "e1"}})
		case strings.Contains(r.URL.Path, "/equals/"):
			json.NewEncoder(w).Encode(map[string]interface{}{"status": 0, "value": true})
		default:
			t.Fatalf("unexpected request %s", r.URL.Path)
		}
	}))
	defer ts.Close()

	srv, _ := NewServer(ts.URL)
	sess := newSession("sid", srv, Capabilities{})
	ctx := context.Background()

	other := &Element{session: sess, elementID: "e2"}

	root := NewCommand(sess)
	found := root.FindById(ctx, "x")
	result := found.Call(ctx, "Equals", other)

	v, err := result.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	eq, ok := v.(bool)
	if !ok || !eq {
		t.Fatalf("Call(\"Equals\", other) = %#v, want true", v)
	}
}

func TestRehydrateElements_NestedElementSentinel(t *testing.T) {
	sess := newSession("sid", nil, Capabilities{})
	raw := map[string]interface{}{
		"list": []interface{}{
			map[string]interface{}{"ELEMENT": "k1"},
			map[string]interface{}{"other": "field"},
		},
	}
	out := rehydrateElements(sess, raw).(map[string]interface{})
	list := out["list"].([]interface{})
	el, ok := list[0].(*Element)
	if !ok || el.ID() != "k1" {
		t.Fatalf("expected rehydrated element k1, got %#v", list[0])
	}
	if _, ok := list[1].(*Element); ok {
		t.Fatal("non-sentinel map should not be rehydrated as an element")
	}
}
